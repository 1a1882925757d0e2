// Package twiml renders the small subset of Twilio's voice markup the
// bridge answers webhooks with: spoken prompts, pauses, and a <Connect>
// verb that hands the call's media stream to a WebSocket endpoint.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// VoiceResponse is a <Response> document assembled verb by verb, in order.
type VoiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type sayVerb struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type pauseVerb struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type connectVerb struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  StreamOptions
}

// StreamOptions configures the <Stream> noun nested under <Connect>.
type StreamOptions struct {
	XMLName              xml.Name `xml:"Stream"`
	URL                  string   `xml:"url,attr"`
	StatusCallback       string   `xml:"statusCallback,attr,omitempty"`
	StatusCallbackMethod string   `xml:"statusCallbackMethod,attr,omitempty"`
}

// Say appends a spoken prompt.
func (r *VoiceResponse) Say(text, voice, language string) *VoiceResponse {
	r.Verbs = append(r.Verbs, sayVerb{Text: text, Voice: voice, Language: language})
	return r
}

// Pause appends a pause of the given length in seconds.
func (r *VoiceResponse) Pause(seconds int) *VoiceResponse {
	r.Verbs = append(r.Verbs, pauseVerb{Length: seconds})
	return r
}

// ConnectStream appends <Connect><Stream .../></Connect>.
func (r *VoiceResponse) ConnectStream(opts StreamOptions) *VoiceResponse {
	r.Verbs = append(r.Verbs, connectVerb{Stream: opts})
	return r
}

// Render serializes the response with the standard XML declaration.
func (r *VoiceResponse) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("rendering twiml: %w", err)
	}
	return xml.Header + string(body), nil
}
