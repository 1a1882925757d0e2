package bridge

// Twilio media-stream frame events.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventClear     = "clear"
	EventStop      = "stop"
)

// TwilioMessage is one frame on the Twilio media-stream WebSocket, in
// either direction. Only the fields for the frame's event are populated.
type TwilioMessage struct {
	Event       string        `json:"event"`
	StreamSid   string        `json:"streamSid,omitempty"`
	Start       *StartPayload `json:"start,omitempty"`
	Media       *MediaPayload `json:"media,omitempty"`
	Mark        *MarkPayload  `json:"mark,omitempty"`
	MediaFormat *MediaFormat  `json:"mediaFormat,omitempty"`
}

// StartPayload accompanies the "start" event.
type StartPayload struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid,omitempty"`
}

// MediaPayload carries base64 μ-law audio.
type MediaPayload struct {
	Payload string `json:"payload"`
}

// MarkPayload names a playback checkpoint.
type MarkPayload struct {
	Name string `json:"name"`
}

// MediaFormat is the audio format ACK sent back on "connected".
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// PCMUFormat is the only format the bridge speaks: G.711 μ-law, 8 kHz, mono.
var PCMUFormat = MediaFormat{Encoding: "audio/x-mulaw", SampleRate: 8000, Channels: 1}

// OpenAI Realtime event types the bridge reacts to or logs.
const (
	oaiSessionUpdate = "session.update"
	oaiAudioAppend   = "input_audio_buffer.append"
	oaiItemTruncate  = "conversation.item.truncate"
	oaiAudioDelta    = "response.output_audio.delta"
	oaiSpeechStarted = "input_audio_buffer.speech_started"
)

// logEventTypes are OpenAI events worth a log line even when unhandled.
var logEventTypes = map[string]struct{}{
	"error":                             {},
	"response.content.done":             {},
	"response.done":                     {},
	"rate_limits.updated":               {},
	"input_audio_buffer.committed":      {},
	"input_audio_buffer.speech_started": {},
	"input_audio_buffer.speech_stopped": {},
	"session.created":                   {},
	"session.updated":                   {},
}

// RealtimeEvent is one inbound event from the OpenAI Realtime connection.
type RealtimeEvent struct {
	Type   string `json:"type"`
	Delta  string `json:"delta,omitempty"`
	ItemID string `json:"item_id,omitempty"`
}

// realtimeClientEvent is one outbound event to the OpenAI Realtime API.
type realtimeClientEvent struct {
	Type         string           `json:"type"`
	Audio        string           `json:"audio,omitempty"`
	ItemID       string           `json:"item_id,omitempty"`
	ContentIndex *int             `json:"content_index,omitempty"`
	Session      *realtimeSession `json:"session,omitempty"`
}

type realtimeSession struct {
	Type             string         `json:"type"`
	Model            string         `json:"model"`
	Instructions     string         `json:"instructions"`
	OutputModalities []string       `json:"output_modalities"`
	Audio            *realtimeAudio `json:"audio"`
}

type realtimeAudio struct {
	Input  realtimeAudioInput  `json:"input"`
	Output realtimeAudioOutput `json:"output"`
}

type realtimeAudioInput struct {
	Format        audioFormat    `json:"format"`
	TurnDetection *turnDetection `json:"turn_detection,omitempty"`
}

type realtimeAudioOutput struct {
	Format audioFormat `json:"format"`
}

type audioFormat struct {
	Type string `json:"type"`
}

type turnDetection struct {
	Type string `json:"type"`
}
