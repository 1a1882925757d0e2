package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeConn is the bridge's view of an OpenAI Realtime connection: send
// client events, read server events, close. Tests substitute fakes.
type RealtimeConn interface {
	SendSessionUpdate(instructions string) error
	AppendAudio(payloadB64 string) error
	TruncateItem(itemID string) error
	// ReadEvent blocks for the next server event.
	ReadEvent() (RealtimeEvent, error)
	Close() error
}

// RealtimeDialer opens a RealtimeConn. The production implementation dials
// the OpenAI WebSocket endpoint; tests inject their own.
type RealtimeDialer func(ctx context.Context, url, apiKey string) (RealtimeConn, error)

// realtimeConn wraps a gorilla WebSocket connection to the Realtime API.
// Writes are serialized with a mutex; reads happen from a single goroutine.
type realtimeConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// DialRealtime connects to the OpenAI Realtime endpoint with Bearer auth.
func DialRealtime(ctx context.Context, url, apiKey string) (RealtimeConn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 20 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing realtime API: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("dialing realtime API: %w", err)
	}
	return &realtimeConn{ws: ws}, nil
}

func (c *realtimeConn) send(ev realtimeClientEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(ev)
}

// SendSessionUpdate configures PCMU audio in and out with server-side VAD.
func (c *realtimeConn) SendSessionUpdate(instructions string) error {
	return c.send(realtimeClientEvent{
		Type: oaiSessionUpdate,
		Session: &realtimeSession{
			Type:             "realtime",
			Model:            "gpt-realtime",
			Instructions:     instructions,
			OutputModalities: []string{"audio"},
			Audio: &realtimeAudio{
				Input: realtimeAudioInput{
					Format:        audioFormat{Type: "audio/pcmu"},
					TurnDetection: &turnDetection{Type: "server_vad"},
				},
				Output: realtimeAudioOutput{
					Format: audioFormat{Type: "audio/pcmu"},
				},
			},
		},
	})
}

// AppendAudio forwards one base64 μ-law payload to the input audio buffer.
func (c *realtimeConn) AppendAudio(payloadB64 string) error {
	return c.send(realtimeClientEvent{Type: oaiAudioAppend, Audio: payloadB64})
}

// TruncateItem cuts off the given assistant item at content index 0,
// implementing barge-in.
func (c *realtimeConn) TruncateItem(itemID string) error {
	zero := 0
	return c.send(realtimeClientEvent{Type: oaiItemTruncate, ItemID: itemID, ContentIndex: &zero})
}

// ReadEvent reads and decodes the next server event. Frames that are not
// valid JSON are skipped, matching the tolerant read loop of the service
// this replaces.
func (c *realtimeConn) ReadEvent() (RealtimeEvent, error) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return RealtimeEvent{}, err
		}
		var ev RealtimeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		return ev, nil
	}
}

func (c *realtimeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Close()
}
