package bridge

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTwilio implements TwilioConn over channels.
type fakeTwilio struct {
	in chan []byte

	mu     sync.Mutex
	writes []TwilioMessage

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTwilio() *fakeTwilio {
	return &fakeTwilio{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeTwilio) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-f.in:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeTwilio) WriteJSON(v interface{}) error {
	msg, ok := v.(TwilioMessage)
	if !ok {
		return io.ErrUnexpectedEOF
	}
	f.mu.Lock()
	f.writes = append(f.writes, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeTwilio) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTwilio) send(t *testing.T, msg TwilioMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	f.in <- data
}

func (f *fakeTwilio) written() []TwilioMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TwilioMessage, len(f.writes))
	copy(out, f.writes)
	return out
}

// fakeRealtime implements RealtimeConn, recording outbound events and
// serving inbound events from a channel.
type fakeRealtime struct {
	mu             sync.Mutex
	sessionUpdates []string
	audio          []string
	truncated      []string

	events chan RealtimeEvent

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{events: make(chan RealtimeEvent, 16), closed: make(chan struct{})}
}

func (f *fakeRealtime) SendSessionUpdate(instructions string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionUpdates = append(f.sessionUpdates, instructions)
	return nil
}

func (f *fakeRealtime) AppendAudio(payloadB64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, payloadB64)
	return nil
}

func (f *fakeRealtime) TruncateItem(itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.truncated = append(f.truncated, itemID)
	return nil
}

func (f *fakeRealtime) ReadEvent() (RealtimeEvent, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return RealtimeEvent{}, io.EOF
	}
}

func (f *fakeRealtime) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeRealtime) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func testConfig() *Config {
	return &Config{
		OpenAIAPIKey:  "sk-test",
		RealtimeURL:   "wss://realtime.invalid/v1",
		SystemMessage: "be brief",
	}
}

// startSession runs a session against the fakes and returns a done channel.
func startSession(t *testing.T, tw *fakeTwilio, rt *fakeRealtime) (*Session, chan struct{}) {
	t.Helper()
	var dialCount int
	var mu sync.Mutex
	dial := func(ctx context.Context, url, key string) (RealtimeConn, error) {
		mu.Lock()
		dialCount++
		mu.Unlock()
		assert.Equal(t, "wss://realtime.invalid/v1", url)
		assert.Equal(t, "sk-test", key)
		return rt, nil
	}

	s := NewSession(testConfig(), tw, dial, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	return s, done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSessionAcksConnectedFrame(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)

	writes := tw.written()
	require.NotEmpty(t, writes)
	assert.Equal(t, EventConnected, writes[0].Event)
	require.NotNil(t, writes[0].MediaFormat)
	assert.Equal(t, PCMUFormat, *writes[0].MediaFormat)
}

func TestSessionStartConfiguresRealtime(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStart, Start: &StartPayload{StreamSid: "MZ123"}})
	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	require.Len(t, rt.sessionUpdates, 1)
	assert.Equal(t, "be brief", rt.sessionUpdates[0])
}

func TestSessionForwardsCallerAudio(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStart, Start: &StartPayload{StreamSid: "MZ123"}})
	tw.send(t, TwilioMessage{Event: EventMedia, Media: &MediaPayload{Payload: "bXVsYXc="}})
	tw.send(t, TwilioMessage{Event: EventMedia, Media: &MediaPayload{Payload: "bW9yZQ=="}})
	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, []string{"bXVsYXc=", "bW9yZQ=="}, rt.audio)
}

// A media frame arriving before start must still bring the realtime
// connection up, matching the legacy stream behavior.
func TestSessionMediaBeforeStartDials(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventMedia, Media: &MediaPayload{Payload: "bXVsYXc="}})
	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, []string{"bXVsYXc="}, rt.audio)
	assert.Len(t, rt.sessionUpdates, 1)
}

func TestSessionPumpsAssistantAudio(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	s, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStart, Start: &StartPayload{StreamSid: "MZ123"}})

	rt.events <- RealtimeEvent{Type: oaiAudioDelta, Delta: "YXVkaW8=", ItemID: "item_1"}

	require.Eventually(t, func() bool {
		for _, w := range tw.written() {
			if w.Event == EventMedia && w.Media != nil && w.Media.Payload == "YXVkaW8=" {
				return w.StreamSid == "MZ123"
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// Every media frame is chased by a playback mark.
	require.Eventually(t, func() bool { return s.Marks() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Twilio acking the mark drains the queue.
	tw.send(t, TwilioMessage{Event: EventMark, Mark: &MarkPayload{Name: "responsePart"}})
	require.Eventually(t, func() bool { return s.Marks() == 0 }, 2*time.Second, 10*time.Millisecond)

	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)
}

func TestSessionBargeIn(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	s, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStart, Start: &StartPayload{StreamSid: "MZ123"}})

	rt.events <- RealtimeEvent{Type: oaiAudioDelta, Delta: "YXVkaW8=", ItemID: "item_1"}
	require.Eventually(t, func() bool { return s.Marks() == 1 }, 2*time.Second, 10*time.Millisecond)

	rt.events <- RealtimeEvent{Type: oaiSpeechStarted}

	require.Eventually(t, func() bool {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return len(rt.truncated) == 1 && rt.truncated[0] == "item_1"
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, w := range tw.written() {
			if w.Event == EventClear && w.StreamSid == "MZ123" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return s.Marks() == 0 }, 2*time.Second, 10*time.Millisecond)

	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)
}

// Speech with no assistant item in flight must not truncate anything.
func TestSessionBargeInWithoutItemIsNoop(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStart, Start: &StartPayload{StreamSid: "MZ123"}})
	rt.events <- RealtimeEvent{Type: oaiSpeechStarted}

	time.Sleep(50 * time.Millisecond)
	rt.mu.Lock()
	assert.Empty(t, rt.truncated)
	rt.mu.Unlock()

	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)
}

// An assistant delta arriving before the stream has a sid is never played,
// so a later barge-in must not truncate the item it named.
func TestSessionUnplayedDeltaIsNotTruncated(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	// Media before start dials realtime while streamSid is still empty.
	tw.send(t, TwilioMessage{Event: EventMedia, Media: &MediaPayload{Payload: "bXVsYXc="}})
	require.Eventually(t, func() bool {
		rt.mu.Lock()
		defer rt.mu.Unlock()
		return len(rt.sessionUpdates) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rt.events <- RealtimeEvent{Type: oaiAudioDelta, Delta: "YXVkaW8=", ItemID: "item_ghost"}
	rt.events <- RealtimeEvent{Type: oaiSpeechStarted}

	time.Sleep(50 * time.Millisecond)
	rt.mu.Lock()
	assert.Empty(t, rt.truncated)
	rt.mu.Unlock()

	// The unforwarded delta must not have produced a media frame either.
	for _, w := range tw.written() {
		assert.NotEqual(t, EventMedia, w.Event)
	}

	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)
}

func TestSessionStopClosesRealtime(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	tw.send(t, TwilioMessage{Event: EventConnected})
	tw.send(t, TwilioMessage{Event: EventStart, Start: &StartPayload{StreamSid: "MZ123"}})
	tw.send(t, TwilioMessage{Event: EventStop})
	waitDone(t, done)

	assert.True(t, rt.isClosed())
}

func TestSessionDisconnectBeforeFirstFrame(t *testing.T) {
	tw := newFakeTwilio()
	rt := newFakeRealtime()
	_, done := startSession(t, tw, rt)

	require.NoError(t, tw.Close())
	waitDone(t, done)
	assert.Empty(t, tw.written())
}
