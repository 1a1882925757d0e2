package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// TwilioConn is the Twilio side of the bridge: a WebSocket carrying media
// frames. Both the fiber websocket connection and test fakes satisfy it.
type TwilioConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Session bridges one Twilio media stream to one OpenAI Realtime
// connection. A session lives for exactly one call.
type Session struct {
	cfg  *Config
	dial RealtimeDialer
	log  zerolog.Logger

	tw   TwilioConn
	twMu sync.Mutex // serializes writes to the Twilio side

	oai    RealtimeConn
	cancel context.CancelFunc
	pump   sync.WaitGroup

	mu                sync.Mutex
	streamSid         string
	lastAssistantItem string
	markQueue         []string
}

// NewSession wires a Twilio connection to a realtime dialer. dial defaults
// to DialRealtime when nil.
func NewSession(cfg *Config, tw TwilioConn, dial RealtimeDialer, log zerolog.Logger) *Session {
	if dial == nil {
		dial = DialRealtime
	}
	return &Session{cfg: cfg, dial: dial, tw: tw, log: log}
}

// Run drives the session until the caller hangs up, Twilio stops the
// stream, or either connection fails. It always tears both sides down.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer s.teardown()

	s.log.Info().Msg("media stream accepted")

	// Twilio's first frame announces the connection; ACK it with the only
	// media format the bridge speaks.
	first, err := s.readFrame()
	if err != nil {
		s.log.Info().Msg("twilio disconnected before first frame")
		return
	}
	s.log.Info().Str("event", first.Event).Msg("twilio first event")
	if first.Event == EventConnected {
		_ = s.writeTwilio(TwilioMessage{Event: EventConnected, MediaFormat: &PCMUFormat})
	}

	// The first frame may already be "start"; feed it through the same loop.
	pending := []TwilioMessage{first}
	for {
		var msg TwilioMessage
		if len(pending) > 0 {
			msg, pending = pending[0], pending[1:]
		} else {
			msg, err = s.readFrame()
			if err != nil {
				s.log.Info().Err(err).Msg("twilio stream closed")
				return
			}
		}

		switch msg.Event {
		case EventStart:
			s.mu.Lock()
			if msg.Start != nil {
				s.streamSid = msg.Start.StreamSid
			} else {
				s.streamSid = msg.StreamSid
			}
			sid := s.streamSid
			s.mu.Unlock()
			s.log.Info().Str("stream_sid", sid).Msg("twilio stream start")
			if err := s.ensureRealtime(ctx); err != nil {
				s.log.Error().Err(err).Msg("realtime connect failed")
				return
			}

		case EventMedia:
			if err := s.ensureRealtime(ctx); err != nil {
				s.log.Error().Err(err).Msg("realtime connect failed")
				return
			}
			if msg.Media != nil {
				if err := s.oai.AppendAudio(msg.Media.Payload); err != nil {
					s.log.Warn().Err(err).Msg("audio append failed")
					return
				}
			}

		case EventMark:
			s.mu.Lock()
			if len(s.markQueue) > 0 {
				s.markQueue = s.markQueue[1:]
			}
			s.mu.Unlock()

		case EventStop:
			s.log.Info().Msg("twilio stream stop")
			return

		default:
			// connected, clear, or unknown: nothing to do.
		}
	}
}

// ensureRealtime dials OpenAI once, configures the session, and starts the
// OpenAI-to-Twilio pump.
func (s *Session) ensureRealtime(ctx context.Context) error {
	if s.oai != nil {
		return nil
	}
	conn, err := s.dial(ctx, s.cfg.RealtimeURL, s.cfg.OpenAIAPIKey)
	if err != nil {
		return err
	}
	s.oai = conn
	if err := conn.SendSessionUpdate(s.cfg.SystemMessage); err != nil {
		return err
	}
	s.log.Info().Msg("sent realtime session.update")

	s.pump.Add(1)
	go func() {
		defer s.pump.Done()
		s.pumpRealtime(ctx, conn)
	}()
	return nil
}

// pumpRealtime forwards assistant audio back to Twilio and reacts to
// barge-in until the realtime connection closes.
func (s *Session) pumpRealtime(ctx context.Context, conn RealtimeConn) {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("realtime read failed")
			}
			return
		}

		if _, ok := logEventTypes[ev.Type]; ok {
			s.log.Info().Str("type", ev.Type).Msg("realtime event")
		}

		switch ev.Type {
		case oaiAudioDelta:
			s.mu.Lock()
			sid := s.streamSid
			s.mu.Unlock()
			if ev.Delta == "" || sid == "" {
				// Nothing reaches the caller, so this item must never
				// become a truncate target.
				continue
			}
			s.mu.Lock()
			if ev.ItemID != "" && ev.ItemID != s.lastAssistantItem {
				s.lastAssistantItem = ev.ItemID
			}
			s.mu.Unlock()
			_ = s.writeTwilio(TwilioMessage{
				Event:     EventMedia,
				StreamSid: sid,
				Media:     &MediaPayload{Payload: ev.Delta},
			})
			s.sendMark(sid)

		case oaiSpeechStarted:
			s.handleBargeIn(conn)
		}
	}
}

// sendMark asks Twilio to echo a playback checkpoint so cleared audio can
// be accounted for.
func (s *Session) sendMark(sid string) {
	if err := s.writeTwilio(TwilioMessage{
		Event:     EventMark,
		StreamSid: sid,
		Mark:      &MarkPayload{Name: "responsePart"},
	}); err != nil {
		return
	}
	s.mu.Lock()
	s.markQueue = append(s.markQueue, "responsePart")
	s.mu.Unlock()
}

// handleBargeIn truncates the in-flight assistant item and clears Twilio's
// playback buffer when the caller starts speaking over the assistant.
func (s *Session) handleBargeIn(conn RealtimeConn) {
	s.mu.Lock()
	item := s.lastAssistantItem
	sid := s.streamSid
	s.mu.Unlock()
	if item == "" {
		return
	}

	if err := conn.TruncateItem(item); err != nil {
		s.log.Warn().Err(err).Msg("barge-in truncate failed")
		return
	}
	if sid != "" {
		_ = s.writeTwilio(TwilioMessage{Event: EventClear, StreamSid: sid})
	}

	s.mu.Lock()
	s.markQueue = nil
	s.lastAssistantItem = ""
	s.mu.Unlock()
	s.log.Info().Str("item_id", item).Msg("barge-in truncated assistant item")
}

func (s *Session) readFrame() (TwilioMessage, error) {
	for {
		_, data, err := s.tw.ReadMessage()
		if err != nil {
			return TwilioMessage{}, err
		}
		var msg TwilioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Tolerate junk frames the way the stream always has.
			continue
		}
		return msg, nil
	}
}

func (s *Session) writeTwilio(msg TwilioMessage) error {
	s.twMu.Lock()
	defer s.twMu.Unlock()
	return s.tw.WriteJSON(msg)
}

func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.oai != nil {
		_ = s.oai.Close()
	}
	s.pump.Wait()
	_ = s.tw.Close()
	s.log.Info().Msg("media stream closed")
}

// Marks reports the number of unacknowledged playback marks.
func (s *Session) Marks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markQueue)
}
