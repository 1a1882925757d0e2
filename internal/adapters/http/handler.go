package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/lobbi/launchpad/internal/bridge"
	"github.com/lobbi/launchpad/internal/dialplan"
	"github.com/lobbi/launchpad/internal/twiml"
)

// BridgeHandler serves the voice bridge's HTTP surface: health, the Twilio
// voice webhook, stream lifecycle callbacks, and the media-stream WebSocket.
type BridgeHandler struct {
	cfg  *bridge.Config
	dial bridge.RealtimeDialer
	log  zerolog.Logger
}

func NewBridgeHandler(cfg *bridge.Config, dial bridge.RealtimeDialer, log zerolog.Logger) *BridgeHandler {
	return &BridgeHandler{cfg: cfg, dial: dial, log: log}
}

// NewApp assembles the application object: all bridge routes on one fiber app.
func NewApp(cfg *bridge.Config, dial bridge.RealtimeDialer, log zerolog.Logger) *fiber.App {
	h := NewBridgeHandler(cfg, dial, log)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", h.Health)
	app.Get("/_ping", h.Ping)
	app.Get("/twilio/voice", h.Voice)
	app.Post("/twilio/voice", h.Voice)
	app.Post("/stream-status", h.StreamStatus)

	// Both paths serve the bridge; some configs still point at /stream.
	for _, path := range []string{"/media-stream", "/stream"} {
		app.Use(path, h.requireUpgrade)
		app.Get(path, websocket.New(h.MediaStream))
	}

	return app
}

func (h *BridgeHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "Twilio <-> OpenAI Realtime bridge",
	})
}

func (h *BridgeHandler) Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

// Voice answers Twilio's voice webhook with TwiML: a localized greeting,
// then a <Connect><Stream> that hands the call's audio to /media-stream.
func (h *BridgeHandler) Voice(c *fiber.Ctx) error {
	httpHost := stripScheme(firstNonEmpty(c.Get("X-Forwarded-Host"), c.Hostname()))
	wsHost := stripScheme(firstNonEmpty(h.cfg.WSHost, h.cfg.CloudRunHost, httpHost))

	wsURL := "wss://" + wsHost + "/media-stream"
	statusCallback := "https://" + httpHost + "/stream-status"

	caller := strings.TrimSpace(c.FormValue("From"))
	lang := dialplan.LanguageFor(caller)
	intro, ready := dialplan.IntroTexts(lang)

	vr := &twiml.VoiceResponse{}
	vr.Say(intro, "alice", lang).
		Pause(1).
		Say(ready, "alice", lang).
		ConnectStream(twiml.StreamOptions{
			URL:                  wsURL,
			StatusCallback:       statusCallback,
			StatusCallbackMethod: "POST",
		})

	xml, err := vr.Render()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.log.Info().
		Str("ws_url", wsURL).
		Str("status_callback", statusCallback).
		Str("caller", caller).
		Str("lang", lang).
		Msg("answered voice webhook")

	c.Set("Content-Type", "application/xml")
	return c.SendString(xml)
}

// StreamStatus receives Twilio's stream lifecycle callbacks (start, mark,
// media, stop, errors). They are logged and acknowledged.
func (h *BridgeHandler) StreamStatus(c *fiber.Ctx) error {
	payload := map[string]string{}
	if form, err := c.MultipartForm(); err == nil {
		for k, vs := range form.Value {
			if len(vs) > 0 {
				payload[k] = vs[0]
			}
		}
	} else {
		args := c.Context().PostArgs()
		args.VisitAll(func(k, v []byte) {
			payload[string(k)] = string(v)
		})
	}
	if len(payload) == 0 {
		payload["raw"] = string(c.Body())
	}

	h.log.Info().Interface("payload", payload).Msg("stream status callback")
	return c.JSON(fiber.Map{"ok": true})
}

// MediaStream runs one bridge session over an upgraded WebSocket.
func (h *BridgeHandler) MediaStream(conn *websocket.Conn) {
	session := bridge.NewSession(h.cfg, conn, h.dial, h.log)
	session.Run(context.Background())
}

func (h *BridgeHandler) requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func stripScheme(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSpace(host)
}
