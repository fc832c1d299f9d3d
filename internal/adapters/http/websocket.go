package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geomeasure/internal/adapters/nats"
	"github.com/samirrijal/geomeasure/internal/core/usecases"
	"github.com/samirrijal/geomeasure/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "session" | "records"
	Screen  string `json:"screen"`  // required for the session channel
}

// wsSubject maps a client request onto a NATS subject.
func wsSubject(m wsMessage) (string, string) {
	switch m.Channel {
	case "", "session":
		if err := usecases.ValidateScreenID(m.Screen); err != nil {
			return "", err.Error()
		}
		return natsadapter.ViewSubject(m.Screen), ""
	case "records":
		return natsadapter.SubjectAllRecords, ""
	default:
		return "", "unknown channel: " + m.Channel
	}
}

// WebSocketHandler returns a handler that relays session views and record events
// from NATS to a connected map client. A ?screen= query parameter subscribes to
// that screen immediately and sends its current view.
// Clients send JSON: {"action":"subscribe","channel":"session","screen":"field-1"}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(subject string) error {
			if deps.NATS == nil {
				return nats.ErrConnectionClosed
			}
			s, err := deps.NATS.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		if screen := c.Query("screen"); screen != "" {
			subject, problem := wsSubject(wsMessage{Channel: "session", Screen: screen})
			if problem != "" {
				_ = writeJSON(map[string]string{"error": problem})
				return
			}
			if err := subscribe(subject); err != nil {
				log.Warn("ws session subscribe failed", "subject", subject, "error", err)
			}
			if o, ok := deps.Screens.Lookup(screen); ok {
				_ = writeJSON(o.View())
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, problem := wsSubject(m)
			if problem != "" {
				_ = writeJSON(map[string]string{"error": problem})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}
