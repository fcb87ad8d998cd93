package broadcast

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/cardano-foundation/node-supervisor/internal/fsm"
)

// stateEvent is the encoded payload pushed to SSE subscribers on every
// transition (spec.md §6: broadcast_state_change).
type stateEvent struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// tlsEvent is the encoded payload pushed once per RUNNING entry
// (spec.md §6: broadcast_tls_config). Certificate bytes are never
// forwarded over the wire — only the hostname/port downstream HTTP
// clients need, consistent with the supervisor treating the bytes as
// opaque and this transport treating them as sensitive.
type tlsEvent struct {
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
	Port     uint16 `json:"port"`
}

// HTTPBroadcaster is a Broadcaster that fans state changes and TLS
// announcements out to Server-Sent-Events subscribers over Fiber,
// generalizing the teacher examples' Fiber child-control endpoints
// (SPEC_FULL.md §11) from request/response control into a push surface.
type HTTPBroadcaster struct {
	mu          sync.Mutex
	subscribers map[chan []byte]struct{}
}

// NewHTTP returns an empty HTTPBroadcaster.
func NewHTTP() *HTTPBroadcaster {
	return &HTTPBroadcaster{subscribers: map[chan []byte]struct{}{}}
}

func (b *HTTPBroadcaster) BroadcastStateChange(state fsm.State) {
	payload, err := json.Marshal(stateEvent{Type: "state", State: state.String()})
	if err != nil {
		return
	}
	b.publish(payload)
}

func (b *HTTPBroadcaster) BroadcastTLSConfig(tls TLSConfig) {
	payload, err := json.Marshal(tlsEvent{Type: "tls", Hostname: tls.Hostname, Port: tls.Port})
	if err != nil {
		return
	}
	b.publish(payload)
}

func (b *HTTPBroadcaster) publish(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- payload:
		default:
			// slow subscriber; drop rather than block a transition.
		}
	}
}

func (b *HTTPBroadcaster) subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *HTTPBroadcaster) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// ControlHandlers is implemented by the supervisor core; the HTTP
// surface below is transport only and never interprets the errors it
// forwards.
type ControlHandlers interface {
	Stop() error
	Kill() error
	Restart(forced bool) error
}

// Mount registers the SSE event stream and the control endpoints on app,
// mirroring the teacher examples' /child/{restart,shutdown,start} routes
// generalized to /control/{stop,kill,restart} plus GET /events.
func (b *HTTPBroadcaster) Mount(app *fiber.App, ctrl ControlHandlers) {
	app.Get("/events", func(c *fiber.Ctx) error {
		ch := b.subscribe()

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer b.unsubscribe(ch)
			for payload := range ch {
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}))
		return nil
	})

	app.Post("/control/stop", func(c *fiber.Ctx) error {
		if err := ctrl.Stop(); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		return c.SendString("stopping")
	})
	app.Post("/control/kill", func(c *fiber.Ctx) error {
		if err := ctrl.Kill(); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		return c.SendString("killing")
	})
	app.Post("/control/restart", func(c *fiber.Ctx) error {
		forced := c.Query("forced") == "true"
		if err := ctrl.Restart(forced); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		return c.SendString("restarting")
	})
}

var _ Broadcaster = (*HTTPBroadcaster)(nil)
