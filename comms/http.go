package comms

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ModuleStatusPayload is the JSON shape of one module in /status.
type ModuleStatusPayload struct {
	Module     string    `json:"module"`
	State      string    `json:"state"`
	LastReport time.Time `json:"last_report"`
	Faults     []string  `json:"faults,omitempty"`
}

// Router builds the daemon's HTTP surface.
func (c *Conductor) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/status", c.getStatus)
	r.Get("/telemetry", c.getTelemetry)
	r.Get("/ws", c.serveWS)

	return r
}

func (c *Conductor) getStatus(w http.ResponseWriter, r *http.Request) {
	states := c.session.States()
	payload := make([]ModuleStatusPayload, 0, len(states))
	for _, st := range states {
		payload = append(payload, ModuleStatusPayload{
			Module:     st.Module.String(),
			State:      st.State.String(),
			LastReport: st.LastReport,
			Faults:     st.LastFaults.Strings(),
		})
	}
	render.JSON(w, r, payload)
}

func (c *Conductor) getTelemetry(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, c.Latest())
}

func (c *Conductor) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Printf("websocket upgrade: %v", err)
		return
	}

	c.addClient(conn)

	// updates flow from push; this read loop only exists to notice the
	// client going away
	go func() {
		defer c.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
