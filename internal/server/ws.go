package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local single-player client; the API is fully trusted.
		return true
	},
}

// wsIntent is an inbound client frame. Only lightweight intents ride the
// socket; everything else goes through the HTTP API.
type wsIntent struct {
	Action string `json:"action"`
	Speed  int    `json:"speed,omitempty"`
}

type wsEvent struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
	At      string `json:"at"`
}

// Gateway fans bus events out to connected websocket clients and accepts a
// small set of intents back, rate limited per connection.
type Gateway struct {
	app    *App
	logger *log.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]chan wsEvent
}

func NewGateway(app *App, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	g := &Gateway{
		app:    app,
		logger: logger,
		conns:  make(map[*websocket.Conn]chan wsEvent),
	}
	g.subscribe()
	return g
}

// subscribe mirrors every bus event onto the connected sockets. Emit is
// synchronous on the simulation path, so the handler only enqueues.
func (g *Gateway) subscribe() {
	names := []event.Name{
		event.MessageRead,
		event.ObjectiveComplete,
		event.MissionCompleted,
		event.NetworkDisconnected,
		event.FileSystemConnected,
		event.FileOperationComplete,
		event.NetworkScanComplete,
		event.BankBalanceChanged,
		event.DownloadComplete,
		event.SpeedChanged,
		event.GameOver,
	}
	for _, name := range names {
		name := name
		g.app.Engine.Bus.On(name, func(payload any) {
			g.broadcast(wsEvent{
				Name:    string(name),
				Payload: payload,
				At:      time.Now().UTC().Format(time.RFC3339Nano),
			})
		})
	}
}

func (g *Gateway) broadcast(ev wsEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for conn, ch := range g.conns {
		select {
		case ch <- ev:
		default:
			// Slow consumer: drop it rather than stall the simulation.
			close(ch)
			delete(g.conns, conn)
		}
	}
}

// send enqueues one frame for a single connection. The write loop is the
// only goroutine that touches the conn for writing, so replies from the
// read side must come through here too.
func (g *Gateway) send(conn *websocket.Conn, ev wsEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.conns[conn]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
		close(ch)
		delete(g.conns, conn)
	}
}

// Handler upgrades the request and runs the read/write loops until the
// client goes away.
func (g *Gateway) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Printf("ws upgrade: %v", err)
		return
	}

	ch := make(chan wsEvent, 64)
	g.mu.Lock()
	g.conns[conn] = ch
	g.mu.Unlock()

	go g.writeLoop(conn, ch)
	g.readLoop(conn)

	g.mu.Lock()
	if live, ok := g.conns[conn]; ok {
		close(live)
		delete(g.conns, conn)
	}
	g.mu.Unlock()
	_ = conn.Close()
}

func (g *Gateway) writeLoop(conn *websocket.Conn, ch chan wsEvent) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) readLoop(conn *websocket.Conn) {
	// 10 intents/second with a small burst is plenty for a human at a UI.
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 20)

	for {
		var intent wsIntent
		if err := conn.ReadJSON(&intent); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Printf("ws read: %v", err)
			}
			return
		}
		if !limiter.Allow() {
			g.sendError(conn, "rate limited")
			continue
		}
		g.handleIntent(conn, intent)
	}
}

func (g *Gateway) handleIntent(conn *websocket.Conn, intent wsIntent) {
	e := g.app.Engine
	var err error
	switch intent.Action {
	case "setSpeed":
		err = e.SetSpeed(intent.Speed)
	case "pause":
		e.Pause()
	case "resume":
		err = e.Resume()
	default:
		g.sendError(conn, "unknown action: "+intent.Action)
		return
	}
	if err != nil {
		g.sendError(conn, err.Error())
	}
}

func (g *Gateway) sendError(conn *websocket.Conn, msg string) {
	g.send(conn, wsEvent{Name: "error", Payload: msg, At: time.Now().UTC().Format(time.RFC3339Nano)})
}
