// Package server exposes the record store to control surfaces (the
// extension popup and tab list page) over a localhost WebSocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/lotas/tabspeicher/internal/applog"
	"github.com/lotas/tabspeicher/internal/capture"
	"github.com/lotas/tabspeicher/internal/exchange"
	"github.com/lotas/tabspeicher/internal/notify"
	"github.com/lotas/tabspeicher/internal/storage"
	"github.com/lotas/tabspeicher/internal/types"
)

// IncomingMsg is a request from a surface to the daemon.
type IncomingMsg struct {
	ID             string          `json:"id,omitempty"`
	Action         string          `json:"action"`
	Tab            json.RawMessage `json:"tab,omitempty"`
	Tabs           json.RawMessage `json:"tabs,omitempty"`
	TabID          types.RecordID  `json:"tabId,omitempty"`
	CloseAfterSave bool            `json:"closeAfterSave,omitempty"`
	ShowTabList    bool            `json:"showTabList,omitempty"`
	FileContent    string          `json:"fileContent,omitempty"`
	Filename       string          `json:"filename,omitempty"`
}

// Response answers one request.
type Response struct {
	ID      string         `json:"id,omitempty"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Count   int            `json:"count"`
	Tabs    []types.Record `json:"tabs,omitempty"`
	Path    string         `json:"path,omitempty"`
}

// Command is a fire-and-forget push from the daemon to a surface.
type Command struct {
	Action string `json:"action"`
	TabIDs []int  `json:"tabIds,omitempty"`
}

// Deps are the core services the server fronts.
type Deps struct {
	Store    *storage.RecordStore
	Capture  *capture.Service
	Exchange *exchange.Exchanger
	Hub      *notify.Hub
}

// Server accepts surface connections and dispatches their actions.
// Unlike a single-extension bridge it keeps a registry: every open
// surface gets data-changed broadcasts.
type Server struct {
	port int
	deps Deps

	mu    sync.Mutex
	conns map[string]*surfaceConn
}

func New(port int, deps Deps) *Server {
	return &Server{
		port:  port,
		deps:  deps,
		conns: make(map[string]*surfaceConn),
	}
}

// Port returns the configured port.
func (s *Server) Port() int { return s.port }

// Connected reports how many surfaces are attached.
func (s *Server) Connected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// surfaceConn is one attached surface. It implements capture.Closer so
// the capture service can close browser tabs through the connection
// that reported them.
type surfaceConn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex
	ctx     context.Context
}

func (c *surfaceConn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(c.ctx, websocket.MessageText, data)
}

// CloseTabs asks the surface's browser to close the given tabs.
func (c *surfaceConn) CloseTabs(ctx context.Context, browserIDs []int) error {
	return c.send(Command{Action: "closeTabs", TabIDs: browserIDs})
}

var _ capture.Closer = (*surfaceConn)(nil)

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}
		ws.SetReadLimit(16 << 20) // a save-all batch with favicons can be large

		conn := &surfaceConn{id: uuid.NewString(), ws: ws, ctx: r.Context()}
		s.mu.Lock()
		s.conns[conn.id] = conn
		s.mu.Unlock()
		applog.Info("ws.connected", "id", conn.id, "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			delete(s.conns, conn.id)
			s.mu.Unlock()
			ws.CloseNow()
			applog.Info("ws.disconnected", "id", conn.id)
		}()

		for {
			_, data, err := ws.Read(conn.ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "id", conn.id, "action", msg.Action)

			resp := s.dispatch(conn.ctx, conn, msg)
			resp.ID = msg.ID
			if err := conn.send(resp); err != nil {
				applog.Error("ws.send", err, "action", msg.Action)
				return
			}
		}
	})
}

// broadcast pushes a command to every attached surface. Failures are
// expected (a surface may be mid-close) and are logged, never returned.
func (s *Server) broadcast(cmd Command) {
	s.mu.Lock()
	conns := make([]*surfaceConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.send(cmd); err != nil {
			applog.Error("ws.broadcast", err, "id", c.id)
		}
	}
}

// ListenAndServe starts the WebSocket server and the broadcast pump
// that relays record-set changes to every surface.
func (s *Server) ListenAndServe(ctx context.Context) error {
	id, events := s.deps.Hub.Subscribe()
	defer s.deps.Hub.Unsubscribe(id)
	go func() {
		for range events {
			s.broadcast(Command{Action: "updateTabList"})
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
