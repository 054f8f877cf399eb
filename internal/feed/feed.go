package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/internal/metrics"
	"github.com/Checker-Finance/bondvault/pkg/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Server streams ledger events to websocket subscribers. It rides on its own
// listener, separate from the API server, so slow feed clients never touch
// the request path.
type Server struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	httpSrv *http.Server
	done    chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer builds a feed server listening on the given port.
func NewServer(port int, logger *zap.Logger) *Server {
	s := &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", s.serveWS)
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the listener until Close is called.
func (s *Server) Start() error {
	s.logger.Info("Event feed listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// HandleEvent broadcasts a ledger event to every connected client. Clients
// that cannot keep up are dropped rather than backpressuring the vault.
func (s *Server) HandleEvent(evt model.LedgerEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("feed.marshal_failed", zap.Error(err))
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Warn("feed.client_too_slow, dropping")
			go s.remove(c)
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed.upgrade_failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	metrics.FeedClients.Set(float64(total))

	s.logger.Info("feed.client_connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("clients", total))

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop pushes events and pings; it owns all writes on the connection.
func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.remove(c)
				return
			}
		}
	}
}

// readLoop discards inbound frames; the feed is one-way. It exists to notice
// closed connections and answer pings.
func (s *Server) readLoop(c *client) {
	defer s.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("feed.client_read_error", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) remove(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, c)
	total := len(s.clients)
	s.clientsMu.Unlock()

	metrics.FeedClients.Set(float64(total))
	c.conn.Close()
}

// ClientCount reports the number of attached subscribers.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Close stops the listener and disconnects all clients.
func (s *Server) Close(ctx context.Context) error {
	close(s.done)

	s.clientsMu.Lock()
	for c := range s.clients {
		c.conn.Close()
		delete(s.clients, c)
	}
	s.clientsMu.Unlock()

	return s.httpSrv.Shutdown(ctx)
}
