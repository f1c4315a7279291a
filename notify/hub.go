package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

// Envelope is the wire form of a push notification.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type client struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

// Hub tracks the live websocket connections of each user and pushes
// payloads to them. Sends are fire-and-forget: a user without a connection
// is a no-op, and a slow connection drops the message rather than block the
// caller.
type Hub struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   types.Logger
	config   *types.NotifyConfig
	upgrader websocket.Upgrader
	clients  map[string]map[*client]struct{}
	mu       sync.RWMutex
	server   *http.Server
	started  int32
}

func NewHub(ctx context.Context, logger types.Logger, config *types.NotifyConfig) *Hub {
	cfg := &types.NotifyConfig{
		Host:         "localhost",
		Port:         8081,
		Path:         "/ws",
		SendBuffer:   64,
		WriteWait:    10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 54 * time.Second,
	}
	if config != nil {
		*cfg = *config
		if cfg.Path == "" {
			cfg.Path = "/ws"
		}
		if cfg.SendBuffer <= 0 {
			cfg.SendBuffer = 64
		}
		if cfg.WriteWait <= 0 {
			cfg.WriteWait = 10 * time.Second
		}
		if cfg.PongWait <= 0 {
			cfg.PongWait = 60 * time.Second
		}
		if cfg.PingInterval <= 0 {
			cfg.PingInterval = 54 * time.Second
		}
	}

	hubCtx, cancel := context.WithCancel(ctx)

	return &Hub{
		ctx:    hubCtx,
		cancel: cancel,
		logger: logger,
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades a connection and binds it to the user named in the
// user_id query parameter. The hub can be mounted on an external mux; its
// own listener is only started when a port is configured.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.IsRunning() {
		http.Error(w, "notifier not running", http.StatusServiceUnavailable)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	cl := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, h.config.SendBuffer),
		done:   make(chan struct{}),
	}

	h.register(cl)

	go h.writePump(cl)
	go h.readPump(cl)
}

// SendToUser pushes a payload to every live connection of a user. The push
// is best-effort; the only reported failure is a payload that cannot be
// serialized.
func (h *Hub) SendToUser(userID string, payload interface{}, messageType string) error {
	if userID == "" {
		return types.ErrNotifyUserIDEmpty
	}
	if !h.IsRunning() {
		return types.ErrNotifyNotRunning
	}

	data, err := utils.Marshal(&Envelope{
		Type:      messageType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return types.WrapError(err, "failed to marshal notification")
	}

	h.mu.RLock()
	conns := make([]*client, 0, len(h.clients[userID]))
	for cl := range h.clients[userID] {
		conns = append(conns, cl)
	}
	h.mu.RUnlock()

	for _, cl := range conns {
		select {
		case cl.send <- data:
		default:
			h.logger.Warn("Dropping notification for slow connection",
				zap.String("user_id", userID),
				zap.String("message_type", messageType))
		}
	}

	return nil
}

func (h *Hub) Start() error {
	if !atomic.CompareAndSwapInt32(&h.started, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	if h.config.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle(h.config.Path, h)

		h.server = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", h.config.Host, h.config.Port),
			Handler: mux,
		}

		go func() {
			if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				h.logger.Error("Notification server failed", zap.Error(err))
			}
		}()

		h.logger.Info("Notification hub started",
			zap.String("host", h.config.Host),
			zap.Int("port", h.config.Port),
			zap.String("path", h.config.Path))
	} else {
		h.logger.Info("Notification hub started without own listener")
	}

	return nil
}

func (h *Hub) Stop() error {
	if !atomic.CompareAndSwapInt32(&h.started, 1, 0) {
		return types.ErrServerNotRunning
	}

	h.cancel()

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Warn("Notification server shutdown timeout", zap.Error(err))
		}
	}

	h.mu.Lock()
	for _, conns := range h.clients {
		for cl := range conns {
			_ = cl.conn.Close()
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	h.logger.Info("Notification hub stopped gracefully")
	return nil
}

func (h *Hub) IsRunning() bool {
	return atomic.LoadInt32(&h.started) == 1
}

// ConnectionCount reports the number of live connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	if h.clients[cl.userID] == nil {
		h.clients[cl.userID] = make(map[*client]struct{})
	}
	h.clients[cl.userID][cl] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Connection registered", zap.String("user_id", cl.userID))
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if conns, exists := h.clients[cl.userID]; exists {
		delete(conns, cl)
		if len(conns) == 0 {
			delete(h.clients, cl.userID)
		}
	}
	h.mu.Unlock()

	// The send channel stays open: SendToUser may hold a snapshot that still
	// references this client. Closing done lets writePump exit instead.
	close(cl.done)
	_ = cl.conn.Close()

	h.logger.Debug("Connection unregistered", zap.String("user_id", cl.userID))
}

func (h *Hub) readPump(cl *client) {
	defer h.unregister(cl)

	_ = cl.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		// Inbound frames are discarded; the channel is push-only.
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket read failed",
					zap.String("user_id", cl.userID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-cl.done:
			_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Websocket write failed",
					zap.String("user_id", cl.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
