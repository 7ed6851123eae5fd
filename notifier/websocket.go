package notifier

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxReadMessageSize  = 512
)

type WsConfig struct {
	// Deadline for writing a single frame
	WriteTimeout time.Duration

	// Interval between pings, a peer that misses two pongs is dropped
	PingInterval time.Duration
}

// WsHandler upgrades http requests to websocket connections and streams
// payout status messages to them.
type WsHandler struct {
	cfg       *WsConfig
	publisher *PublisherService
	upgrader  websocket.Upgrader
}

func NewWsHandler(publisher *PublisherService, cfg *WsConfig) *WsHandler {
	c := WsConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}

	return &WsHandler{
		cfg:       &c,
		publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are served from other origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	obs := h.publisher.RegisterObserver()
	defer h.publisher.UnregisterObserver(obs)

	newLogger := logger.WithField("remote", r.RemoteAddr)
	newLogger.Debug("websocket observer connected")
	defer newLogger.Debug("websocket observer disconnected")

	// Observers don't send anything; reading only serves close and pong
	// frames and tells us when the peer is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxReadMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * h.cfg.PingInterval))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-obs.Ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(&Envelope{Event: EventPayoutStatus, Data: msg}); err != nil {
				newLogger.WithError(err).Debug("failed to write to websocket observer")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
