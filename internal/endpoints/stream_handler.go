package endpoints

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rates-app/internal/hub"
	"rates-app/internal/util"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

type streamMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type snapshotPayload struct {
	Timestamp string          `json:"timestamp"`
	Samples   []samplePayload `json:"samples"`
}

type samplePayload struct {
	CharCode string  `json:"char_code"`
	Value    float64 `json:"value"`
}

func newSnapshotMessage(ev hub.Event) streamMessage {
	payload := snapshotPayload{
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Samples:   make([]samplePayload, 0, len(ev.Samples)),
	}
	for _, s := range ev.Samples {
		payload.Samples = append(payload.Samples, samplePayload{CharCode: s.CharCode, Value: s.Value})
	}
	return streamMessage{Event: hub.EventRatesSnapshot, Data: payload}
}

type Stream struct {
	Response     APIResponse
	hub          *hub.Hub
	logger       *util.RatesLogger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
}

func (s *Stream) Init(h *hub.Hub, webSlogger *util.RatesLogger) {
	s.hub = h
	s.logger = webSlogger
	s.pingInterval = streamPingInterval
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

func (s *Stream) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
		s.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	sub, err := s.hub.Register()
	if err != nil {
		if errors.Is(err, hub.ErrHubClosed) {
			s.Response.WriteErrorResponseWithStatusCode(w, ErrStreamNotAvailable, http.StatusServiceUnavailable)
			return
		}
		s.Response.WriteErrorResponse(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.Unregister(sub)
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "websocket upgrade failed. Err -", err)
		return
	}

	s.logger.LogEvent(util.LOG_LEVEL_INFO, "Client connected. id -", sub.ID, "remote -", r.RemoteAddr)

	go s.readLoop(conn, sub)
	s.writeLoop(conn, sub)

	s.logger.LogEvent(util.LOG_LEVEL_INFO, "Client disconnected. id -", sub.ID)
}

func (s *Stream) readLoop(conn *websocket.Conn, sub *hub.Subscriber) {
	defer s.hub.Unregister(sub)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.pingInterval))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.LogEvent(util.LOG_LEVEL_DEBUG, "websocket read error. id -", sub.ID, "Err -", err)
			}
			return
		}
	}
}

func (s *Stream) writeLoop(conn *websocket.Conn, sub *hub.Subscriber) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		s.hub.Unregister(sub)
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(newSnapshotMessage(ev)); err != nil {
				s.logger.LogEvent(util.LOG_LEVEL_DEBUG, "websocket write error. id -", sub.ID, "Err -", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
