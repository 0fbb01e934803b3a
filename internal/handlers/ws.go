package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Billy-Davies-2/word-card-draft/internal/draft"
	"github.com/Billy-Davies-2/word-card-draft/internal/logger"
	"github.com/Billy-Davies-2/word-card-draft/internal/models"
	"github.com/Billy-Davies-2/word-card-draft/internal/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsCommand is what a websocket client may send. Type is "select", "undo" or "state".
type wsCommand struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

// wsReply answers a single command
type wsReply struct {
	Type    string `json:"type"`
	Outcome string `json:"outcome,omitempty"`
	State   any    `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// EventsWebSocket streams bus events to the client and accepts draft commands on the same socket
func (h *APIHandlers) EventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	events := h.pubsub.Subscribe()
	replies := make(chan wsReply, 8)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		h.wsWrite(conn, events, replies, done)
	}()
	h.wsRead(conn, replies, stopped)

	close(done)
	<-stopped
	h.pubsub.Unsubscribe(events)
	logger.Debug("Websocket client disconnected")
}

func (h *APIHandlers) wsRead(conn *websocket.Conn, replies chan<- wsReply, stopped <-chan struct{}) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Websocket read failed", "error", err)
			}
			return
		}
		select {
		case replies <- h.handleCommand(cmd):
		case <-stopped:
			return
		}
	}
}

func (h *APIHandlers) handleCommand(cmd wsCommand) wsReply {
	var (
		reply = wsReply{Type: "result"}
		state models.DraftState
		err   error
	)
	switch cmd.Type {
	case "select":
		var out draft.Outcome
		out, state, err = h.mgr.SelectState(cmd.Key)
		reply.Outcome = out.String()
	case "undo":
		state, err = h.mgr.UndoState()
	case "state":
		state, err = h.mgr.State()
	default:
		return wsReply{Type: "error", Error: "unknown command " + cmd.Type, Code: "BAD_REQUEST"}
	}
	if err != nil {
		return errorReply(err)
	}
	reply.State = state
	return reply
}

func errorReply(err error) wsReply {
	_, code := StatusFor(err)
	return wsReply{Type: "error", Error: err.Error(), Code: code}
}

// wsWrite is the only goroutine that writes to conn
func (h *APIHandlers) wsWrite(conn *websocket.Conn, events <-chan pubsub.Event, replies <-chan wsReply, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			logger.Debug("Websocket write failed", "error", err)
			return false
		}
		return true
	}

	if !write(map[string]string{"type": "connected"}) {
		return
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if !write(ev) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
