package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/msghub"
	"github.com/listarchive/listarchive/pkg/rest/model"
	"github.com/listarchive/listarchive/pkg/server/web"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// options for gorilla connection upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// eventListener handles events from the msghub
type eventListener struct {
	hub  *msghub.Hub       // Global message hub
	c    chan msghub.Event // Queue of events from Receive()
	done chan struct{}
	once sync.Once
}

// newEventListener creates a listener and registers it.
func newEventListener(hub *msghub.Hub) *eventListener {
	el := &eventListener{
		hub:  hub,
		c:    make(chan msghub.Event, 100),
		done: make(chan struct{}),
	}
	hub.AddListener(el)
	return el
}

// Receive handles an incoming event.  Events are dropped once the socket has closed.
func (el *eventListener) Receive(e msghub.Event) error {
	select {
	case el.c <- e:
	case <-el.done:
	}
	return nil
}

// WSReader makes sure the websocket client is still connected, discards any messages from client
func (el *eventListener) WSReader(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()
	defer el.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		slog.Debug().Msg("Got pong")
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				// Unexpected close code
				slog.Warn().Err(err).Msg("Socket error")
			} else {
				slog.Debug().Msg("Closing socket")
			}
			break
		}
	}
}

// WSWriter sends hub events to the client, and pings to keep the connection alive.
func (el *eventListener) WSWriter(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		el.Close()
	}()

	// Handle events from hub until eventListener is closed
	for {
		select {
		case e := <-el.c:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteJSON(monitorEventModel(e)) != nil {
				// Write failed
				return
			}
		case <-el.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			// Send ping
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteMessage(websocket.PingMessage, []byte{}) != nil {
				// Write error
				return
			}
			log.Debug().Str("module", "rest").Str("proto", "WebSocket").
				Str("remote", conn.RemoteAddr().String()).Msg("Sent ping")
		}
	}
}

// Close removes the listener registration
func (el *eventListener) Close() {
	el.once.Do(func() {
		close(el.done)
		el.hub.RemoveListener(el)
	})
}

// Monitor is a web handler which upgrades the connection to a websocket and notifies an admin
// client of archive and moderation events.
func Monitor(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	if !ctx.RootConfig.Web.MonitorVisible || ctx.MsgHub == nil {
		http.NotFound(w, req)
		return nil
	}
	if !ctx.Caps.Admin {
		web.RenderText(w, http.StatusForbidden, "You need administrative access to use this endpoint!")
		return nil
	}
	// Upgrade to Websocket.
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrader has already responded to the client.
		log.Debug().Str("module", "rest").Err(err).Msg("WebSocket upgrade failed")
		return nil
	}
	defer func() {
		_ = conn.Close()
	}()
	log.Debug().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Str("user", ctx.Caps.User).
		Msg("Upgraded to WebSocket")
	// Create, register listener; then interact with conn.
	el := newEventListener(ctx.MsgHub)
	go el.WSWriter(conn)
	el.WSReader(conn)
	return nil
}

func monitorEventModel(e msghub.Event) *model.JSONMonitorEvent {
	m := &model.JSONMonitorEvent{Kind: string(e.Kind)}
	if msg := e.Message; msg != nil {
		m.MID = msg.MID
		m.MessageID = msg.MessageID
		m.List = msg.ListRaw
		m.From = msg.From
		m.Subject = msg.Subject
		m.Date = msg.Date
		m.Private = msg.Private
	}
	if mod := e.Moderation; mod != nil {
		m.Action = mod.Action
		m.Actor = mod.Actor
		m.Documents = mod.Documents
		m.Affected = mod.Affected
		m.Outcome = mod.Outcome
		m.Date = mod.Timestamp
	}
	return m
}
