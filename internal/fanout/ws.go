package fanout

import (
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 512
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the request to a WebSocket and streams hub frames to it
// until either side disconnects. The subscriber is registered for the life
// of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID, role string) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := NewSubscriber(userID, role)
	h.Register(sub)
	h.log.Debug().Str("subscriber", sub.ID).Str("user_id", userID).Int("connected", h.Count()).Msg("subscriber connected")

	go h.writePump(sub, ws)
	go h.readPump(sub, ws)
	return nil
}

// readPump only exists to notice the peer going away; inbound frames are
// discarded.
func (h *Hub) readPump(sub *Subscriber, ws *gorillawebsocket.Conn) {
	defer func() {
		h.Unregister(sub)
		ws.Close()
		h.log.Debug().Str("subscriber", sub.ID).Int("connected", h.Count()).Msg("subscriber disconnected")
	}()

	ws.SetReadLimit(maxInboundSize)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *Subscriber, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for frame := range sub.Send {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, frame); err != nil {
			h.Unregister(sub)
			return
		}
	}

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = ws.WriteMessage(gorillawebsocket.CloseMessage, gorillawebsocket.FormatCloseMessage(gorillawebsocket.CloseGoingAway, ""))
}
