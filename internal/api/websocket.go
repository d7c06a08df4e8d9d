package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgallion1/textanchor/internal/host"
	"github.com/dgallion1/textanchor/internal/overlay"
	"github.com/dgallion1/textanchor/internal/session"
	"github.com/gorilla/websocket"
)

const (
	wsMaxMessageSize = 4096
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsWriteWait      = 10 * time.Second
)

// Origin is checked against Host, the upgrader's default.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// clientMessage is an inbound websocket message.
//
//	{"type":"pointer","sentence":0,"event":"up","x":12,"y":4}
//	{"type":"select","sentence":0,"from":6,"to":11,"end_sentence":1}
//	{"type":"clear"}
type clientMessage struct {
	Type        string  `json:"type"`
	Sentence    int     `json:"sentence"`
	Event       string  `json:"event,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	From        int     `json:"from"`
	To          int     `json:"to"`
	EndSentence *int    `json:"end_sentence,omitempty"`
}

// ackMessage closes the reply to one inbound message. Events produced by a
// pointer message are sent before it, one message each.
type ackMessage struct {
	Type             string `json:"type"`
	Hit              bool   `json:"hit"`
	HitType          string `json:"hit_type,omitempty"`
	DefaultPrevented bool   `json:"default_prevented"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleEvents streams pointer events for a session over a websocket.
// Replies are written from the read loop, so there is one writer.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	log := s.log.With("session", sess.ID)
	log.Info("websocket connected")

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket unexpected close", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		replies := s.handleMessage(r, sess, msg)
		for _, reply := range replies {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(reply); err != nil {
				log.Warn("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleMessage(r *http.Request, sess *session.Session, msg clientMessage) []any {
	fail := func(err error) []any {
		return []any{errorMessage{Type: "error", Error: err.Error()}}
	}

	switch msg.Type {
	case "pointer":
		typ, err := overlay.ParseEventType(msg.Event)
		if err != nil {
			return fail(err)
		}
		ev := &overlay.PointerEvent{Type: typ, X: msg.X, Y: msg.Y}
		var res host.DispatchResult
		err = sess.Do(func(h *host.Host) error {
			var err error
			res, err = h.Dispatch(r.Context(), msg.Sentence, ev)
			return err
		})
		if err != nil {
			return fail(err)
		}
		out := make([]any, 0, len(res.Events)+1)
		for _, e := range res.Events {
			out = append(out, e)
		}
		return append(out, ackMessage{
			Type:             "ack",
			Hit:              res.Hit,
			HitType:          res.HitType,
			DefaultPrevented: res.DefaultPrevented,
		})

	case "select":
		end := msg.Sentence
		if msg.EndSentence != nil {
			end = *msg.EndSentence
		}
		err := sess.Do(func(h *host.Host) error { return h.Select(msg.Sentence, msg.From, end, msg.To) })
		if err != nil {
			return fail(err)
		}
		return []any{ackMessage{Type: "ack"}}

	case "clear":
		sess.Do(func(h *host.Host) error {
			h.ClearSelection()
			return nil
		})
		return []any{ackMessage{Type: "ack"}}
	}

	data, _ := json.Marshal(msg.Type)
	return []any{errorMessage{Type: "error", Error: "unknown message type " + string(data)}}
}
