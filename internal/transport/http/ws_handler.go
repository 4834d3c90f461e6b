package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/engine"
)

// WSHandler exposes the exam session operations over a websocket. Each
// connection drives at most one session at a time; timed attempts also get a
// once-per-second countdown push so the client clock stays honest and the
// client learns about an auto-submit without polling.
type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type startPayload struct {
	ExamID      string `json:"examId"`
	ResultIndex int    `json:"resultIndex"`
}

type drawPayload struct {
	Selection domain.Selection `json:"selection"`
	Count     int              `json:"count"`
}

type navigatePayload struct {
	Idx    int     `json:"idx"`
	Scroll float64 `json:"scroll"`
}

type answerPayload struct {
	OptionID string `json:"optionId"`
}

type submitPayload struct {
	Force bool `json:"force"`
}

type unansweredPayload struct {
	Numbers []int `json:"numbers"`
}

type savedPayload struct {
	ExamID string `json:"examId"`
}

// connState tracks the session a single websocket is driving. key is the
// service registry key; empty for read-only review sessions, which are owned
// by the connection alone. The mutex covers the ticker goroutine reading the
// session while the message loop swaps it.
type connState struct {
	mu      sync.Mutex
	session *engine.Session
	key     string
}

func (s *connState) set(sess *engine.Session, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	s.key = key
}

func (s *connState) get() (*engine.Session, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.key
}

// ServeWS upgrades the request and runs the message loop for one client.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := ws.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	state := &connState{}

	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sess, _ := state.get()
				if sess == nil {
					continue
				}
				view := sess.View()
				if view.RemainingMs == nil {
					continue
				}
				if view.Mode != engine.ModeTaking && !view.AutoSubmitted {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := ws.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, state, inbound, send)
	}

	// Dropping the connection abandons the session: timer torn down, nothing
	// persisted beyond whatever the client already saved.
	if sess, key := state.get(); key != "" {
		h.service.Abandon(key)
	} else if sess != nil {
		sess.Dispose()
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, state *connState, inbound inboundMessage, send chan<- outboundMessage[any]) {
	ctx := r.Context()
	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	adopt := func(sess *engine.Session, key string) {
		state.set(sess, key)
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}
	}

	switch inbound.Type {
	case "start":
		var p startPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid start payload"))
			return
		}
		sess, err := h.service.StartAttempt(ctx, p.ExamID)
		if err != nil {
			fail(err)
			return
		}
		adopt(sess, p.ExamID)

	case "resume":
		var p startPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid resume payload"))
			return
		}
		sess, err := h.service.Resume(ctx, p.ExamID)
		if err != nil {
			fail(err)
			return
		}
		adopt(sess, p.ExamID)

	case "retake":
		var p startPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid retake payload"))
			return
		}
		sess, err := h.service.StartRetakeIncorrect(ctx, p.ExamID, p.ResultIndex)
		if err != nil {
			fail(err)
			return
		}
		adopt(sess, p.ExamID)

	case "review":
		var p startPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid review payload"))
			return
		}
		sess, err := h.service.StartReview(ctx, p.ExamID, p.ResultIndex)
		if err != nil {
			fail(err)
			return
		}
		adopt(sess, "")

	case "qbank":
		var p drawPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid qbank payload"))
			return
		}
		sess, err := h.service.StartQBankDraw(ctx, p.Selection, p.Count)
		if err != nil {
			fail(err)
			return
		}
		adopt(sess, engine.QBankID)

	case "navigate":
		sess, ok := h.requireSession(state, fail)
		if !ok {
			return
		}
		var p navigatePayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid navigate payload"))
			return
		}
		if _, err := sess.Navigate(p.Idx, p.Scroll); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}

	case "answer":
		sess, ok := h.requireSession(state, fail)
		if !ok {
			return
		}
		var p answerPayload
		if err := json.Unmarshal(inbound.Payload, &p); err != nil {
			fail(errors.New("invalid answer payload"))
			return
		}
		if err := sess.Answer(p.OptionID); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}

	case "flag":
		sess, ok := h.requireSession(state, fail)
		if !ok {
			return
		}
		if _, err := sess.ToggleFlag(); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}

	case "check":
		sess, ok := h.requireSession(state, fail)
		if !ok {
			return
		}
		if err := sess.Check(); err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}

	case "submit":
		sess, ok := h.requireSession(state, fail)
		if !ok {
			return
		}
		var p submitPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				fail(errors.New("invalid submit payload"))
				return
			}
		}
		_, key := state.get()
		result, err := h.service.Submit(ctx, key, p.Force)
		var unanswered *domain.UnansweredError
		if errors.As(err, &unanswered) {
			send <- outboundMessage[any]{Type: "unanswered", Payload: unansweredPayload{Numbers: unanswered.Numbers}}
			return
		}
		if err != nil {
			fail(err)
			return
		}
		send <- outboundMessage[any]{Type: "result", Payload: result}
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}

	case "save":
		if _, ok := h.requireSession(state, fail); !ok {
			return
		}
		_, key := state.get()
		if err := h.service.SaveAndExit(ctx, key); err != nil {
			fail(err)
			return
		}
		state.set(nil, "")
		send <- outboundMessage[any]{Type: "saved", Payload: savedPayload{ExamID: key}}

	case "state":
		sess, ok := h.requireSession(state, fail)
		if !ok {
			return
		}
		send <- outboundMessage[any]{Type: "session", Payload: sess.View()}

	default:
		fail(errors.New("unsupported message type"))
	}
}

func (h *WSHandler) requireSession(state *connState, fail func(error)) (*engine.Session, bool) {
	sess, _ := state.get()
	if sess == nil {
		fail(domain.ErrSessionNotFound)
		return nil, false
	}
	return sess, true
}
