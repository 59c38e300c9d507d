package api

import (
	"context"
	"net/http"

	"TH_treasure_hunt/internal/model"
	"TH_treasure_hunt/internal/service"
	"TH_treasure_hunt/pkg/auth"
	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MessageClueState = "clue_state"
	MessageLocation  = "location"
	MessageVerify    = "verify"
	MessageEvent     = "event"
	MessageError     = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Feed is the source of progress and ledger events.
type Feed interface {
	Subscribe(ctx context.Context) <-chan model.Event
}

type sessionRoutes struct {
	engine service.VerificationEngineI
	feed   Feed
}

func NewSessionRoutes(handler *gin.RouterGroup, engine service.VerificationEngineI, feed Feed, a *auth.TelegramAuth) {
	r := &sessionRoutes{engine: engine, feed: feed}
	h := handler.Group("/ws")
	h.Use(a.TelegramAuthMiddleware())

	h.GET("", r.handleWebSocket)
}

type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ClueStateMessage struct {
	HuntID int64 `json:"hunt_id"`
	Index  int   `json:"index"`
}

type LocationMessage struct {
	HuntID int64 `json:"hunt_id"`
	LocationRequest
}

type VerifyMessage struct {
	HuntID int64  `json:"hunt_id"`
	Index  int    `json:"index"`
	Answer string `json:"answer"`
}

// session is one participant connection. Only writeLoop writes to conn.
type session struct {
	participantID string
	conn          *websocket.Conn
	out           chan outMessage
	ctx           context.Context
	cancel        context.CancelFunc
}

func (r *sessionRoutes) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	pid, ok := participantID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		participantID: pid,
		conn:          conn,
		out:           make(chan outMessage, 16),
		ctx:           ctx,
		cancel:        cancel,
	}

	events := r.feed.Subscribe(ctx)

	go s.writeLoop(events)
	go r.readLoop(s)
}

func (s *session) send(msg outMessage) {
	select {
	case s.out <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) sendError(request string, err error) {
	status, body := errorBody(err)
	body["request"] = request
	body["status"] = status
	s.send(outMessage{Type: MessageError, Payload: body})
}

// relevant reports whether the participant should see event: their own
// progress and hunt-wide ledger events.
func (s *session) relevant(event model.Event) bool {
	return event.ParticipantID == "" || event.ParticipantID == s.participantID
}

func (s *session) writeLoop(events <-chan model.Event) {
	log := logger.Logger().With(zap.String("participant_id", s.participantID))
	defer s.cancel()

	write := func(msg outMessage) bool {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Error("failed to marshal message", zap.String("type", msg.Type), zap.Error(err))
			return true
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Info("failed to write message", zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case msg := <-s.out:
			if !write(msg) {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if s.relevant(event) && !write(outMessage{Type: MessageEvent, Payload: event}) {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (r *sessionRoutes) readLoop(s *session) {
	log := logger.Logger().With(zap.String("participant_id", s.participantID))

	defer func() {
		s.cancel()
		s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Info("websocket unexpected close", zap.Error(err))
			}
			return
		}

		var message Message
		if err := json.Unmarshal(raw, &message); err != nil {
			log.Info("failed to unmarshal message", zap.Error(err))
			s.send(outMessage{Type: MessageError, Payload: gin.H{"error": "invalid_message"}})
			continue
		}

		switch message.Type {
		case MessageClueState:
			r.clueState(s, message.Payload)
		case MessageLocation:
			r.location(s, message.Payload)
		case MessageVerify:
			// verification may wait for a location message on this connection
			go r.verify(s, message.Payload)
		default:
			s.send(outMessage{Type: MessageError, Payload: gin.H{"error": "unknown_type", "request": message.Type}})
		}
	}
}

func decodePayload(s *session, request string, raw json.RawMessage, out any) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		s.send(outMessage{Type: MessageError, Payload: gin.H{"error": "invalid_payload", "request": request}})
		return false
	}
	return true
}

func (r *sessionRoutes) clueState(s *session, raw json.RawMessage) {
	var p ClueStateMessage
	if !decodePayload(s, MessageClueState, raw, &p) {
		return
	}

	state, err := r.engine.Enter(s.ctx, p.HuntID, s.participantID, p.Index)
	if err != nil {
		s.sendError(MessageClueState, err)
		return
	}

	s.send(outMessage{Type: MessageClueState, Payload: newClueStateResponse(state)})
}

func (r *sessionRoutes) location(s *session, raw json.RawMessage) {
	var p LocationMessage
	if !decodePayload(s, MessageLocation, raw, &p) {
		return
	}

	failure := p.failure()
	var fix *model.Coordinates
	if failure == nil {
		if p.Latitude == nil || p.Longitude == nil {
			s.send(outMessage{Type: MessageError, Payload: gin.H{"error": "invalid_payload", "request": MessageLocation}})
			return
		}
		fix = &model.Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}

	if err := r.engine.ReportLocation(s.ctx, p.HuntID, s.participantID, fix, failure); err != nil {
		s.sendError(MessageLocation, err)
		return
	}

	s.send(outMessage{Type: MessageLocation, Payload: gin.H{"hunt_id": p.HuntID, "has_location": fix != nil}})
}

func (r *sessionRoutes) verify(s *session, raw json.RawMessage) {
	var p VerifyMessage
	if !decodePayload(s, MessageVerify, raw, &p) {
		return
	}

	result, err := r.engine.Submit(s.ctx, p.HuntID, s.participantID, p.Index, p.Answer)
	if err != nil {
		s.sendError(MessageVerify, err)
		return
	}

	s.send(outMessage{Type: MessageVerify, Payload: newVerifyResponse(result)})
}
