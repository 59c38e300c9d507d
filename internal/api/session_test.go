package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"TH_treasure_hunt/internal/model"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func dialSession(t *testing.T, s *testStack, participant string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	header := http.Header{}
	header.Set("Authorization", authHeader(participant))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	data, err := json.Marshal(Message{Type: msgType, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// readUntil returns the first message of msgType, collecting everything read on the way.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) (received, []received) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var seen []received
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg received
		require.NoError(t, json.Unmarshal(data, &msg))
		seen = append(seen, msg)
		if msg.Type == msgType {
			return msg, seen
		}
	}
}

func TestSession_VerifyOverWebsocket(t *testing.T) {
	s := newTestStack(t)
	s.createHunt(t)

	_, err := s.lifecycle.Register(context.Background(), 1, aliceID, testAddress)
	require.NoError(t, err)

	conn := dialSession(t, s, aliceID)

	sendMessage(t, conn, MessageClueState, ClueStateMessage{HuntID: 1, Index: 2})
	state, _ := readUntil(t, conn, MessageClueState)
	assert.Equal(t, true, state.Payload["redirect"])
	assert.Equal(t, float64(1), state.Payload["index"])

	sendMessage(t, conn, MessageVerify, VerifyMessage{HuntID: 1, Index: 1})
	lat, lon := 12.98297, 77.68080
	sendMessage(t, conn, MessageLocation, LocationMessage{
		HuntID:          1,
		LocationRequest: LocationRequest{Latitude: &lat, Longitude: &lon},
	})

	result, seen := readUntil(t, conn, MessageVerify)
	assert.Equal(t, true, result.Payload["passed"])
	assert.Equal(t, float64(2), result.Payload["next_index"])

	var sawLocation bool
	var event *received
	for i, msg := range seen {
		switch msg.Type {
		case MessageLocation:
			sawLocation = true
			assert.Equal(t, true, msg.Payload["has_location"])
		case MessageEvent:
			event = &seen[i]
		}
	}
	assert.True(t, sawLocation)

	if event == nil {
		next, _ := readUntil(t, conn, MessageEvent)
		event = &next
	}
	assert.Equal(t, string(model.EventClueSolved), event.Payload["kind"])
	assert.Equal(t, aliceID, event.Payload["participant_id"])
}

func TestSession_Errors(t *testing.T) {
	s := newTestStack(t)
	s.createHunt(t)

	conn := dialSession(t, s, aliceID)

	sendMessage(t, conn, MessageVerify, VerifyMessage{HuntID: 1, Index: 1, Answer: "x"})
	msg, _ := readUntil(t, conn, MessageError)
	assert.Equal(t, "not_registered", msg.Payload["error"])
	assert.Equal(t, MessageVerify, msg.Payload["request"])
	assert.Equal(t, float64(http.StatusForbidden), msg.Payload["status"])

	sendMessage(t, conn, "dance", map[string]any{})
	msg, _ = readUntil(t, conn, MessageError)
	assert.Equal(t, "unknown_type", msg.Payload["error"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg, _ = readUntil(t, conn, MessageError)
	assert.Equal(t, "invalid_message", msg.Payload["error"])
}

func TestSession_FiltersOtherParticipants(t *testing.T) {
	s := newTestStack(t)
	conn := dialSession(t, s, aliceID)

	require.Eventually(t, func() bool { return s.broker.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	s.broker.Publish(model.Event{Kind: model.EventClueSolved, HuntID: 1, ParticipantID: "bob", ClueIndex: 1})
	s.broker.Publish(model.Event{Kind: model.EventHuntStarted, HuntID: 1})

	event, seen := readUntil(t, conn, MessageEvent)
	assert.Equal(t, string(model.EventHuntStarted), event.Payload["kind"])
	assert.Len(t, seen, 1)
}
