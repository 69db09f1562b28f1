package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/npezzotti/classroom-chat/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_serializeMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tcases := []struct {
		name     string
		msg      *ServerMessage
		expected string
	}{
		{
			name:     "chat message",
			msg:      ChatMsg(types.Message{Username: "alice", Color: "red", Content: "hello", Timestamp: ts}),
			expected: `{"type":"message","username":"alice","color":"red","content":"hello","timestamp":"2024-05-01T12:00:00Z"}`,
		},
		{
			name:     "system notice",
			msg:      SystemMsg("User bob disconnected."),
			expected: `{"type":"system","content":"User bob disconnected."}`,
		},
		{
			name:     "title",
			msg:      TitleMsg("Midterm Review"),
			expected: `{"type":"title","title":"Midterm Review"}`,
		},
		{
			name:     "pong echoes client value",
			msg:      PongMsg(json.RawMessage(`1714564800000`)),
			expected: `{"type":"pong","startTime":1714564800000}`,
		},
		{
			name:     "auth error",
			msg:      AuthErrorMsg(formLogin, badCredentials),
			expected: `{"type":"auth_error","content":"Invalid username or password.","form":"login"}`,
		},
		{
			name:     "empty database view",
			msg:      DatabaseViewMsg(nil, 0),
			expected: `{"type":"database_view","messages":[],"count":0}`,
		},
		{
			name:     "empty history",
			msg:      HistoryMsg(nil),
			expected: `{"type":"history","messages":[]}`,
		},
		{
			name:     "clear history",
			msg:      ClearHistoryMsg(),
			expected: `{"type":"clear_history"}`,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			bytes, err := serializeMessage(tc.msg)
			assert.NoError(t, err, "expected no error during serialization")
			assert.JSONEq(t, tc.expected, string(bytes))
		})
	}
}

func TestPongMsgWithoutStartTime(t *testing.T) {
	before := time.Now().UnixMilli()
	msg := PongMsg(nil)

	var echoed int64
	assert.NoError(t, json.Unmarshal(msg.StartTime, &echoed))
	assert.GreaterOrEqual(t, echoed, before)

	msg = PongMsg(json.RawMessage(`not json`))
	assert.NoError(t, json.Unmarshal(msg.StartTime, &echoed), "expected invalid input to be replaced")
}

func TestClientMessageDecoding(t *testing.T) {
	var msg ClientMessage
	err := json.Unmarshal([]byte(`{"type":"dm","target":"bob","content":"psst","startTime":"abc"}`), &msg)
	assert.NoError(t, err)
	assert.Equal(t, KindDM, msg.Type)
	assert.Equal(t, "bob", msg.Target)
	assert.Equal(t, "psst", msg.Content)
	assert.Equal(t, `"abc"`, string(msg.StartTime))
}
