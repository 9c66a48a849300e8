package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameJSON(t *testing.T) {
	frame, err := ParseFrameJSON([]byte(`{"event":"message:send","data":{"recipientId":"abc","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, EvtMessageSend, frame.Event)

	var p SendPayload
	require.NoError(t, json.Unmarshal(frame.Data, &p))
	assert.Equal(t, "abc", p.RecipientID)
	assert.Equal(t, "hi", p.Content)
}

func TestParseFrameJSONNoData(t *testing.T) {
	frame, err := ParseFrameJSON([]byte(`{"event":"typing:stop"}`))
	require.NoError(t, err)
	assert.Equal(t, EvtTypingStop, frame.Event)
	assert.Empty(t, frame.Data)
}

func TestParseFrameJSONErrors(t *testing.T) {
	_, err := ParseFrameJSON([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseFrameJSON([]byte(`{"data":{"x":1}}`))
	assert.Error(t, err, "missing event name must be rejected")
}

func TestOutFrameShape(t *testing.T) {
	raw, err := json.Marshal(outFrame{Event: EvtError, Data: ErrorPayload{Message: "Forbidden"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"error","data":{"message":"Forbidden"}}`, string(raw))
}
