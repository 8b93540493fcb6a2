package websocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesToHandler(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.RegisterFunc("session.state", func(ctx context.Context, msg *Message) (*Message, error) {
		called = true
		return NewResponse(msg.ID, msg.Action, map[string]interface{}{"ok": true})
	})

	req, err := NewRequest("1", "session.state", nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, "1", resp.ID)
}

func TestDispatcherUnknownAction(t *testing.T) {
	d := NewDispatcher()

	req, err := NewRequest("7", "nope.nothing", nil)
	require.NoError(t, err)

	resp, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, MessageTypeError, resp.Type)

	var payload ErrorPayload
	require.NoError(t, resp.ParsePayload(&payload))
	assert.Equal(t, ErrorCodeUnknownAction, payload.Code)
}

func TestDispatcherHasHandler(t *testing.T) {
	d := NewDispatcher()
	assert.False(t, d.HasHandler("session.send"))

	d.RegisterFunc("session.send", func(ctx context.Context, msg *Message) (*Message, error) {
		return nil, nil
	})
	assert.True(t, d.HasHandler("session.send"))
}
