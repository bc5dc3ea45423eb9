package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStampsIdentity(t *testing.T) {
	a := New(TypeNotificationCreated, map[string]interface{}{"id": int64(1)})
	b := New(TypeNotificationCreated, nil)

	assert.NotEmpty(t, a.EventID())
	assert.NotEqual(t, a.EventID(), b.EventID())
	assert.Equal(t, TypeNotificationCreated, a.EventType())
	assert.False(t, a.Timestamp().IsZero())
}

func TestStringField(t *testing.T) {
	payload := map[string]interface{}{"title": "Hi", "count": 3}

	assert.Equal(t, "Hi", StringField(payload, "title"))
	assert.Equal(t, "", StringField(payload, "count"))
	assert.Equal(t, "", StringField(payload, "missing"))
	assert.Equal(t, "", StringField(nil, "title"))
}

func TestEncodeDecodeKeepsMetadata(t *testing.T) {
	evt := New(TypeNotificationRead, map[string]interface{}{"username": "alice"})

	data, err := Encode(evt)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, "alice", StringField(decoded.Data, "username"))
	assert.True(t, evt.OccurredAt.Equal(decoded.OccurredAt))

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}
