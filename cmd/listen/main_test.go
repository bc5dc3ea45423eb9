package main

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrames(t *testing.T) {
	stream := "event: connected\ndata: \"ok\"\n\n" +
		": ping\n\n" +
		"event: notification\ndata: {\"id\":1}\n\n" +
		"event: unreadCount\ndata: 3\n\n"

	var frames []frame
	require.NoError(t, readFrames(strings.NewReader(stream), func(f frame) { frames = append(frames, f) }))

	assert.Equal(t, []frame{
		{Event: "connected", Data: `"ok"`},
		{Event: "notification", Data: `{"id":1}`},
		{Event: "unreadCount", Data: "3"},
	}, frames)
}

func TestMintToken(t *testing.T) {
	signed, err := mintToken("s3cret", "alice", "admin")
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["username"])
	assert.Equal(t, "admin", claims["role"])
}
