//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialNotify(t *testing.T, env *testEnv, access string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(env.server.URL, "http://", "ws://", 1) + "/ws/posts/notify?token=" + access
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestNotifyRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	wsURL := strings.Replace(env.server.URL, "http://", "ws://", 1) + "/ws/posts/notify"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewPostNotificationSkipsAuthor(t *testing.T) {
	env := newTestEnv(t)

	alice := newClient(t)
	aliceToken := env.signup(t, alice, "alice", "password1")
	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	aliceConn := dialNotify(t, env, aliceToken)
	bobConn := dialNotify(t, env, bobToken)

	// Give the hub a moment to register both clients.
	time.Sleep(100 * time.Millisecond)

	createPost(t, env, alice, aliceToken, "hot off the press", "public")

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, message, err := bobConn.ReadMessage()
	require.NoError(t, err)

	var received struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(message, &received))
	assert.Equal(t, "new_post", received.Event)

	// The author must not be notified about their own post.
	require.NoError(t, aliceConn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
	_, _, err = aliceConn.ReadMessage()
	require.Error(t, err)
}

func TestPrivatePostDoesNotNotify(t *testing.T) {
	env := newTestEnv(t)

	alice := newClient(t)
	aliceToken := env.signup(t, alice, "alice", "password1")
	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	bobConn := dialNotify(t, env, bobToken)
	time.Sleep(100 * time.Millisecond)

	createPost(t, env, alice, aliceToken, "for my eyes only", "private")

	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
	_, _, err := bobConn.ReadMessage()
	require.Error(t, err)
}
