//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postBody struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Privacy  string `json:"privacy"`
}

func createPost(t *testing.T, env *testEnv, client *http.Client, access string, message string, privacy string) postBody {
	t.Helper()

	resp := env.postJSON(t, client, "/api/v1/posts", map[string]string{
		"message": message,
		"privacy": privacy,
	}, access)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var post postBody
	decodeData(t, resp, &post)
	return post
}

func TestFeedVisibilityByViewer(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	aliceToken := env.signup(t, alice, "alice", "password1")

	createPost(t, env, alice, aliceToken, "hello everyone", "public")
	createPost(t, env, alice, aliceToken, "hello members", "community")
	createPost(t, env, alice, aliceToken, "hello me", "private")

	anon := newClient(t)
	resp := env.get(t, anon, "/api/v1/posts", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed []postBody
	decodeData(t, resp, &feed)
	require.Len(t, feed, 1)
	assert.Equal(t, "hello everyone", feed[0].Message)

	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	bobResp := env.get(t, bob, "/api/v1/posts", bobToken)
	defer bobResp.Body.Close()
	require.Equal(t, http.StatusOK, bobResp.StatusCode)

	var bobFeed []postBody
	decodeData(t, bobResp, &bobFeed)
	assert.Len(t, bobFeed, 2)

	ownResp := env.get(t, alice, "/api/v1/posts", aliceToken)
	defer ownResp.Body.Close()

	var ownFeed []postBody
	decodeData(t, ownResp, &ownFeed)
	assert.Len(t, ownFeed, 3)
}

func TestPostUpdateOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	aliceToken := env.signup(t, alice, "alice", "password1")
	post := createPost(t, env, alice, aliceToken, "original", "public")

	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	path := fmt.Sprintf("/api/v1/posts/%d", post.ID)

	denied := env.doJSON(t, bob, http.MethodPut, path, map[string]string{"message": "hijacked"}, bobToken)
	denied.Body.Close()
	require.Equal(t, http.StatusForbidden, denied.StatusCode)

	allowed := env.doJSON(t, alice, http.MethodPut, path, map[string]string{"message": "edited"}, aliceToken)
	defer allowed.Body.Close()
	require.Equal(t, http.StatusOK, allowed.StatusCode)

	var updated postBody
	decodeData(t, allowed, &updated)
	assert.Equal(t, "edited", updated.Message)
}

func TestPostTrashLifecycle(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	aliceToken := env.signup(t, alice, "alice", "password1")
	post := createPost(t, env, alice, aliceToken, "ephemeral", "public")

	path := fmt.Sprintf("/api/v1/posts/%d", post.ID)

	del := env.doJSON(t, alice, http.MethodDelete, path, nil, aliceToken)
	del.Body.Close()
	require.Equal(t, http.StatusOK, del.StatusCode)

	// Hidden from the feed and from direct fetch by others.
	gone := env.get(t, newClient(t), path, "")
	gone.Body.Close()
	require.Equal(t, http.StatusNotFound, gone.StatusCode)

	trashResp := env.get(t, alice, "/api/v1/posts/trash", aliceToken)
	defer trashResp.Body.Close()
	require.Equal(t, http.StatusOK, trashResp.StatusCode)

	var trash []postBody
	decodeData(t, trashResp, &trash)
	require.Len(t, trash, 1)

	restore := env.postJSON(t, alice, path+"/restore", nil, aliceToken)
	restore.Body.Close()
	require.Equal(t, http.StatusOK, restore.StatusCode)

	back := env.get(t, newClient(t), path, "")
	back.Body.Close()
	require.Equal(t, http.StatusOK, back.StatusCode)
}

func TestPrivatePostHiddenFromOthers(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	aliceToken := env.signup(t, alice, "alice", "password1")
	post := createPost(t, env, alice, aliceToken, "secret", "private")

	path := fmt.Sprintf("/api/v1/posts/%d", post.ID)

	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	resp := env.get(t, bob, path, bobToken)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	own := env.get(t, alice, path, aliceToken)
	own.Body.Close()
	require.Equal(t, http.StatusOK, own.StatusCode)
}
