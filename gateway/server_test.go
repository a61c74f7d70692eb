package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"libroreads/repositories"
	"libroreads/runtime"
	"libroreads/services"
)

type testAccount struct {
	ID    int
	Token string
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messages, err := repositories.NewMessageRepository(db, slog.Default(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	bus := runtime.NewDeliveryBus(slog.Default(), 16)
	server := NewServer(
		slog.Default(),
		services.NewChatService(slog.Default(), messages, users, bus, nil),
		services.NewSocialService(users, repositories.NewFollowRepository(db), repositories.NewBookshelfRepository(db)),
		services.NewAuthService(users, time.Hour),
		bus,
		nil,
		"*",
	)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func register(t *testing.T, ts *httptest.Server, username string) testAccount {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"ComplexPass123!"}`,
		username, username)
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payload struct {
		User struct {
			ID int `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotEmpty(t, payload.Token)
	return testAccount{ID: payload.User.ID, Token: payload.Token}
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func Test_Messaging_Flow_Over_HTTP(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	// Alice sends Bob a message.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", alice.Token, map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID, "content": "hello bob",
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	var sent struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&sent))
	resp.Body.Close()
	req.Equal("sent", sent.Status)

	// Bob sees one unread from Alice.
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/messages/unread-count/%d", ts.URL, bob.ID), bob.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var badge struct {
		UnreadCount int `json:"unreadCount"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&badge))
	resp.Body.Close()
	req.Equal(1, badge.UnreadCount)

	// Bob opens the conversation and marks it read.
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/messages/conversation/%d/%d", ts.URL, alice.ID, bob.ID), bob.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var history []struct {
		Content string `json:"content"`
		Status  string `json:"status"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	req.Len(history, 1)
	req.Equal("hello bob", history[0].Content)

	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/messages/mark-as-read?senderId=%d&receiverId=%d", ts.URL, alice.ID, bob.ID),
		bob.Token, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/messages/unread-count/%d", ts.URL, bob.ID), bob.Token, nil)
	req.NoError(json.NewDecoder(resp.Body).Decode(&badge))
	resp.Body.Close()
	req.Zero(badge.UnreadCount)

	// Alice's inbox shows the thread.
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/messages/chats/%d", ts.URL, alice.ID), alice.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var inbox []struct {
		Content string `json:"content"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&inbox))
	resp.Body.Close()
	req.Len(inbox, 1)
}

func Test_Protected_Routes_Require_Token(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	// No token at all.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", "", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID, "content": "hi",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Garbage token.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", "not-a-jwt", map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID, "content": "hi",
	})
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Valid token of the wrong user.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", bob.Token, map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID, "content": "hi",
	})
	req.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The reader, not the sender, marks a conversation read.
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/messages/mark-as-read?senderId=%d&receiverId=%d", ts.URL, alice.ID, bob.ID),
		alice.Token, nil)
	req.Equal(http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func Test_Error_Taxonomy_Maps_To_Status_Codes(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	// Duplicate registration -> conflict.
	body := `{"username":"alice","email":"alice@example.com","password":"ComplexPass123!"}`
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	req.NoError(err)
	req.Equal(http.StatusConflict, resp.StatusCode)
	var errPayload struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&errPayload))
	resp.Body.Close()
	req.Equal("conflict", errPayload.Error.Kind)

	// Unknown receiver -> not found.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", alice.Token, map[string]any{
		"senderId": alice.ID, "receiverId": 999, "content": "hi",
	})
	req.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Blank content -> bad request.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", alice.Token, map[string]any{
		"senderId": alice.ID, "receiverId": alice.ID + 1, "content": "  ",
	})
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Bad credentials -> unauthorized.
	resp, err = http.Post(ts.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"email":"alice@example.com","password":"WrongPass123!"}`))
	req.NoError(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func Test_Follow_And_Shelf_Routes(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	resp := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/follows/%d/%d", ts.URL, alice.ID, bob.ID), alice.Token, nil)
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Re-following conflicts instead of unfollowing.
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/follows/%d/%d", ts.URL, alice.ID, bob.ID), alice.Token, nil)
	req.Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/follows/following/%d", ts.URL, alice.ID), alice.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var following []struct {
		Username string `json:"username"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&following))
	resp.Body.Close()
	req.Len(following, 1)
	req.Equal("bob", following[0].Username)

	resp = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/api/follows/%d/%d", ts.URL, alice.ID, bob.ID), alice.Token, nil)
	req.Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Shelves.
	resp = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/shelves/%d/fav", ts.URL, alice.ID), alice.Token,
		map[string]string{"bookId": "isbn-001"})
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/shelves/%d/fav", ts.URL, alice.ID), alice.Token, nil)
	req.Equal(http.StatusOK, resp.StatusCode)
	var shelf []struct {
		BookID string `json:"bookId"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&shelf))
	resp.Body.Close()
	req.Len(shelf, 1)
	req.Equal("isbn-001", shelf[0].BookID)

	// Unknown shelf kind.
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/api/shelves/%d/wishlist", ts.URL, alice.ID), alice.Token, nil)
	req.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func Test_Event_Stream_Delivers_New_Messages(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	streamReq, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/api/events/%d", ts.URL, bob.ID), nil)
	req.NoError(err)
	streamReq.Header.Set("Authorization", "Bearer "+bob.Token)

	streamResp, err := http.DefaultClient.Do(streamReq)
	req.NoError(err)
	defer streamResp.Body.Close()
	req.Equal(http.StatusOK, streamResp.StatusCode)
	req.Equal("text/event-stream", streamResp.Header.Get("Content-Type"))

	frames := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(streamResp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				frames <- strings.TrimPrefix(line, "data: ")
			}
		}
		close(frames)
	}()

	// Give the stream a moment to subscribe before publishing.
	time.Sleep(100 * time.Millisecond)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/messages/send", alice.Token, map[string]any{
		"senderId": alice.ID, "receiverId": bob.ID, "content": "live hello",
	})
	req.Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	read := func() eventEnvelope {
		select {
		case frame, ok := <-frames:
			req.True(ok, "stream closed before the expected frame")
			var envelope eventEnvelope
			req.NoError(json.Unmarshal([]byte(frame), &envelope))
			return envelope
		case <-time.After(5 * time.Second):
			t.Fatal("no event frame within 5s")
			return eventEnvelope{}
		}
	}

	first := read()
	req.Equal("newMessage", first.Type)
	second := read()
	req.Equal("unreadCounts", second.Type)
}
