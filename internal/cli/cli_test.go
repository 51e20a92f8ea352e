package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/white/crm-backend/pkg/crmclient"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	app   *App
	store *crmclient.MemoryStore
	out   *bytes.Buffer
	err   *bytes.Buffer
}

func setupTestApp(t *testing.T, h http.HandlerFunc, stdin string) *testEnv {
	t.Helper()
	t.Setenv("CRMCTL_NO_KEYRING", "1")

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := crmclient.NewMemoryStore()
	client := crmclient.New(srv.URL, store)

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app := NewApp(client, strings.NewReader(stdin), out, errOut)
	app.Now = func() time.Time { return testNow }
	app.Loc = time.UTC
	app.Tick = time.Millisecond
	return &testEnv{app: app, store: store, out: out, err: errOut}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.Save(e.app.Client.BaseURL(), &crmclient.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))
}

func executeCommand(e *testEnv, args ...string) error {
	cmd := NewRootCmd(e.app)
	cmd.SetArgs(args)
	cmd.SetOut(e.out)
	cmd.SetErr(e.err)
	return cmd.ExecuteContext(context.Background())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginWaitsOutLockoutThenRetries(t *testing.T) {
	var calls int32
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Equal(t, "wrong", body["password"])
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"message": "Too many login attempts", "retryAfter": 2, "limit": 5, "current": 6,
			})
			return
		}
		assert.Equal(t, "right", body["password"])
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":   map[string]string{"id": "u1", "email": "rep@example.com", "name": "Rep"},
			"tokens": map[string]string{"access_token": "a", "refresh_token": "r"},
		})
	}, "rep@example.com\nwrong\nright\n")

	var mu sync.Mutex
	clock := time.Now()
	env.app.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, executeCommand(env, "login"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Contains(t, env.err.String(), "Too many login attempts (6 of 5). Try again in")
	assert.Contains(t, env.err.String(), "You can try again now.")
	assert.Contains(t, env.out.String(), "Logged in as Rep (rep@example.com)")

	sess, err := env.app.Client.Session()
	require.NoError(t, err)
	assert.Equal(t, "a", sess.AccessToken)
}

func TestLoginWithPasswordFlagStopsAfterLockout(t *testing.T) {
	var calls int32
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"retryAfter": 1, "limit": 5, "current": 7})
	}, "")
	env.app.Now = func() time.Time { return time.Now().Add(time.Hour) }

	err := executeCommand(env, "login", "-e", "rep@example.com", "--password", "pw")
	_, limited := crmclient.AsRateLimit(err)
	assert.True(t, limited)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 4, exitCode(err))
}

func TestActivitiesListShowsBadges(t *testing.T) {
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/activities", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("is_completed"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"activities": []map[string]interface{}{
				{"id": "a1", "type": "task", "subject": "Send proposal", "priority": "high", "due_date": "2026-03-01T17:00:00Z"},
				{"id": "a2", "type": "call", "subject": "Follow up", "scheduled_at": "2026-03-12T10:00:00Z",
					"custom_fields": map[string]interface{}{"call_duration": 125}},
			},
		})
	}, "")
	env.login(t)

	require.NoError(t, executeCommand(env, "activities", "list", "--open"))
	out := env.out.String()
	assert.Contains(t, out, "Send proposal")
	assert.Contains(t, out, "task,high,overdue")
	assert.Contains(t, out, "2026-03-12 10:00")
	assert.NotContains(t, out, "call,overdue")
}

func TestActivitiesCreateSubmitsFormBody(t *testing.T) {
	got := make(chan map[string]interface{}, 1)
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got <- body
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": "a9", "type": "task", "subject": "Send proposal"})
	}, "")
	env.login(t)

	err := executeCommand(env, "activities", "create",
		"-t", "task", "-s", "Send proposal",
		"--set", "due_date=2026-05-02T17:00",
		"--set", "estimated_hours=1.5",
		"--set", "description=",
		"--check", "draft", "--check", "review")
	require.NoError(t, err)
	body := <-got

	assert.Equal(t, "task", body["type"])
	assert.Equal(t, "Send proposal", body["subject"])
	assert.Equal(t, "2026-05-02T17:00:00Z", body["due_date"])
	assert.NotContains(t, body, "description")

	custom, ok := body["custom_fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.5, custom["estimated_hours"])
	checklist, ok := custom["checklist"].([]interface{})
	require.True(t, ok)
	assert.Len(t, checklist, 2)
	assert.Contains(t, env.out.String(), "Created task a9")
}

func TestActivitiesCreateRejectsUnknownField(t *testing.T) {
	var calls int32
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, "")
	env.login(t)

	err := executeCommand(env, "activities", "create", "-t", "call", "-s", "x", "--set", "bogus=1")
	require.Error(t, err)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestActivitiesCheckIsOneRequest(t *testing.T) {
	var calls int32
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v1/activities/a1/checklist", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, false, body["completed"])
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "a1", "type": "task", "subject": "Demo",
			"custom_fields": map[string]interface{}{
				"checklist": []map[string]interface{}{{"id": "c1", "text": "slides", "completed": false}},
			},
		})
	}, "")
	env.login(t)

	require.NoError(t, executeCommand(env, "activities", "check", "a1", "c1", "--undo"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, env.out.String(), "[ ] slides")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	tests := []struct {
		name      string
		stdin     string
		args      []string
		wantCalls int32
		wantErr   error
	}{
		{"no answer", "", []string{"activities", "delete", "a1"}, 0, errAborted},
		{"declined", "n\n", []string{"contacts", "delete", "c1"}, 0, errAborted},
		{"confirmed", "y\n", []string{"email", "delete", "e1"}, 1, nil},
		{"flag", "", []string{"users", "delete", "u1", "--yes"}, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(http.StatusNoContent)
			}, tt.stdin)
			env.login(t)

			err := executeCommand(env, tt.args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestInboxShowMarksUnreadReceived(t *testing.T) {
	var (
		mu     sync.Mutex
		marked []string
	)
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			mu.Lock()
			marked = append(marked, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		read := "2026-03-09T08:00:00Z"
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"conversations": []map[string]interface{}{{
				"key": "ana@example.com", "email": "ana@example.com", "name": "Ana Silva", "total": 3, "unread": 1,
				"messages": []map[string]interface{}{
					{"id": "e1", "direction": "send", "to_email": "ana@example.com", "subject": "Proposal", "message": "hi", "created_at": "2026-03-08T08:00:00Z"},
					{"id": "e2", "direction": "receive", "from_email": "ana@example.com", "subject": "Re: Proposal", "message": "thanks", "read_at": read, "created_at": "2026-03-09T07:00:00Z"},
					{"id": "e3", "direction": "receive", "from_email": "ana@example.com", "subject": "Re: Proposal", "message": "one more", "created_at": "2026-03-09T09:00:00Z"},
				},
			}},
		})
	}, "")
	env.login(t)

	require.NoError(t, executeCommand(env, "inbox", "show", "Ana@Example.com", "--mark-read"))
	mu.Lock()
	assert.Equal(t, []string{"/api/v1/email/e3/read"}, marked)
	mu.Unlock()
	out := env.out.String()
	assert.Contains(t, out, "Ana Silva <ana@example.com>")
	assert.NotContains(t, out, "[unread]")
}

func TestEmailSendSplitsRecipients(t *testing.T) {
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{"a@example.com", "b@example.com"}, body["to"])
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": "e1", "status": "sent", "is_bulk": true})
	}, "")
	env.login(t)

	require.NoError(t, executeCommand(env, "email", "send", "--to", "a@example.com, b@example.com", "-s", "News", "-m", "hello"))
	assert.Contains(t, env.out.String(), "Email e1 sent")
}

func TestExpiredSessionMessage(t *testing.T) {
	env := setupTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, "")
	env.login(t)

	err := executeCommand(env, "whoami")
	require.ErrorIs(t, err, crmclient.ErrUnauthorized)
	assert.Equal(t, "not logged in, run `crmctl login`", describe(err))
	assert.Equal(t, 3, exitCode(err))

	_, err = env.app.Client.Session()
	assert.ErrorIs(t, err, crmclient.ErrNoSession)
}

func TestDescribeServerErrors(t *testing.T) {
	assert.Equal(t, "subject is required",
		describe(&crmclient.APIError{Status: 400, Code: "VALIDATION_ERROR", Message: "subject is required"}))
	assert.Equal(t, "something went wrong on the server, try again later",
		describe(&crmclient.APIError{Status: 500, Message: "boom"}))
}
