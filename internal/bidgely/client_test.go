package bidgely

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/apierrors"
)

type fakeUtility struct {
	userID string
	token  string
	err    error
	calls  atomic.Int32
}

func (f *fakeUtility) ID() string       { return "Fake" }
func (f *fakeUtility) Name() string     { return "Fake Utility" }
func (f *fakeUtility) Timezone() string { return "America/Toronto" }

func (f *fakeUtility) Login(ctx context.Context, client *http.Client, username, password, accountID string) (string, string, error) {
	f.calls.Add(1)
	return f.userID, f.token, f.err
}

// newTestClient returns a logged-in client talking to handler
func newTestClient(t *testing.T, handler http.Handler, opts Options) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts.BaseURL = server.URL
	opts.HTTPClient = server.Client()
	opts.Logger = zerolog.Nop()

	c, err := New(&fakeUtility{userID: "user-1", token: "tok"}, "user", "pw", "123", opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// echoWindowHandler answers every usage query with one read spanning the
// requested range
func echoWindowHandler(delay func(start time.Time) time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startUnix, _ := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
		endUnix, _ := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
		start, end := time.Unix(startUnix, 0).UTC(), time.Unix(endUnix, 0).UTC()
		if delay != nil {
			time.Sleep(delay(start))
		}
		writeJSON(w, map[string]any{
			"payload": []map[string]any{{
				"intervalStartDate":      start.Format(time.RFC3339),
				"intervalEndDate":        end.Format(time.RFC3339),
				"consumption":            1.5,
				"cost":                   0.25,
				"temperature":            nil,
				"itemizationDetailsList": nil,
			}},
		})
	}
}

func TestNew_RequiresUtility(t *testing.T) {
	if _, err := New(nil, "u", "p", "1", Options{}); err == nil {
		t.Fatal("expected error for nil utility")
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(&fakeUtility{}, "u", "p", "1", Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.location.String() != "America/Toronto" {
		t.Errorf("location = %s", c.location)
	}
	if c.LoggedIn() || c.UserID() != "" {
		t.Error("new client should not be logged in")
	}
}

func TestLogin_Success(t *testing.T) {
	u := &fakeUtility{userID: "abc", token: "xyz"}
	c, _ := New(u, "u", "p", "1", Options{Logger: zerolog.Nop()})

	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if c.UserID() != "abc" || c.bearerToken != "xyz" {
		t.Errorf("got user %q token %q", c.UserID(), c.bearerToken)
	}
	if c.Utility() != u {
		t.Error("Utility() returned a different backend")
	}
}

func TestLogin_FailureLeavesClientUnauthenticated(t *testing.T) {
	u := &fakeUtility{userID: "abc", token: "xyz"}
	c, _ := New(u, "u", "p", "1", Options{Logger: zerolog.Nop()})
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	u.err = &apierrors.AuthError{StatusCode: 401, Message: "bad password"}
	err := c.Login(context.Background())
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
	if c.LoggedIn() {
		t.Error("client still logged in after failed login")
	}
}

func TestLogin_PropagatesConnectivityFailure(t *testing.T) {
	u := &fakeUtility{err: apierrors.NewTransportError("sso", errors.New("connection refused"))}
	c, _ := New(u, "u", "p", "1", Options{Logger: zerolog.Nop()})

	err := c.Login(context.Background())
	if !errors.Is(err, apierrors.ErrCannotConnect) {
		t.Fatalf("expected ErrCannotConnect, got %v", err)
	}
}

func TestLogin_UnclassifiedErrorIsAuthFailure(t *testing.T) {
	u := &fakeUtility{err: errors.New("boom")}
	c, _ := New(u, "u", "p", "1", Options{Logger: zerolog.Nop()})

	if err := c.Login(context.Background()); !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
}

func TestLogin_EmptySessionIsAuthFailure(t *testing.T) {
	c, _ := New(&fakeUtility{userID: "abc"}, "u", "p", "1", Options{Logger: zerolog.Nop()})

	if err := c.Login(context.Background()); !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
}

func TestDataCallsRequireLogin(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c, _ := New(&fakeUtility{}, "u", "p", "1", Options{BaseURL: server.URL, Logger: zerolog.Nop()})
	ctx := context.Background()
	now := time.Now()

	checks := map[string]error{}
	_, checks["Fetch"] = c.Fetch(ctx, "ELECTRIC", "month", now.AddDate(0, -1, 0), now, true)
	_, checks["GetUsageData"] = c.GetUsageData(ctx, "ELECTRIC", "hour", now.AddDate(0, 0, -3), now, true)
	_, checks["GetForecast"] = c.GetForecast(ctx, "ELECTRIC", 1)
	_, checks["GetBreakdown"] = c.GetBreakdown(ctx, now.AddDate(-1, 0, 0), now)

	for name, err := range checks {
		if !errors.Is(err, apierrors.ErrNotLoggedIn) {
			t.Errorf("%s: expected ErrNotLoggedIn, got %v", name, err)
		}
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times before login", calls.Load())
	}
}

func TestGetJSON_SendsBearerToken(t *testing.T) {
	var auth atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{"payload": []any{}})
	}), Options{})

	if _, err := c.Fetch(context.Background(), "ELECTRIC", "month", DefaultStart, DefaultEnd(), true); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got, _ := auth.Load().(string); got != "Bearer tok" {
		t.Errorf("authorization = %q", got)
	}
}

func TestGetJSON_MalformedBodyIsConnectFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}), Options{})

	_, err := c.Fetch(context.Background(), "ELECTRIC", "month", DefaultStart, DefaultEnd(), true)
	if !errors.Is(err, apierrors.ErrCannotConnect) {
		t.Fatalf("expected ErrCannotConnect, got %v", err)
	}
}
