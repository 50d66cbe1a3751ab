package hydroottawa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/internal/cognito"
	"github.com/jgoulah/bidgely/internal/rijndael"
)

type fakeAuthenticator struct {
	tokens *cognito.Tokens
	err    error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, username, password string) (*cognito.Tokens, error) {
	return f.tokens, f.err
}

func newTestUtility(url string, auth cognito.Authenticator) *HydroOttawa {
	h := New(zerolog.Nop())
	h.ssoURL = url
	h.auth = auth
	return h
}

func openSessionToken(t *testing.T, token string) []byte {
	t.Helper()
	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("session token is not base64: %v", err)
	}
	plain, err := rijndael.DecryptCBC([]byte(cipherKey), []byte(cipherIV), sealed)
	if err != nil {
		t.Fatalf("decrypting session token: %v", err)
	}
	return bytes.TrimRight(plain, "\x00")
}

func TestMarshalPayloadGolden(t *testing.T) {
	got, err := marshalPayload(newPayload("42", "A", "R"))
	if err != nil {
		t.Fatalf("marshalPayload failed: %v", err)
	}
	want := `{"accountId":"42","accessToken":"A","refreshToken":"R","language":"en","requestType":"","identityType":"cognito","impersonator":""}`
	if string(got) != want {
		t.Errorf("payload mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestMarshalPayloadDoesNotEscapeHTML(t *testing.T) {
	got, err := marshalPayload(newPayload("<1&2>", "A", "R"))
	if err != nil {
		t.Fatalf("marshalPayload failed: %v", err)
	}
	if !bytes.Contains(got, []byte(`"accountId":"<1&2>"`)) {
		t.Errorf("unexpected escaping: %s", got)
	}
}

func TestMarshalPayloadEscapesNonASCII(t *testing.T) {
	got, err := marshalPayload(newPayload("caf\u00e9\U0001F600", "A", "R"))
	if err != nil {
		t.Fatalf("marshalPayload failed: %v", err)
	}
	want := `"accountId":"caf\u00e9\ud83d\ude00"`
	if !bytes.Contains(got, []byte(want)) {
		t.Errorf("got %s, want it to contain %s", got, want)
	}
	var back federationPayload
	if err := json.Unmarshal(got, &back); err != nil || back.AccountID != "caf\u00e9\U0001F600" {
		t.Errorf("escaped payload does not decode back: %q, %v", back.AccountID, err)
	}
}

func TestSealPayloadGolden(t *testing.T) {
	payload, err := marshalPayload(newPayload("42", "A", "R"))
	if err != nil {
		t.Fatalf("marshalPayload failed: %v", err)
	}
	got, err := sealPayload(payload)
	if err != nil {
		t.Fatalf("sealPayload failed: %v", err)
	}
	want := "qBfj6hQiVuXvJ5ycR2LQTcNiS3zpErXh76HZiGRlaX6T/8KKtB6CnnDgXPHJJ6NpR0xuM02SJeoUVRX662pfbqi2YF4PxJMw5VBArrjBcD6Wmr/uMa0Mj8PbFDOdP3Z++b5R2vfJlsCfYEWYjuXjU7xkYmfF+Zukzp6Ciz1MpHlyFeYbarXMB6UHKATa5FejpcOIK2pJLaxrm1l0DJ2Beg=="
	if got != want {
		t.Errorf("session token mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSealPayloadIsDeterministic(t *testing.T) {
	payload, _ := marshalPayload(newPayload("42", "A", "R"))

	first, err := sealPayload(payload)
	if err != nil {
		t.Fatalf("sealPayload failed: %v", err)
	}
	second, _ := sealPayload(payload)
	if first != second {
		t.Error("sealing the same payload twice produced different tokens")
	}
	if got := openSessionToken(t, first); !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: %s", got)
	}
}

func TestSealPayloadPadsShortInput(t *testing.T) {
	token, err := sealPayload([]byte("{}"))
	if err != nil {
		t.Fatalf("sealPayload failed: %v", err)
	}
	sealed, _ := base64.StdEncoding.DecodeString(token)
	if len(sealed) != 32 {
		t.Fatalf("sealed length = %d, want 32", len(sealed))
	}
	plain, _ := rijndael.DecryptCBC([]byte(cipherKey), []byte(cipherIV), sealed)
	want := append([]byte("{}"), bytes.Repeat([]byte{padByte}, 30)...)
	if !bytes.Equal(plain, want) {
		t.Errorf("plaintext = %q, want %q", plain, want)
	}
}

func TestLogin_Success(t *testing.T) {
	var followed atomic.Bool
	var sessionToken atomic.Value
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dashboard" {
			followed.Store(true)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		sessionToken.Store(r.PostForm.Get("sessionToken"))

		w.Header().Set("Location", server.URL+"/dashboard?uuid=abc-123&token=xyz789&sso-token=s3cr3t")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	h := newTestUtility(server.URL+"/api/v1/sso/dashboard", &fakeAuthenticator{
		tokens: &cognito.Tokens{AccessToken: "access", RefreshToken: "refresh"},
	})

	userID, token, err := h.Login(context.Background(), server.Client(), "user@example.com", "pw", "1234567")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if userID != "abc-123" || token != "xyz789" {
		t.Errorf("got user %q token %q", userID, token)
	}
	if followed.Load() {
		t.Error("redirect was followed")
	}

	posted, _ := sessionToken.Load().(string)
	var payload federationPayload
	if err := json.Unmarshal(openSessionToken(t, posted), &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload.AccountID != "1234567" || payload.AccessToken != "access" || payload.RefreshToken != "refresh" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if payload.IdentityType != "cognito" || payload.Language != "en" {
		t.Errorf("unexpected fixed fields: %+v", payload)
	}
}

func TestLogin_NonRedirectIsAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("login page"))
	}))
	defer server.Close()

	h := newTestUtility(server.URL, &fakeAuthenticator{tokens: &cognito.Tokens{AccessToken: "a", RefreshToken: "r"}})

	_, _, err := h.Login(context.Background(), server.Client(), "user", "pw", "1")
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
	if apierrors.StatusCode(err) != http.StatusOK {
		t.Errorf("status = %d, want 200", apierrors.StatusCode(err))
	}
}

func TestLogin_UnparsableLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.com/error?reason=expired")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	h := newTestUtility(server.URL, &fakeAuthenticator{tokens: &cognito.Tokens{AccessToken: "a", RefreshToken: "r"}})

	_, _, err := h.Login(context.Background(), server.Client(), "user", "pw", "1")
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
}

func TestLogin_IdentityFailureSkipsFederation(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	h := newTestUtility(server.URL, &fakeAuthenticator{err: errors.New("srp: bad password")})

	_, _, err := h.Login(context.Background(), server.Client(), "user", "pw", "1")
	if !errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("federation endpoint called %d times", calls.Load())
	}
}

func TestLogin_ConnectivityFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	h := newTestUtility(url, &fakeAuthenticator{tokens: &cognito.Tokens{AccessToken: "a", RefreshToken: "r"}})

	_, _, err := h.Login(context.Background(), http.DefaultClient, "user", "pw", "1")
	if !errors.Is(err, apierrors.ErrCannotConnect) {
		t.Fatalf("expected ErrCannotConnect, got %v", err)
	}
	if errors.Is(err, apierrors.ErrInvalidAuth) {
		t.Error("connectivity failure must not be reported as invalid auth")
	}
}

func TestLogin_IdentityConnectivityFailurePropagates(t *testing.T) {
	h := newTestUtility("http://unused.invalid", &fakeAuthenticator{
		err: apierrors.NewTransportError("cognito-idp", context.DeadlineExceeded),
	})

	_, _, err := h.Login(context.Background(), nil, "user", "pw", "1")
	if !errors.Is(err, apierrors.ErrCannotConnect) {
		t.Fatalf("expected ErrCannotConnect, got %v", err)
	}
}
