package hydroottawa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/internal/cognito"
	"github.com/jgoulah/bidgely/internal/utility"
)

const ssoURL = "https://usage.hydroottawa.com/api/v1/sso/dashboard"

// Hydro Ottawa's Cognito user pool
var pool = cognito.Pool{
	Region:   "ca-central-1",
	PoolID:   "ca-central-1_VYnwOhMBK",
	ClientID: "7scfcis6ecucktmp4aqi1jk6cb",
}

var redirectPattern = regexp.MustCompile(`uuid=(.*)&token=(.*)&sso-token`)

// HydroOttawa logs in through Hydro Ottawa's Cognito pool and federates the
// resulting tokens into a usage-service session
type HydroOttawa struct {
	ssoURL string
	auth   cognito.Authenticator
	logger zerolog.Logger
}

var _ utility.Utility = (*HydroOttawa)(nil)

func New(logger zerolog.Logger) *HydroOttawa {
	return &HydroOttawa{
		ssoURL: ssoURL,
		auth:   cognito.NewSRPAuthenticator(pool),
		logger: logger.With().Str("utility", "HydroOttawa").Logger(),
	}
}

func (h *HydroOttawa) ID() string { return "HydroOttawa" }

func (h *HydroOttawa) Name() string { return "Hydro Ottawa" }

func (h *HydroOttawa) Timezone() string { return "America/Toronto" }

// Login returns the usage-service user id and bearer token
func (h *HydroOttawa) Login(ctx context.Context, client *http.Client, username, password, accountID string) (string, string, error) {
	tokens, err := h.auth.Authenticate(ctx, username, password)
	if err != nil {
		h.logger.Debug().Str("username", username).Err(err).Msg("identity exchange failed")
		if errors.Is(err, apierrors.ErrCannotConnect) || errors.Is(err, apierrors.ErrInvalidAuth) {
			return "", "", fmt.Errorf("identity exchange: %w", err)
		}
		return "", "", &apierrors.AuthError{Endpoint: "identity provider", Message: "identity exchange failed", Err: err}
	}

	payload, err := marshalPayload(newPayload(accountID, tokens.AccessToken, tokens.RefreshToken))
	if err != nil {
		return "", "", fmt.Errorf("encoding federation payload: %w", err)
	}
	sessionToken, err := sealPayload(payload)
	if err != nil {
		return "", "", fmt.Errorf("sealing federation payload: %w", err)
	}

	location, err := h.federate(ctx, client, sessionToken)
	if err != nil {
		h.logger.Debug().Str("username", username).Err(err).Msg("login failed")
		return "", "", err
	}

	m := redirectPattern.FindStringSubmatch(location)
	if m == nil {
		h.logger.Debug().Str("username", username).Msg("login failed: unexpected redirect")
		return "", "", &apierrors.AuthError{
			StatusCode: http.StatusFound,
			Endpoint:   h.ssoURL,
			Message:    "redirect does not carry a session",
		}
	}

	userID, bearerToken := m[1], m[2]
	h.logger.Debug().Str("user_id", userID).Msg("successful token retrieved")
	return userID, bearerToken, nil
}

// federate posts the sealed payload and returns the redirect target
func (h *HydroOttawa) federate(ctx context.Context, client *http.Client, sessionToken string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	noRedirect := *client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	form := url.Values{}
	form.Set("sessionToken", sessionToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.ssoURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", apierrors.NewTransportError(h.ssoURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &apierrors.AuthError{
			StatusCode: resp.StatusCode,
			Endpoint:   h.ssoURL,
			Message:    fmt.Sprintf("expected redirect from SSO endpoint: %s", strings.TrimSpace(string(body))),
		}
	}

	return resp.Header.Get("Location"), nil
}
