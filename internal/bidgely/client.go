// Package bidgely retrieves usage, cost, forecast and itemization data for one
// utility account from the Bidgely usage service.
//
// A Client is bound to one utility backend and one set of credentials. Login
// must succeed before any data operation; data operations may run
// concurrently with each other but not with Login.
package bidgely

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/apierrors"
	"github.com/jgoulah/bidgely/internal/metrics"
	"github.com/jgoulah/bidgely/internal/utility"
)

// DefaultBaseURL is the North America read API
const DefaultBaseURL = "https://naapi-read.bidgely.com"

// DefaultStart is the earliest instant the usage service is asked for when
// the caller has no preference
var DefaultStart = time.Unix(967231641, 0)

// DefaultEnd returns the latest complete data point the service offers,
// which is up to the previous day
func DefaultEnd() time.Time {
	return time.Now().AddDate(0, 0, -1)
}

// Options tune a Client. The zero value is usable.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Collector

	// MaxConcurrency bounds concurrent window fetches; 0 means unbounded
	MaxConcurrency int
	// IncludePartialWindow appends the trailing window shorter than one
	// partition step that DAY and HOUR ranges otherwise drop
	IncludePartialWindow bool
}

// Client is one authenticated account session
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
	metrics    *metrics.Collector
	location   *time.Location

	maxConcurrency       int
	includePartialWindow bool

	utility   utility.Utility
	username  string
	password  string
	accountID string

	// set together by Login
	userID      string
	bearerToken string
}

// New creates an unauthenticated client for the given utility backend
func New(u utility.Utility, username, password, accountID string, opts Options) (*Client, error) {
	if u == nil {
		return nil, fmt.Errorf("utility is required")
	}
	loc, err := utility.Location(u)
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient:           opts.HTTPClient,
		baseURL:              strings.TrimSuffix(opts.BaseURL, "/"),
		logger:               opts.Logger,
		metrics:              opts.Metrics,
		location:             loc,
		maxConcurrency:       opts.MaxConcurrency,
		includePartialWindow: opts.IncludePartialWindow,
		utility:              u,
		username:             username,
		password:             password,
		accountID:            accountID,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	return c, nil
}

// Utility returns the backend the client logs in through
func (c *Client) Utility() utility.Utility { return c.utility }

// UserID returns the service-assigned user id, empty before Login
func (c *Client) UserID() string { return c.userID }

// LoggedIn reports whether Login has succeeded
func (c *Client) LoggedIn() bool { return c.userID != "" && c.bearerToken != "" }

// Login authenticates through the utility backend. On failure the client is
// left unauthenticated and the backend's error kind is propagated.
func (c *Client) Login(ctx context.Context) error {
	c.userID, c.bearerToken = "", ""

	userID, token, err := c.utility.Login(ctx, c.httpClient, c.username, c.password, c.accountID)
	if err == nil && (userID == "" || token == "") {
		err = &apierrors.AuthError{Endpoint: c.utility.Name(), Message: "login returned an empty session"}
	}
	c.metrics.ObserveLogin(c.utility.ID(), err)
	if err != nil {
		if !errors.Is(err, apierrors.ErrInvalidAuth) && !errors.Is(err, apierrors.ErrCannotConnect) {
			err = &apierrors.AuthError{Endpoint: c.utility.Name(), Message: "login failed", Err: err}
		}
		return fmt.Errorf("logging in to %s: %w", c.utility.Name(), err)
	}

	c.userID, c.bearerToken = userID, token
	c.logger.Debug().Str("user_id", userID).Str("utility", c.utility.ID()).Msg("logged in")
	return nil
}

func (c *Client) requireLogin() error {
	if !c.LoggedIn() {
		return apierrors.ErrNotLoggedIn
	}
	return nil
}

// getJSON performs one authenticated GET and decodes the body into out.
// endpoint labels metrics and errors.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, time.Since(started))
		return apierrors.NewTransportError(path, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apierrors.NewStatusError(resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apierrors.ConnectError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}
