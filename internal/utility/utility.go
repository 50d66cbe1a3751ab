// Package utility defines the contract every utility backend implements and
// the registry the rest of the program resolves backends from.
package utility

import (
	"context"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"
)

// Utility is a utility company whose website login can be exchanged for a
// usage-service session. Implementations are stateless.
type Utility interface {
	// ID is the backend's stable identifier, e.g. "HydroOttawa".
	ID() string
	// Name is the distinct recognizable display name of the utility.
	Name() string
	// Timezone is the IANA zone the utility reports intervals in.
	Timezone() string
	// Login exchanges website credentials for the usage-service user id and
	// bearer token. Failures are *apierrors.AuthError or *apierrors.ConnectError.
	Login(ctx context.Context, client *http.Client, username, password, accountID string) (userID, token string, err error)
}

// Descriptor identifies a registered backend
type Descriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Describe returns the descriptor for u
func Describe(u Utility) Descriptor {
	return Descriptor{ID: u.ID(), Name: u.Name(), Timezone: u.Timezone()}
}

// Location loads the utility's timezone
func Location(u Utility) (*time.Location, error) {
	loc, err := time.LoadLocation(u.Timezone())
	if err != nil {
		return nil, fmt.Errorf("loading timezone for %s: %w", u.Name(), err)
	}
	return loc, nil
}
