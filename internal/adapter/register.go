package adapter

import (
	"github.com/rs/zerolog"

	"github.com/jgoulah/bidgely/internal/adapter/hydroottawa"
	"github.com/jgoulah/bidgely/internal/utility"
)

// RegisterAll adds every supported utility backend to r
func RegisterAll(r *utility.Registry, logger zerolog.Logger) error {
	return r.Register(hydroottawa.New(logger))
}
