// Package config loads the controller's process configuration from the
// environment, the way the rest of this codebase's ambient stack does.
package config

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

// Env is the controller's full environment-sourced configuration.
type Env struct {
	ID             string `env:"SECTORCTL_ID,default="`
	ControllerIP   string `env:"SECTORCTL_CONTROLLER_IP,default=0.0.0.0"`
	ControllerPort int    `env:"SECTORCTL_CONTROLLER_PORT,default=12345"`
	// CentralIP has no usable default; LoadEnv leaves it empty so a CLI flag
	// can still supply it, and the serve command rejects an empty value.
	CentralIP      string `env:"SECTORCTL_CENTRAL_IP,default="`
	CentralPort    int    `env:"SECTORCTL_CENTRAL_PORT,default=12345"`
	DBLocation     string `env:"SECTORCTL_DB_LOCATION,default=:memory:"`
	LogLevel       string `env:"SECTORCTL_LOG_LEVEL,default=info"`
}

// LoadEnv reads and validates the environment into an Env.
func LoadEnv(ctx context.Context) (Env, error) {
	var env Env
	if err := envconfig.Process(ctx, &env); err != nil {
		return Env{}, errors.Wrap(err, "config: process environment")
	}
	return env, nil
}

// ControllerID parses the configured id, minting a fresh random one when
// unset so a first boot with an empty DBLocation can still come up.
func (e Env) ControllerID() (uuid.UUID, error) {
	if e.ID == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "config: parse SECTORCTL_ID")
	}
	return id, nil
}
