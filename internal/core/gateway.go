package core

import (
	"github.com/rs/zerolog"
)

// Gateway creates sessions bound to a registry and an identity verifier.
type Gateway struct {
	registry *Registry
	verifier IdentityVerifier
	cfg      SessionConfig
	logger   *zerolog.Logger
}

// NewGateway creates a gateway. Zero config fields take defaults.
func NewGateway(registry *Registry, verifier IdentityVerifier, cfg SessionConfig, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Gateway{
		registry: registry,
		verifier: verifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Open creates a session over t in StateConnecting. The caller must run it
// with Session.Run.
func (g *Gateway) Open(t Transport) *Session {
	return newSession(g.registry, g.verifier, t, g.cfg, g.logger)
}

// Registry returns the registry sessions register into.
func (g *Gateway) Registry() *Registry {
	return g.registry
}
