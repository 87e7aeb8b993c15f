package modules

import (
	"strings"

	"lawwarden.io/warden/internal/api/handlers"
	"lawwarden.io/warden/internal/api/middleware"
	"lawwarden.io/warden/internal/config"
)

// JWTConfig builds the API token configuration from security settings.
func JWTConfig(cfg *config.Config) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.Security.JWTVerificationKeys))
	for _, key := range cfg.Security.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.Security.JWTSigningKey),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.Security.JWTIssuer,
		ExpiresIn:        cfg.Server.TokenTTL,
	}
}

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Checks: map[string]handlers.Pinger{},
	}
	if infra.DB != nil {
		deps.Checks["database"] = infra.DB
		deps.Inbox = infra.DB.Queries
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
