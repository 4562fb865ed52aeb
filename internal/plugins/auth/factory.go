package auth

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatekeeper/internal/config"
	"github.com/keyxmakerx/gatekeeper/internal/database"
)

// Deps are the collaborators the authenticator variants may need.
type Deps struct {
	Users UserFinder
	DB    *database.DB
	Redis *redis.Client
}

// New builds the authenticator selected by cfg.Type. AUTH_TYPE=none yields
// a nil Authenticator and the auth middleware lets every request through.
func New(cfg config.AuthConfig, deps Deps) (Authenticator, error) {
	base := NewAuth(cfg.SessionName)

	switch cfg.Type {
	case config.AuthNone:
		return nil, nil
	case config.AuthBase:
		return base, nil
	case config.AuthBasic:
		return NewBasicAuth(base, deps.Users), nil
	case config.AuthSession:
		return NewSessionAuth(base, NewMemoryStore(), deps.Users), nil
	case config.AuthSessionExp:
		return NewSessionAuth(base, NewMemoryStore(), deps.Users,
			WithDuration(cfg.SessionDuration)), nil
	case config.AuthSessionDB:
		if deps.DB == nil {
			return nil, fmt.Errorf("%s requires a database", cfg.Type)
		}
		return NewSessionAuth(base, NewDBStore(deps.DB, cfg.SessionDuration), deps.Users,
			WithDuration(cfg.SessionDuration)), nil
	case config.AuthSessionRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("%s requires redis", cfg.Type)
		}
		return NewSessionAuth(base, NewRedisStore(deps.Redis, cfg.SessionDuration), deps.Users,
			WithDuration(cfg.SessionDuration)), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
