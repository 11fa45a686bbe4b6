package ws

import (
	"errors"

	"github.com/pliu/courier/internal/auth"
	"github.com/pliu/courier/internal/models"
	"github.com/pliu/courier/internal/store"
)

// ErrAuth is returned for any credential the gate rejects. The connection is
// closed before it ever reaches the registry.
var ErrAuth = errors.New("authentication failed")

// SessionGate validates a connection's credential at handshake time.
type SessionGate struct {
	store  store.Store
	secret string
}

func NewSessionGate(st store.Store, secret string) *SessionGate {
	return &SessionGate{store: st, secret: secret}
}

// Authenticate verifies the raw bearer token and resolves the user it names.
// A token for a user that no longer exists is invalid.
func (g *SessionGate) Authenticate(rawToken string) (*models.User, error) {
	if rawToken == "" {
		return nil, ErrAuth
	}
	claims, err := auth.VerifyToken(g.secret, rawToken)
	if err != nil {
		return nil, ErrAuth
	}
	user, err := g.store.GetUserByID(claims.UserID)
	if err != nil {
		return nil, ErrAuth
	}
	return user, nil
}
