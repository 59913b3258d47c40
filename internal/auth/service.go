// Package auth resolves opaque client keys into site identities and
// guards the admin API with bearer tokens.
package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/maestroprog/wschatserver/internal/chat"
	"github.com/maestroprog/wschatserver/internal/store"
)

// keyPrefix is prepended to the client-supplied ukey to form the cache key.
const keyPrefix = "chat-key-"

// KeyCache is the external credential cache: the site stores a decimal
// user id under "chat-key-<ukey>" when the user opens the chat.
type KeyCache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Service implements chat.Resolver over the credential cache and the
// user datastore.
type Service struct {
	cache KeyCache
	users store.UserStore
}

// NewService creates a new resolver service.
func NewService(cache KeyCache, users store.UserStore) *Service {
	return &Service{cache: cache, users: users}
}

// Resolve maps a ukey to an identity. A cache miss or an unknown user id
// is a plain miss (the session stays a guest, silently); a cache or
// datastore failure is an infrastructure error reported to the session.
func (s *Service) Resolve(ctx context.Context, ukey string) (chat.Identity, bool, error) {
	raw, ok, err := s.cache.Get(ctx, keyPrefix+ukey)
	if err != nil {
		return chat.Identity{}, false, fmt.Errorf("resolve ukey: %w", err)
	}
	if !ok {
		return chat.Identity{}, false, nil
	}

	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return chat.Identity{}, false, fmt.Errorf("resolve ukey: bad cached user id %q: %w", raw, err)
	}

	user, err := s.users.GetUserByID(ctx, uid)
	if err != nil {
		return chat.Identity{}, false, fmt.Errorf("resolve ukey: %w", err)
	}
	if user == nil {
		return chat.Identity{}, false, nil
	}

	return chat.Identity{
		UserID: user.ID,
		Login:  user.Login,
		Admin:  user.Admin,
	}, true, nil
}
