package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/maestroprog/wschatserver/internal/store"
)

type fakeCache struct {
	values map[string]string
	err    error
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.values[key]
	return v, ok, nil
}

type fakeUserStore struct {
	users map[int64]*store.User
	err   error
}

func (s *fakeUserStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[id], nil
}

func (s *fakeUserStore) CreateUser(ctx context.Context, login string, admin bool) (*store.User, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeUserStore) Close() error { return nil }

func TestResolveSuccess(t *testing.T) {
	svc := NewService(
		&fakeCache{values: map[string]string{"chat-key-abc": "42"}},
		&fakeUserStore{users: map[int64]*store.User{42: {ID: 42, Login: "alice", Admin: true}}},
	)

	ident, found, err := svc.Resolve(context.Background(), "abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found {
		t.Fatalf("known key reported as a miss")
	}
	if ident.UserID != 42 || ident.Login != "alice" || !ident.Admin {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestResolveCacheMiss(t *testing.T) {
	svc := NewService(&fakeCache{}, &fakeUserStore{})

	_, found, err := svc.Resolve(context.Background(), "stale")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatalf("unknown key reported as found")
	}
}

func TestResolveUnknownUserIsMiss(t *testing.T) {
	svc := NewService(
		&fakeCache{values: map[string]string{"chat-key-abc": "42"}},
		&fakeUserStore{},
	)

	_, found, err := svc.Resolve(context.Background(), "abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatalf("key of a deleted user reported as found")
	}
}

func TestResolveBadCachedValue(t *testing.T) {
	svc := NewService(
		&fakeCache{values: map[string]string{"chat-key-abc": "not-a-number"}},
		&fakeUserStore{},
	)

	if _, _, err := svc.Resolve(context.Background(), "abc"); err == nil {
		t.Fatalf("corrupt cache entry did not error")
	}
}

func TestResolveInfrastructureErrors(t *testing.T) {
	cacheDown := NewService(&fakeCache{err: errors.New("cache down")}, &fakeUserStore{})
	if _, _, err := cacheDown.Resolve(context.Background(), "abc"); err == nil {
		t.Fatalf("cache failure did not error")
	}

	dbDown := NewService(
		&fakeCache{values: map[string]string{"chat-key-abc": "42"}},
		&fakeUserStore{err: errors.New("db down")},
	)
	if _, _, err := dbDown.Resolve(context.Background(), "abc"); err == nil {
		t.Fatalf("datastore failure did not error")
	}
}
