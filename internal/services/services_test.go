package services

import (
	"context"
	"errors"
	"time"

	"github.com/component-request-system/crs/internal/db/models"
	"github.com/component-request-system/crs/internal/store/memory"
)

var errStore = errors.New("store unavailable")

// failingUsers is a UserStore that always fails
type failingUsers struct{}

func (failingUsers) GetOrCreateUser(context.Context, *models.User) (*models.User, error) {
	return nil, errStore
}

// failingSeq is a SequenceAllocator that always fails
type failingSeq struct{}

func (failingSeq) NextRequestNumber(context.Context) (int64, error) { return 0, errStore }

// fixedSeq returns the same value every time
type fixedSeq int64

func (f fixedSeq) NextRequestNumber(context.Context) (int64, error) { return int64(f), nil }

// flakyKeys wraps the memory store and injects API key store failures
type flakyKeys struct {
	*memory.Store
	lookupErr   error
	lastUsedErr error
	lastUsed    []string
}

func (f *flakyKeys) GetActiveKeyOwner(ctx context.Context, hash string, now time.Time) (*models.APIKeyOwner, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.Store.GetActiveKeyOwner(ctx, hash, now)
}

func (f *flakyKeys) UpdateLastUsed(ctx context.Context, keyID string) error {
	f.lastUsed = append(f.lastUsed, keyID)
	if f.lastUsedErr != nil {
		return f.lastUsedErr
	}
	return f.Store.UpdateLastUsed(ctx, keyID)
}

// flakyRequests wraps the memory store and injects request store failures
type flakyRequests struct {
	*memory.Store
	err error
}

func (f *flakyRequests) CreateRequest(ctx context.Context, req *models.ComponentRequest) error {
	if f.err != nil {
		return f.err
	}
	return f.Store.CreateRequest(ctx, req)
}

func (f *flakyRequests) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.ComponentRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Store.ListRequests(ctx, filter)
}

func (f *flakyRequests) DeleteRequest(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.Store.DeleteRequest(ctx, id)
}

func syncSpawn(fn func()) { fn() }

func newTestCredentials(store *memory.Store) *Credentials {
	c := NewCredentials(NewDirectory(store), store, nil)
	c.spawn = syncSpawn
	return c
}

func newTestRequests(store *memory.Store) *Requests {
	return NewRequests(store, NewRequestIDGenerator(store), NewDirectory(store))
}
