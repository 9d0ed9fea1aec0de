package session

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/keylock"
)

const lockPrefix = "session:"

// Manager serializes read-modify-write cycles on a session.
type Manager struct {
	repo  Repository
	locks *keylock.Locker
	now   func() time.Time
}

func NewManager(repo Repository, locks *keylock.Locker) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("session repository required")
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Manager{repo: repo, locks: locks, now: time.Now}, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*State, error) {
	return m.repo.Get(ctx, id)
}

// Update loads the session, applies fn and saves the result. Nothing is
// saved when fn returns an error; that error is returned as is.
func (m *Manager) Update(ctx context.Context, id string, fn func(*State) error) (*State, error) {
	unlock, err := m.locks.Lock(ctx, lockPrefix+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(state); err != nil {
		return state, err
	}
	state.UpdatedAt = m.now().UTC()
	if err := m.repo.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	unlock, err := m.locks.Lock(ctx, lockPrefix+id)
	if err != nil {
		return err
	}
	defer unlock()
	return m.repo.Delete(ctx, id)
}
