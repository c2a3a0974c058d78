// Package memory - хранилище в памяти с теми же контрактами, что и PostgreSQL.
// Транзакция работает над снимком состояния под общей блокировкой и
// подменяет состояние только при успешном завершении.
package memory

import (
	"context"
	"sync"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/google/uuid"
)

type state struct {
	users        map[uuid.UUID]domain.User
	agencies     map[uuid.UUID]domain.Agency
	certificates map[uuid.UUID]domain.Certificate
}

func newState() *state {
	return &state{
		users:        make(map[uuid.UUID]domain.User),
		agencies:     make(map[uuid.UUID]domain.Agency),
		certificates: make(map[uuid.UUID]domain.Certificate),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.agencies {
		out.agencies[k] = v
	}
	for k, v := range s.certificates {
		out.certificates[k] = v
	}
	return out
}

// Store - in-memory реализация repository.Store
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{state: newState()}
}

// Repositories возвращает репозитории, где каждая операция атомарна сама по себе
func (s *Store) Repositories() repository.Repositories {
	return newRepositories(&handle{store: s})
}

// RunInTx выполняет fn над копией состояния; транзакции выполняются строго по одной
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(newRepositories(&handle{tx: work})); err != nil {
		return err
	}

	// panic в fn сюда не доходит - состояние остается прежним
	s.state = work
	return nil
}

func newRepositories(h *handle) repository.Repositories {
	return repository.Repositories{
		Users:        &userRepository{h: h},
		Agencies:     &agencyRepository{h: h},
		Certificates: &certificateRepository{h: h},
	}
}

// handle дает доступ к состоянию: внутри транзакции - к снимку, иначе - под блокировкой
type handle struct {
	store *Store
	tx    *state
}

func (h *handle) run(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.state)
}
