package workflow

import (
	"context"
	"errors"
	"sync"
)

// Store persistence errors.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrWorkflowExists   = errors.New("workflow already exists")
	ErrAlreadyCompleted = errors.New("workflow already completed")
)

// Store persists workflow state across Continue calls.
type Store interface {
	// Create stores a new workflow. The id must be unused.
	Create(ctx context.Context, state *State) error

	// Get returns the workflow with the given id.
	Get(ctx context.Context, id string) (*State, error)

	// Update overwrites an existing workflow.
	Update(ctx context.Context, state *State) error

	// CompleteOnce marks the workflow completed. Exactly one caller per
	// workflow succeeds; every later call returns ErrAlreadyCompleted.
	CompleteOnce(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store for single-node deployments and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*State
	completed map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*State),
		completed: make(map[string]struct{}),
	}
}

// Create stores a new workflow state.
func (s *MemoryStore) Create(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[state.ID]; exists {
		return ErrWorkflowExists
	}
	s.workflows[state.ID] = state.Clone()
	return nil
}

// Get returns a copy of the stored state; callers can mutate it freely.
func (s *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return state.Clone(), nil
}

// Update overwrites an existing workflow state.
func (s *MemoryStore) Update(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[state.ID]; !ok {
		return ErrWorkflowNotFound
	}
	s.workflows[state.ID] = state.Clone()
	return nil
}

// CompleteOnce is a check-and-set under the write lock, so concurrent
// completers serialize and exactly one wins.
func (s *MemoryStore) CompleteOnce(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrWorkflowNotFound
	}
	if _, done := s.completed[id]; done {
		return ErrAlreadyCompleted
	}
	s.completed[id] = struct{}{}
	return nil
}

var _ Store = (*MemoryStore)(nil)
