package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState(id string) *State {
	now := time.Now().UTC()
	return &State{
		ID:           id,
		Phase:        PhaseClassify,
		Entry:        testEntry(),
		ErrorContext: "error X",
		Iteration:    1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testState("w1")))
	assert.ErrorIs(t, s.Create(ctx, testState("w1")), ErrWorkflowExists)

	got, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, PhaseClassify, got.Phase)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	got.Phase = PhaseVerify
	require.NoError(t, s.Update(ctx, got))
	got2, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, PhaseVerify, got2.Phase)

	assert.ErrorIs(t, s.Update(ctx, testState("nope")), ErrWorkflowNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	state := testState("w1")
	state.History = []HistoryEntry{{Iteration: 1, Phase: PhaseClassify}}
	require.NoError(t, s.Create(ctx, state))

	// Mutating what Create was given or what Get returned must not leak
	// into the store.
	state.History[0].Iteration = 99
	got, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.History[0].Iteration)

	got.Phase = PhaseFailed
	got.History[0].Iteration = 42
	again, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, PhaseClassify, again.Phase)
	assert.Equal(t, 1, again.History[0].Iteration)
}

func TestMemoryStoreCompleteOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, s.CompleteOnce(ctx, "nope"), ErrWorkflowNotFound)

	require.NoError(t, s.Create(ctx, testState("w1")))
	require.NoError(t, s.CompleteOnce(ctx, "w1"))
	assert.ErrorIs(t, s.CompleteOnce(ctx, "w1"), ErrAlreadyCompleted)
}

func TestMemoryStoreCompleteOnceConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, testState("w1")))

	const n = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := s.CompleteOnce(ctx, "w1"); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one completer may win")
}
