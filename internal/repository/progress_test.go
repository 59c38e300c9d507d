package repository

import (
	"context"
	"errors"
	"testing"

	"TH_treasure_hunt/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, repo *Repository, huntID int64, participantID string) {
	t.Helper()
	require.NoError(t, repo.SetRegistered(context.Background(), model.Registration{
		HuntID:        huntID,
		ParticipantID: participantID,
		Address:       "0xabc",
		Token:         "token",
	}))
}

func TestGetProgress_Empty(t *testing.T) {
	repo, _ := newTestRepository(t)

	solved, err := repo.GetProgress(context.Background(), 1, "alice")
	require.NoError(t, err)
	assert.Empty(t, solved)
}

func TestAppendSolved(t *testing.T) {
	tests := []struct {
		name        string
		registered  bool
		existing    []int
		index       int
		wantErr     error
		wantSolved  []int
		wantPublish bool
	}{
		{
			name:        "first clue",
			registered:  true,
			index:       1,
			wantSolved:  []int{1},
			wantPublish: true,
		},
		{
			name:        "next clue",
			registered:  true,
			existing:    []int{1, 2},
			index:       3,
			wantSolved:  []int{1, 2, 3},
			wantPublish: true,
		},
		{
			name:       "already solved is a no-op",
			registered: true,
			existing:   []int{1, 2},
			index:      2,
			wantSolved: []int{1, 2},
		},
		{
			name:       "skipping ahead",
			registered: true,
			existing:   []int{1},
			index:      3,
			wantErr:    ErrOutOfOrder,
			wantSolved: []int{1},
		},
		{
			name:       "zero index",
			registered: true,
			index:      0,
			wantErr:    ErrOutOfOrder,
			wantSolved: []int{},
		},
		{
			name:       "not registered",
			index:      1,
			wantErr:    ErrNotRegistered,
			wantSolved: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, publisher := newTestRepository(t)
			ctx := context.Background()

			if tt.registered {
				register(t, repo, 7, "alice")
			}
			for _, index := range tt.existing {
				require.NoError(t, repo.AppendSolved(ctx, 7, "alice", index))
			}
			before := len(publisher.kinds())

			err := repo.AppendSolved(ctx, 7, "alice", tt.index)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}

			solved, err := repo.GetProgress(ctx, 7, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSolved, solved)

			published := len(publisher.kinds()) - before
			if tt.wantPublish {
				assert.Equal(t, 1, published)
			} else {
				assert.Equal(t, 0, published)
			}
		})
	}
}

func TestGetProgress_IgnoresRowsPastAGap(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	register(t, repo, 1, "alice")
	require.NoError(t, repo.AppendSolved(ctx, 1, "alice", 1))

	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO solved_clues (hunt_id, participant_id, clue_index, solved_at) VALUES (1, 'alice', 3, 0)")
	require.NoError(t, err)

	solved, err := repo.GetProgress(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, solved)

	require.NoError(t, repo.AppendSolved(ctx, 1, "alice", 2))
	solved, err = repo.GetProgress(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, solved)
}

func TestProgressIsolatedPerHuntAndParticipant(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	register(t, repo, 1, "alice")
	register(t, repo, 2, "alice")
	register(t, repo, 1, "bob")

	require.NoError(t, repo.AppendSolved(ctx, 1, "alice", 1))

	solved, err := repo.GetProgress(ctx, 2, "alice")
	require.NoError(t, err)
	assert.Empty(t, solved)

	solved, err = repo.GetProgress(ctx, 1, "bob")
	require.NoError(t, err)
	assert.Empty(t, solved)
}

func TestSetRegistered_Idempotent(t *testing.T) {
	repo, publisher := newTestRepository(t)
	ctx := context.Background()

	register(t, repo, 3, "alice")
	require.NoError(t, repo.SetRegistered(ctx, model.Registration{HuntID: 3, ParticipantID: "alice", Address: "0xother"}))

	ok, err := repo.IsRegistered(ctx, 3, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	reg, err := repo.GetRegistration(ctx, 3, "alice")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", reg.Address)
	assert.Equal(t, "token", reg.Token)

	assert.Equal(t, []model.EventKind{model.EventRegistered}, publisher.kinds())

	_, err = repo.GetRegistration(ctx, 3, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	byAddress, err := repo.RegistrationByAddress(ctx, 3, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "alice", byAddress.ParticipantID)

	_, err = repo.RegistrationByAddress(ctx, 3, "0xnone")
	assert.ErrorIs(t, err, ErrNotFound)

	regs, err := repo.ListRegistrations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestMarkCompleted(t *testing.T) {
	repo, publisher := newTestRepository(t)
	ctx := context.Background()
	register(t, repo, 1, "alice")
	require.NoError(t, repo.AppendSolved(ctx, 1, "alice", 1))

	err := repo.MarkCompleted(ctx, 1, "alice", 2)
	assert.ErrorIs(t, err, ErrIncomplete)

	done, err := repo.IsCompleted(ctx, 1, "alice")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, repo.AppendSolved(ctx, 1, "alice", 2))
	require.NoError(t, repo.MarkCompleted(ctx, 1, "alice", 2))
	require.NoError(t, repo.MarkCompleted(ctx, 1, "alice", 2))

	done, err = repo.IsCompleted(ctx, 1, "alice")
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, []model.EventKind{
		model.EventRegistered,
		model.EventClueSolved,
		model.EventClueSolved,
		model.EventCompleted,
	}, publisher.kinds())

	progress, err := repo.Progress(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, progress.Solved)
	assert.True(t, progress.Registered)
	assert.True(t, progress.Completed)
	assert.Equal(t, 3, progress.NextIndex())

	require.NoError(t, repo.ClearCompleted(ctx, 1, "alice"))
	done, err = repo.IsCompleted(ctx, 1, "alice")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestAppendFinal(t *testing.T) {
	tests := []struct {
		name          string
		registered    bool
		existing      []int
		index         int
		total         int
		wantErr       error
		wantSolved    []int
		wantCompleted bool
		wantKinds     []model.EventKind
	}{
		{
			name:          "Last clue completes the hunt",
			registered:    true,
			existing:      []int{1},
			index:         2,
			total:         2,
			wantSolved:    []int{1, 2},
			wantCompleted: true,
			wantKinds:     []model.EventKind{model.EventClueSolved, model.EventCompleted},
		},
		{
			name:          "Solved last clue without a completion",
			registered:    true,
			existing:      []int{1, 2},
			index:         2,
			total:         2,
			wantSolved:    []int{1, 2},
			wantCompleted: true,
			wantKinds:     []model.EventKind{model.EventCompleted},
		},
		{
			name:       "Not the last clue",
			registered: true,
			index:      1,
			total:      2,
			wantErr:    ErrIncomplete,
			wantSolved: []int{},
		},
		{
			name:       "Gap before the last clue",
			registered: true,
			index:      2,
			total:      2,
			wantErr:    ErrOutOfOrder,
			wantSolved: []int{},
		},
		{
			name:       "Not registered",
			index:      1,
			total:      1,
			wantErr:    ErrNotRegistered,
			wantSolved: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, publisher := newTestRepository(t)
			ctx := context.Background()

			if tt.registered {
				register(t, repo, 5, "alice")
			}
			for _, index := range tt.existing {
				require.NoError(t, repo.AppendSolved(ctx, 5, "alice", index))
			}
			before := len(publisher.kinds())

			err := repo.AppendFinal(ctx, 5, "alice", tt.index, tt.total)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			solved, err := repo.GetProgress(ctx, 5, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSolved, solved)

			done, err := repo.IsCompleted(ctx, 5, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompleted, done)

			kinds := publisher.kinds()[before:]
			if len(tt.wantKinds) == 0 {
				assert.Empty(t, kinds)
			} else {
				assert.Equal(t, tt.wantKinds, kinds)
			}
		})
	}
}

func TestMigrationsAreReentrant(t *testing.T) {
	repo, _ := newTestRepository(t)
	require.NoError(t, repo.migrate(context.Background()))

	var applied int
	require.NoError(t, repo.db.Get(&applied, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 3, applied)
}
