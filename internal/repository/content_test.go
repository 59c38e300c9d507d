package repository

import (
	"context"
	"testing"
	"time"

	"TH_treasure_hunt/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomClues(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.CustomClues(ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)

	lat, lon := 12.9, 77.6
	clues := []model.ClueContent{
		{Index: 1, Riddle: "where the river bends", Answer: "Bridge", Latitude: &lat, Longitude: &lon},
		{Index: 2, Riddle: "tallest tower", Answer: "clock"},
	}
	require.NoError(t, repo.SaveCustomClues(ctx, 4, clues))

	err = repo.SaveCustomClues(ctx, 4, clues[:1])
	assert.ErrorIs(t, err, ErrContentExists)

	got, err := repo.CustomClues(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, clues, got)
}

func TestClaims(t *testing.T) {
	repo, publisher := newTestRepository(t)
	ctx := context.Background()

	first, reserved, err := repo.ReserveClaim(ctx, 1, "alice", "0xabc")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, model.ClaimStatusPending, first.Status)

	again, reserved, err := repo.ReserveClaim(ctx, 1, "alice", "0xabc")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, first.ClaimID, again.ClaimID)

	require.NoError(t, repo.ReleaseClaim(ctx, first.ClaimID))
	_, err = repo.GetClaim(ctx, 1, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	second, reserved, err := repo.ReserveClaim(ctx, 1, "alice", "0xabc")
	require.NoError(t, err)
	assert.True(t, reserved)

	require.NoError(t, repo.ConfirmClaim(ctx, second.ClaimID))
	require.NoError(t, repo.ConfirmClaim(ctx, second.ClaimID))
	assert.ErrorIs(t, repo.ConfirmClaim(ctx, uuid.New()), ErrNotFound)

	// confirmed claims survive a release
	require.NoError(t, repo.ReleaseClaim(ctx, second.ClaimID))
	got, err := repo.GetClaim(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimStatusConfirmed, got.Status)

	assert.Equal(t, []model.EventKind{model.EventClaimed}, publisher.kinds())

	imported, err := repo.ImportClaim(ctx, 1, "alice", "0xabc", time.Now())
	require.NoError(t, err)
	assert.False(t, imported)

	imported, err = repo.ImportClaim(ctx, 1, "bob", "0xdef", time.Now())
	require.NoError(t, err)
	assert.True(t, imported)
}

func TestClaimUniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		insert    string
		args      []interface{}
		wantRace  bool
		wantError bool
	}{
		{
			name:      "Duplicate reservation",
			insert:    "INSERT INTO claims (chain_id, claim_id, hunt_id, participant_id, address, status, claimed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			args:      []interface{}{0, uuid.NewString(), 1, "alice", "0xabc", "pending", 0},
			wantRace:  true,
			wantError: true,
		},
		{
			name:   "Same participant on another chain",
			insert: "INSERT INTO claims (chain_id, claim_id, hunt_id, participant_id, address, status, claimed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			args:   []interface{}{137, uuid.NewString(), 1, "alice", "0xabc", "pending", 0},
		},
		{
			name:      "Missing status",
			insert:    "INSERT INTO claims (chain_id, claim_id, hunt_id, participant_id, address, status, claimed_at) VALUES (?, ?, ?, ?, ?, NULL, ?)",
			args:      []interface{}{0, uuid.NewString(), 2, "bob", "0xdef", 0},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := newTestRepository(t)
			ctx := context.Background()

			first, reserved, err := repo.ReserveClaim(ctx, 1, "alice", "0xabc")
			require.NoError(t, err)
			require.True(t, reserved)

			_, err = repo.db.ExecContext(ctx, tt.insert, tt.args...)
			assert.Equal(t, tt.wantError, err != nil, "got %v", err)
			assert.Equal(t, tt.wantRace, isUniqueViolation(err))

			// the loser of a race reads back the winning row
			again, reserved, err := repo.ReserveClaim(ctx, 1, "alice", "0xabc")
			require.NoError(t, err)
			assert.False(t, reserved)
			assert.Equal(t, first.ClaimID, again.ClaimID)
		})
	}
}

func TestChainViewsAreIsolated(t *testing.T) {
	base, _ := newTestRepository(t)
	ctx := context.Background()
	mainnet := base.WithChain(1)
	polygon := base.WithChain(137)

	assert.Equal(t, int64(1), mainnet.ChainID())
	assert.Equal(t, int64(137), polygon.ChainID())

	register(t, mainnet, 1, "alice")
	require.NoError(t, mainnet.AppendFinal(ctx, 1, "alice", 1, 1))
	require.NoError(t, mainnet.SaveCustomClues(ctx, 1, []model.ClueContent{{Index: 1, Riddle: "old town", Answer: "bridge"}}))
	_, _, err := mainnet.ReserveClaim(ctx, 1, "alice", "0xabc")
	require.NoError(t, err)

	solved, err := polygon.GetProgress(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Empty(t, solved)

	registered, err := polygon.IsRegistered(ctx, 1, "alice")
	require.NoError(t, err)
	assert.False(t, registered)

	done, err := polygon.IsCompleted(ctx, 1, "alice")
	require.NoError(t, err)
	assert.False(t, done)

	_, err = polygon.GetClaim(ctx, 1, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = polygon.CustomClues(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	polygonClues := []model.ClueContent{{Index: 1, Riddle: "harbour", Answer: "lighthouse"}}
	require.NoError(t, polygon.SaveCustomClues(ctx, 1, polygonClues))
	got, err := polygon.CustomClues(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, polygonClues, got)

	regs, err := polygon.ListRegistrations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, regs)

	regs, err = mainnet.ListRegistrations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	// settings stay global
	require.NoError(t, mainnet.SetSetting(ctx, SettingCurrentNetwork, "mainnet"))
	value, err := polygon.Setting(ctx, SettingCurrentNetwork)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", value)
}

func TestSettings(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	network, err := repo.CurrentNetwork(ctx, "baseSepolia")
	require.NoError(t, err)
	assert.Equal(t, "baseSepolia", network)

	require.NoError(t, repo.SetSetting(ctx, SettingCurrentNetwork, "moonbaseAlpha"))
	require.NoError(t, repo.SetSetting(ctx, SettingCurrentNetwork, "paseoAssetHub"))

	network, err = repo.CurrentNetwork(ctx, "baseSepolia")
	require.NoError(t, err)
	assert.Equal(t, "paseoAssetHub", network)
}

func TestBlobs(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetBlob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.PutBlob(ctx, "abc", "sealed"))
	require.NoError(t, repo.PutBlob(ctx, "abc", "sealed"))

	data, err := repo.GetBlob(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "sealed", data)
}
