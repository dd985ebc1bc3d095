package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"socialnet/internal/models"
)

func TestMemoryRelationCreateRejectsBothOrderings(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRelationRepository()

	rel, err := models.NewUserRelation(1, 2, "hi")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, rel))
	assert.NotZero(t, rel.ID)
	assert.False(t, rel.CreatedAt.IsZero())

	again, _ := models.NewUserRelation(1, 2, "")
	assert.ErrorIs(t, repo.Create(ctx, again), gorm.ErrDuplicatedKey)

	mirrored, _ := models.NewUserRelation(2, 1, "")
	assert.ErrorIs(t, repo.Create(ctx, mirrored), gorm.ErrDuplicatedKey)

	assert.ErrorIs(t, repo.Create(ctx, &models.UserRelation{UserAID: 4, UserBID: 4}), models.ErrSelfRelation)
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryRelationLookups(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRelationRepository()
	ab := repo.Insert(models.UserRelation{UserAID: 1, UserBID: 2, Approved: true})
	repo.Insert(models.UserRelation{UserAID: 3, UserBID: 1})
	repo.Insert(models.UserRelation{UserAID: 3, UserBID: 4, Approved: true})

	_, err := repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err := repo.FindDirected(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, ab.ID, got.ID)
	_, err = repo.FindDirected(ctx, 2, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	pair, err := repo.FindPair(ctx, 2, 1)
	require.NoError(t, err)
	assert.Len(t, pair, 1)

	touching, err := repo.ListTouching(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, touching, 2)

	approved, err := repo.ListApprovedTouching(ctx, []uint{1, 4})
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	require.NoError(t, repo.SetApproved(ctx, ab.ID, false))
	got, _ = repo.GetByID(ctx, ab.ID)
	assert.False(t, got.Approved)
	assert.ErrorIs(t, repo.SetApproved(ctx, 404, true), gorm.ErrRecordNotFound)
}

func TestMemoryRelationTransactionRollback(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRelationRepository()
	seeded := repo.Insert(models.UserRelation{UserAID: 1, UserBID: 2})

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx UserRelationRepository) error {
		rel, _ := models.NewUserRelation(5, 6, "")
		require.NoError(t, tx.Create(ctx, rel))
		require.NoError(t, tx.SetApproved(ctx, seeded.ID, true))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, repo.Len())
	got, _ := repo.GetByID(ctx, seeded.ID)
	assert.False(t, got.Approved)

	require.NoError(t, repo.Transaction(ctx, func(tx UserRelationRepository) error {
		return tx.Transaction(ctx, func(inner UserRelationRepository) error {
			return inner.SetApproved(ctx, seeded.ID, true)
		})
	}))
	got, _ = repo.GetByID(ctx, seeded.ID)
	assert.True(t, got.Approved)
}

func TestMemoryRelationFindDuplicatePairs(t *testing.T) {
	repo := NewMemoryUserRelationRepository()
	repo.Insert(models.UserRelation{UserAID: 1, UserBID: 2})
	repo.Insert(models.UserRelation{UserAID: 2, UserBID: 1})
	repo.Insert(models.UserRelation{UserAID: 3, UserBID: 1})

	pairs, err := repo.FindDuplicatePairs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []PairCount{{UserLow: 1, UserHigh: 2, Rows: 2}}, pairs)
}
