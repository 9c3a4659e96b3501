package listings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
)

type fakeStore struct {
	listings     map[string]*models.Listing
	analyses     map[string]*models.ListingAnalysis
	getCalls     int
	analysisHits int
	upsertErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings: map[string]*models.Listing{
			"lst-1": {ID: "lst-1", VerticalSlug: "landscape", Location: "Tampa, FL"},
		},
		analyses: map[string]*models.ListingAnalysis{},
	}
}

func (f *fakeStore) GetFinancials(_ context.Context, id string) (*models.Listing, error) {
	f.getCalls++
	if l, ok := f.listings[id]; ok {
		return l, nil
	}
	return nil, ErrListingNotFound
}

func (f *fakeStore) GetAnalysis(_ context.Context, id string) (*models.ListingAnalysis, error) {
	f.analysisHits++
	if a, ok := f.analyses[id]; ok {
		return a, nil
	}
	return nil, ErrAnalysisNotFound
}

func (f *fakeStore) UpsertAnalysis(_ context.Context, a *models.ListingAnalysis) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	_, existed := f.analyses[a.ListingID]
	a.ID = "an-" + a.ListingID
	f.analyses[a.ListingID] = a
	return !existed, nil
}

func newMiniredisCache(t *testing.T, next Store) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCachedStore(next, rdb, time.Minute, logger.NewTestLogger(t)), mr
}

func TestCachedStore_ReadThrough(t *testing.T) {
	next := newFakeStore()
	cache, mr := newMiniredisCache(t, next)
	ctx := context.Background()

	first, err := cache.GetFinancials(ctx, "lst-1")
	require.NoError(t, err)
	second, err := cache.GetFinancials(ctx, "lst-1")
	require.NoError(t, err)

	assert.Equal(t, 1, next.getCalls)
	assert.Equal(t, first.Location, second.Location)
	assert.True(t, mr.Exists(financialsKey("lst-1")))

	mr.FastForward(2 * time.Minute)
	_, err = cache.GetFinancials(ctx, "lst-1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.getCalls)
}

func TestCachedStore_NotFoundIsNotCached(t *testing.T) {
	next := newFakeStore()
	cache, mr := newMiniredisCache(t, next)

	_, err := cache.GetFinancials(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrListingNotFound)
	assert.False(t, mr.Exists(financialsKey("nope")))
}

func TestCachedStore_UpsertInvalidatesAnalysis(t *testing.T) {
	next := newFakeStore()
	cache, mr := newMiniredisCache(t, next)
	ctx := context.Background()

	created, err := cache.UpsertAnalysis(ctx, &models.ListingAnalysis{ListingID: "lst-1", ValuationLow: 100})
	require.NoError(t, err)
	assert.True(t, created)

	a, err := cache.GetAnalysis(ctx, "lst-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.ValuationLow)
	assert.True(t, mr.Exists(analysisKey("lst-1")))

	created, err = cache.UpsertAnalysis(ctx, &models.ListingAnalysis{ListingID: "lst-1", ValuationLow: 200})
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, mr.Exists(analysisKey("lst-1")))

	a, err = cache.GetAnalysis(ctx, "lst-1")
	require.NoError(t, err)
	assert.Equal(t, 200.0, a.ValuationLow)
	assert.Equal(t, 2, next.analysisHits)
}

func TestCachedStore_UpsertErrorKeepsCache(t *testing.T) {
	next := newFakeStore()
	next.upsertErr = ErrStaleAnalysis
	cache, mr := newMiniredisCache(t, next)
	require.NoError(t, mr.Set(analysisKey("lst-1"), `{"listingId":"lst-1"}`))

	_, err := cache.UpsertAnalysis(context.Background(), &models.ListingAnalysis{ListingID: "lst-1"})
	assert.ErrorIs(t, err, ErrStaleAnalysis)
	assert.True(t, mr.Exists(analysisKey("lst-1")))
}

func TestCachedStore_CorruptEntryFallsThrough(t *testing.T) {
	next := newFakeStore()
	cache, mr := newMiniredisCache(t, next)
	require.NoError(t, mr.Set(financialsKey("lst-1"), "{not json"))

	l, err := cache.GetFinancials(context.Background(), "lst-1")
	require.NoError(t, err)
	assert.Equal(t, "Tampa, FL", l.Location)
	assert.Equal(t, 1, next.getCalls)
}

func TestCachedStore_RedisDownFallsThrough(t *testing.T) {
	next := newFakeStore()
	rdb, mock := redismock.NewClientMock()
	cache := NewCachedStore(next, rdb, time.Minute, logger.NewTestLogger(t))

	mock.ExpectGet(financialsKey("lst-1")).SetErr(errors.New("connection refused"))
	mock.ExpectSet(financialsKey("lst-1"), []byte(`{"id":"lst-1","title":"","verticalSlug":"landscape","status":"","location":"Tampa, FL"}`), time.Minute).
		SetErr(errors.New("connection refused"))

	l, err := cache.GetFinancials(context.Background(), "lst-1")
	require.NoError(t, err)
	assert.Equal(t, "lst-1", l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
