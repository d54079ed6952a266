package catalog

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

type stubFetcher struct {
	fetchFn func(ctx context.Context, search string) ([]models.CachedProduct, error)
}

func (s *stubFetcher) FetchProducts(ctx context.Context, search string) ([]models.CachedProduct, error) {
	if s.fetchFn != nil {
		return s.fetchFn(ctx, search)
	}
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestNewServiceValidatesParams(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing params")
	}
}

func TestRefreshReplacesCacheAndStampsTime(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)

	fetched := []models.CachedProduct{
		cachedProduct("Fresh", "NEW-001", ""),
		cachedProduct("Stock", "NEW-002", ""),
	}
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Fetcher: &stubFetcher{fetchFn: func(ctx context.Context, search string) ([]models.CachedProduct, error) {
			return fetched, nil
		}},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	stamp := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return stamp }

	count, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	products, err := svc.Browse(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	for _, product := range products {
		assert.True(t, product.CachedAt.Equal(stamp), "cached_at not stamped")
	}
}

func TestRefreshFailureKeepsPreviousCache(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, []models.CachedProduct{cachedProduct("Kept", "OLD-001", "")}))

	svc, err := NewService(ServiceParams{
		Repository: repo,
		Fetcher: &stubFetcher{fetchFn: func(ctx context.Context, search string) ([]models.CachedProduct, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConnectivity, "backend unreachable")
		}},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConnectivity(err))

	products, err := svc.Browse(ctx, "")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Kept", products[0].Name)
}

func TestLookupServesFromCache(t *testing.T) {
	db := setupCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := cachedProduct("Direct", "DIR-001", "")
	require.NoError(t, repo.ReplaceAll(ctx, []models.CachedProduct{product}))

	svc, err := NewService(ServiceParams{
		Repository: repo,
		Fetcher:    &stubFetcher{},
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	found, err := svc.Lookup(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Direct", found.Name)
}
