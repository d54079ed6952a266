package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

// Fetcher pulls the live catalog from the backend.
type Fetcher interface {
	FetchProducts(ctx context.Context, search string) ([]models.CachedProduct, error)
}

// Service keeps the local product cache fresh while online and serves
// browse/search queries from it at all times. Cached stock figures are a
// browsing hint only; the backend stays authoritative.
type Service struct {
	repo    *Repository
	fetcher Fetcher
	logg    *logger.Logger
	now     func() time.Time
}

type ServiceParams struct {
	Repository *Repository
	Fetcher    Fetcher
	Logger     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if params.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:    params.Repository,
		fetcher: params.Fetcher,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Refresh replaces the whole cache from the backend. Callers invoke it at
// startup, on reconnect and after a successful online sale; failures leave
// the previous cache in place.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	products, err := s.fetcher.FetchProducts(ctx, "")
	if err != nil {
		return 0, err
	}

	fetchedAt := s.now()
	for i := range products {
		products[i].CachedAt = fetchedAt
	}

	if err := s.repo.ReplaceAll(ctx, products); err != nil {
		return 0, err
	}

	s.logg.Info(s.logg.WithField(ctx, "products", len(products)), "product cache refreshed")
	return len(products), nil
}

// Browse serves product search from the cache, fully offline.
func (s *Service) Browse(ctx context.Context, filter string) ([]models.CachedProduct, error) {
	return s.repo.List(ctx, filter)
}

// Lookup loads one cached product, e.g. when a line item is added to the cart.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*models.CachedProduct, error) {
	return s.repo.Find(ctx, id)
}
