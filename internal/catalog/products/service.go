package products

import (
	"context"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// Service serves catalog reads, with listing backed by the Redis cache.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Get fetches one product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	if s.cache == nil {
		return s.repo.List(ctx, filter)
	}
	return s.cache.GetList(ctx, filter, func(ctx context.Context) ([]Product, int, error) {
		return s.repo.List(ctx, filter)
	})
}

// InvalidateCache drops cached listings after stock mutations.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}
