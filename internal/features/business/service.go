package business

import (
	"context"
	"fmt"
)

type BusinessService interface {
	CreateBusiness(ctx context.Context, biz *Business) error
	GetBusiness(ctx context.Context, id string) (*Business, error)
	UpdateBusiness(ctx context.Context, id string, updates map[string]interface{}) error
	ConnectListing(ctx context.Context, id string, locationRef string) error
	DisconnectListing(ctx context.Context, id string) error
}

type BusinessServiceImpl struct {
	Repo BusinessRepository
}

func NewBusinessService(repo BusinessRepository) BusinessService {
	return &BusinessServiceImpl{Repo: repo}
}

func (s *BusinessServiceImpl) CreateBusiness(ctx context.Context, biz *Business) error {
	if biz.Name == "" {
		return fmt.Errorf("business name is required")
	}
	return s.Repo.Create(ctx, biz)
}

func (s *BusinessServiceImpl) GetBusiness(ctx context.Context, id string) (*Business, error) {
	return s.Repo.Get(ctx, id)
}

func (s *BusinessServiceImpl) UpdateBusiness(ctx context.Context, id string, updates map[string]interface{}) error {
	// Connection state has its own endpoints; drop it from blind updates.
	delete(updates, "listing")
	delete(updates, "data_sources")
	return s.Repo.Update(ctx, id, updates)
}

func (s *BusinessServiceImpl) ConnectListing(ctx context.Context, id string, locationRef string) error {
	if locationRef == "" {
		return fmt.Errorf("location_ref is required")
	}
	return s.Repo.Update(ctx, id, map[string]interface{}{
		"listing.connected":    true,
		"listing.location_ref": locationRef,
	})
}

func (s *BusinessServiceImpl) DisconnectListing(ctx context.Context, id string) error {
	return s.Repo.Update(ctx, id, map[string]interface{}{
		"listing.connected": false,
	})
}
