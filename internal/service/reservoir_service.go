package service

import (
	"context"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
)

// ReservoirService 水库配置同步与启停
type ReservoirService struct {
	repo repository.ReservoirRepository
}

func NewReservoirService(repo repository.ReservoirRepository) *ReservoirService {
	return &ReservoirService{repo: repo}
}

// Sync 把配置写入库；enabled 只在首次创建时取配置值
func (s *ReservoirService) Sync(ctx context.Context, cfgs []config.ReservoirConfig) error {
	for _, c := range cfgs {
		r := &model.Reservoir{Name: c.Name, Platform: c.Platform, Enabled: c.Enabled, RatePerSec: c.RatePerSec, Burst: c.Burst}
		if err := s.repo.Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReservoirService) List(ctx context.Context) ([]*model.Reservoir, error) {
	return s.repo.List(ctx)
}

func (s *ReservoirService) SetEnabled(ctx context.Context, name string, enabled bool) (*model.Reservoir, error) {
	if err := s.repo.SetEnabled(ctx, name, enabled); err != nil {
		return nil, err
	}
	return s.repo.GetByName(ctx, name)
}
