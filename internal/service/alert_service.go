package service

import (
	"context"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
)

// AlertService 订阅管理与告警查询
type AlertService struct {
	subs       repository.SubscriptionRepository
	alerts     repository.AlertRepository
	distillery *Distillery
}

func NewAlertService(subs repository.SubscriptionRepository, alerts repository.AlertRepository, distillery *Distillery) *AlertService {
	return &AlertService{subs: subs, alerts: alerts, distillery: distillery}
}

func (s *AlertService) Subscribe(ctx context.Context, distillery, watcherID string, notifyEmail bool) error {
	if !s.distillery.Has(distillery) {
		return ErrUnknownDistillery
	}
	return s.subs.Create(ctx, distillery, watcherID, notifyEmail)
}

func (s *AlertService) Unsubscribe(ctx context.Context, distillery, watcherID string) error {
	if !s.distillery.Has(distillery) {
		return ErrUnknownDistillery
	}
	return s.subs.Delete(ctx, distillery, watcherID)
}

func (s *AlertService) Subscriptions(ctx context.Context, watcherID string) ([]*model.Subscription, error) {
	return s.subs.ListByWatcher(ctx, watcherID)
}

// Alerts 分页返回告警和总数
func (s *AlertService) Alerts(ctx context.Context, watcherID string, page, pageSize int) ([]*model.Alert, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	total, err := s.alerts.CountByWatcher(ctx, watcherID)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.alerts.ListByWatcher(ctx, watcherID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
