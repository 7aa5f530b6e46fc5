package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, distillery, watcherID string, notifyEmail bool) error
	Delete(ctx context.Context, distillery, watcherID string) error
	ListSubscribers(ctx context.Context, distillery string, offset, limit int) ([]*model.Subscription, error)
	ListByWatcher(ctx context.Context, watcherID string) ([]*model.Subscription, error)
}

type subscriptionRepository struct{ db *gorm.DB }

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, distillery, watcherID string, notifyEmail bool) error {
	s := &model.Subscription{ID: uuid.New().String(), Distillery: distillery, WatcherID: watcherID, NotifyEmail: notifyEmail}
	// 重复订阅只更新通知开关
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "distillery"}, {Name: "watcher_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notify_email", "updated_at"}),
	}).Create(s).Error
}

func (r *subscriptionRepository) Delete(ctx context.Context, distillery, watcherID string) error {
	return r.db.WithContext(ctx).
		Where("distillery = ? AND watcher_id = ?", distillery, watcherID).
		Delete(&model.Subscription{}).Error
}

func (r *subscriptionRepository) ListSubscribers(ctx context.Context, distillery string, offset, limit int) ([]*model.Subscription, error) {
	var res []*model.Subscription
	err := r.db.WithContext(ctx).Where("distillery = ?", distillery).Order("created_at, id").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *subscriptionRepository) ListByWatcher(ctx context.Context, watcherID string) ([]*model.Subscription, error) {
	var res []*model.Subscription
	err := r.db.WithContext(ctx).Where("watcher_id = ?", watcherID).Order("distillery").Find(&res).Error
	return res, err
}
