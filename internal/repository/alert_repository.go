package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/model"
)

type AlertRepository interface {
	ListByWatcher(ctx context.Context, watcherID string, offset, limit int) ([]*model.Alert, error)
	CountByWatcher(ctx context.Context, watcherID string) (int64, error)
}

type alertRepository struct{ db *gorm.DB }

func NewAlertRepository(db *gorm.DB) AlertRepository { return &alertRepository{db: db} }

func (r *alertRepository) ListByWatcher(ctx context.Context, watcherID string, offset, limit int) ([]*model.Alert, error) {
	var res []*model.Alert
	err := r.db.WithContext(ctx).
		Where("watcher_id = ?", watcherID).
		Order("score DESC, id").
		Offset(offset).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *alertRepository) CountByWatcher(ctx context.Context, watcherID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Alert{}).Where("watcher_id = ?", watcherID).Count(&cnt).Error
	return cnt, err
}
