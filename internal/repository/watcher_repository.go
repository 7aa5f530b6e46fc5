package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/model"
)

var ErrDuplicate = errors.New("duplicate record")

type WatcherRepository interface {
	Create(ctx context.Context, w *model.Watcher) error
	GetByID(ctx context.Context, id string) (*model.Watcher, error)
	GetByUsername(ctx context.Context, username string) (*model.Watcher, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.Watcher, error)
}

type watcherRepository struct{ db *gorm.DB }

func NewWatcherRepository(db *gorm.DB) WatcherRepository { return &watcherRepository{db: db} }

// Create 用户名由唯一索引兜底，并发注册同名只有一个成功
func (r *watcherRepository) Create(ctx context.Context, w *model.Watcher) error {
	err := r.db.WithContext(ctx).Create(w).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *watcherRepository) GetByID(ctx context.Context, id string) (*model.Watcher, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *watcherRepository) GetByUsername(ctx context.Context, username string) (*model.Watcher, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *watcherRepository) first(ctx context.Context, cond string, arg any) (*model.Watcher, error) {
	var w model.Watcher
	err := r.db.WithContext(ctx).Where(cond, arg).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *watcherRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*model.Watcher, error) {
	res := make(map[string]*model.Watcher, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	var rows []*model.Watcher
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, w := range rows {
		res[w.ID] = w
	}
	return res, nil
}
