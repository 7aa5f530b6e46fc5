package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
)

var ErrNotFound = errors.New("record not found")

// ReservoirRepository 水库仓储接口
type ReservoirRepository interface {
	// Upsert 按名称写入；已存在时不覆盖 enabled（启停以库内状态为准）
	Upsert(ctx context.Context, r *model.Reservoir) error
	GetByName(ctx context.Context, name string) (*model.Reservoir, error)
	List(ctx context.Context) ([]*model.Reservoir, error)
	ListEnabled(ctx context.Context) ([]*model.Reservoir, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
}

type reservoirRepository struct{ db *gorm.DB }

func NewReservoirRepository(db *gorm.DB) ReservoirRepository { return &reservoirRepository{db: db} }

func (r *reservoirRepository) Upsert(ctx context.Context, res *model.Reservoir) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"platform", "rate_per_sec", "burst", "updated_at"}),
	}).Create(res).Error
}

func (r *reservoirRepository) GetByName(ctx context.Context, name string) (*model.Reservoir, error) {
	var res model.Reservoir
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservoirRepository) List(ctx context.Context) ([]*model.Reservoir, error) {
	var res []*model.Reservoir
	err := r.db.WithContext(ctx).Order("name").Find(&res).Error
	return res, err
}

func (r *reservoirRepository) ListEnabled(ctx context.Context) ([]*model.Reservoir, error) {
	var res []*model.Reservoir
	err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("name").Find(&res).Error
	return res, err
}

func (r *reservoirRepository) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res := r.db.WithContext(ctx).Model(&model.Reservoir{}).Where("name = ?", name).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
