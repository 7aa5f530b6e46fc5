package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
)

type EdgeRepository interface {
	Create(ctx context.Context, sourceID, targetID, relation string) error
	Delete(ctx context.Context, sourceID, targetID, relation string) error
	ListOutgoing(ctx context.Context, sourceID string, offset, limit int) ([]*model.Edge, error)
}

type edgeRepository struct {
	db *gorm.DB
}

func NewEdgeRepository(db *gorm.DB) EdgeRepository { return &edgeRepository{db: db} }

func (r *edgeRepository) Create(ctx context.Context, sourceID, targetID, relation string) error {
	e := &model.Edge{ID: uuid.New().String(), SourceID: sourceID, TargetID: targetID, Relation: relation}
	// 幂等：重复边不报错
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e).Error
}

func (r *edgeRepository) Delete(ctx context.Context, sourceID, targetID, relation string) error {
	return r.db.WithContext(ctx).
		Where("source_id = ? AND target_id = ? AND relation = ?", sourceID, targetID, relation).
		Delete(&model.Edge{}).Error
}

func (r *edgeRepository) ListOutgoing(ctx context.Context, sourceID string, offset, limit int) ([]*model.Edge, error) {
	var res []*model.Edge
	err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).Order("created_at, id").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}
