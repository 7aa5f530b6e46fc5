package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
)

type IncomingEdgeRepository interface {
	Create(ctx context.Context, targetID, sourceID, relation string) error
	Delete(ctx context.Context, targetID, sourceID, relation string) error
	ListIncoming(ctx context.Context, targetID string, offset, limit int) ([]*model.IncomingEdge, error)
}

type incomingEdgeRepository struct{ db *gorm.DB }

func NewIncomingEdgeRepository(db *gorm.DB) IncomingEdgeRepository {
	return &incomingEdgeRepository{db: db}
}

func (r *incomingEdgeRepository) Create(ctx context.Context, targetID, sourceID, relation string) error {
	e := &model.IncomingEdge{ID: uuid.New().String(), TargetID: targetID, SourceID: sourceID, Relation: relation}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e).Error
}

func (r *incomingEdgeRepository) Delete(ctx context.Context, targetID, sourceID, relation string) error {
	return r.db.WithContext(ctx).
		Where("target_id = ? AND source_id = ? AND relation = ?", targetID, sourceID, relation).
		Delete(&model.IncomingEdge{}).Error
}

func (r *incomingEdgeRepository) ListIncoming(ctx context.Context, targetID string, offset, limit int) ([]*model.IncomingEdge, error) {
	var res []*model.IncomingEdge
	err := r.db.WithContext(ctx).Where("target_id = ?", targetID).Order("created_at, id").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}
