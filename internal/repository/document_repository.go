package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/model"
)

type DocumentRepository interface {
	ListByDistillery(ctx context.Context, distillery string, offset, limit int) ([]*model.Document, error)
	ListIDsByDistillery(ctx context.Context, distillery string) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.Document, error)
	Count(ctx context.Context, distillery string) (int64, error)
}

type documentRepository struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) DocumentRepository { return &documentRepository{db: db} }

func (r *documentRepository) ListByDistillery(ctx context.Context, distillery string, offset, limit int) ([]*model.Document, error) {
	var res []*model.Document
	err := r.db.WithContext(ctx).
		Where("distillery = ?", distillery).
		Order("created_at DESC, id").
		Offset(offset).
		Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *documentRepository) ListIDsByDistillery(ctx context.Context, distillery string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("distillery = ?", distillery).
		Order("created_at DESC, id").
		Pluck("id", &ids).Error
	return ids, err
}

// GetByIDs 按传入顺序返回，缺失的 ID 跳过
func (r *documentRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Document, error) {
	if len(ids) == 0 {
		return []*model.Document{}, nil
	}
	var rows []*model.Document
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Document, len(rows))
	for _, d := range rows {
		byID[d.ID] = d
	}
	res := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			res = append(res, d)
		}
	}
	return res, nil
}

func (r *documentRepository) Count(ctx context.Context, distillery string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).Where("distillery = ?", distillery).Count(&cnt).Error
	return cnt, err
}
