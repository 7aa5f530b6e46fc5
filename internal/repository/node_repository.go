package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
)

type NodeRepository interface {
	// UpsertByKey 按 key 去重写入，回填已存在节点的 ID
	UpsertByKey(ctx context.Context, n *model.Node) error
	Get(ctx context.Context, id string) (*model.Node, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.Node, error)
}

type nodeRepository struct{ db *gorm.DB }

func NewNodeRepository(db *gorm.DB) NodeRepository { return &nodeRepository{db: db} }

func (r *nodeRepository) UpsertByKey(ctx context.Context, n *model.Node) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "node_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"label", "updated_at"}),
	}).Create(n).Error; err != nil {
		return err
	}
	var existing model.Node
	if err := db.Where("node_key = ?", n.Key).First(&existing).Error; err != nil {
		return err
	}
	*n = existing
	return nil
}

func (r *nodeRepository) Get(ctx context.Context, id string) (*model.Node, error) {
	var n model.Node
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *nodeRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.Node
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}
