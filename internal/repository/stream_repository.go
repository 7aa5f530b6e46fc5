package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/pkg/database"
)

// StreamRepository 流状态仓储
type StreamRepository interface {
	// Activate 在排他表锁下检查并置位 active。
	// 已有活跃流时返回 started=false，且不写入 invoice。
	Activate(ctx context.Context, reservoirID uint, task string, inv *model.Invoice) (stream *model.Stream, started bool, err error)
	// Deactivate 无条件置为非活跃
	Deactivate(ctx context.Context, streamID uint) error
	Get(ctx context.Context, reservoirID uint, task string) (*model.Stream, error)
	List(ctx context.Context) ([]*model.Stream, error)
}

type streamRepository struct{ db *gorm.DB }

func NewStreamRepository(db *gorm.DB) StreamRepository { return &streamRepository{db: db} }

// lockStreams 串行化 streams 表上的检查-置位
func lockStreams(tx *gorm.DB) error {
	if !database.IsPostgres(tx) {
		// sqlite 单连接，事务天然串行
		return nil
	}
	return tx.Exec("LOCK TABLE streams IN EXCLUSIVE MODE").Error
}

func (r *streamRepository) Activate(ctx context.Context, reservoirID uint, task string, inv *model.Invoice) (*model.Stream, bool, error) {
	var (
		s       model.Stream
		started bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockStreams(tx); err != nil {
			return err
		}
		err := tx.Where("reservoir_id = ? AND task = ?", reservoirID, task).First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s = model.Stream{ReservoirID: reservoirID, Task: task}
			err = tx.Omit(clause.Associations).Create(&s).Error
		}
		if err != nil {
			return err
		}
		if s.Active {
			return nil
		}
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Stream{}).Where("id = ?", s.ID).
			Updates(map[string]any{"active": true, "invoice_id": inv.ID}).Error; err != nil {
			return err
		}
		s.Active = true
		s.InvoiceID = &inv.ID
		started = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &s, started, nil
}

func (r *streamRepository) Deactivate(ctx context.Context, streamID uint) error {
	return r.db.WithContext(ctx).Model(&model.Stream{}).Where("id = ?", streamID).Update("active", false).Error
}

func (r *streamRepository) Get(ctx context.Context, reservoirID uint, task string) (*model.Stream, error) {
	var s model.Stream
	err := r.db.WithContext(ctx).Where("reservoir_id = ? AND task = ?", reservoirID, task).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *streamRepository) List(ctx context.Context) ([]*model.Stream, error) {
	var res []*model.Stream
	err := r.db.WithContext(ctx).Preload("Invoice.Stamp").Order("id").Find(&res).Error
	return res, err
}
