package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/model"
)

// InvoiceFilter 调用记录查询条件
type InvoiceFilter struct {
	Reservoir string
	Status    int
	Since     *time.Time
	Offset    int
	Limit     int
}

// StampRepository 外部调用记录仓储
type StampRepository interface {
	// CreateInvoice 同时写入 Stamp 与 Invoice
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	// CreateDispatch 同时写入 Stamp 与 Dispatch
	CreateDispatch(ctx context.Context, d *model.Dispatch) error
	// Finish 回写调用结果
	Finish(ctx context.Context, stampID uint, status, count int, notes string) error
	GetInvoice(ctx context.Context, id uint) (*model.Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]*model.Invoice, error)
	ListDispatches(ctx context.Context, alertID string) ([]*model.Dispatch, error)
}

type stampRepository struct{ db *gorm.DB }

func NewStampRepository(db *gorm.DB) StampRepository { return &stampRepository{db: db} }

func (r *stampRepository) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *stampRepository) CreateDispatch(ctx context.Context, d *model.Dispatch) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *stampRepository) Finish(ctx context.Context, stampID uint, status, count int, notes string) error {
	return r.db.WithContext(ctx).Model(&model.Stamp{}).
		Where("id = ?", stampID).
		Updates(map[string]any{"status": status, "count": count, "notes": notes, "updated_at": time.Now()}).Error
}

func (r *stampRepository) GetInvoice(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).Preload("Stamp").First(&inv, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *stampRepository) ListInvoices(ctx context.Context, f InvoiceFilter) ([]*model.Invoice, error) {
	q := r.db.WithContext(ctx).Model(&model.Invoice{}).
		Joins("JOIN stamps ON stamps.id = invoices.stamp_id").
		Preload("Stamp")
	if f.Reservoir != "" {
		q = q.Where("stamps.reservoir = ?", f.Reservoir)
	}
	if f.Status != 0 {
		q = q.Where("stamps.status = ?", f.Status)
	}
	if f.Since != nil {
		q = q.Where("stamps.created_at >= ?", *f.Since)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	var res []*model.Invoice
	err := q.Order("invoices.id DESC").Offset(f.Offset).Limit(f.Limit).Find(&res).Error
	return res, err
}

func (r *stampRepository) ListDispatches(ctx context.Context, alertID string) ([]*model.Dispatch, error) {
	var res []*model.Dispatch
	err := r.db.WithContext(ctx).Preload("Stamp").Where("alert_id = ?", alertID).Order("id").Find(&res).Error
	return res, err
}
