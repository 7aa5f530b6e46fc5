package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/pumproom/internal/cache"
	"github.com/d60-Lab/pumproom/internal/distill"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

var ErrUnknownDistillery = errors.New("unknown distillery")

// Distillery 把水库记录蒸馏成文档，事务内写 documents + outbox
type Distillery struct {
	db          *gorm.DB
	recent      *cache.RecentDocuments
	byName      map[string]*distill.Distillery
	byReservoir map[string][]*distill.Distillery

	mu       sync.Mutex
	lastTime time.Time
}

func NewDistillery(db *gorm.DB, recent *cache.RecentDocuments, defs []*distill.Distillery) *Distillery {
	p := &Distillery{
		db:          db,
		recent:      recent,
		byName:      make(map[string]*distill.Distillery, len(defs)),
		byReservoir: make(map[string][]*distill.Distillery),
	}
	for _, d := range defs {
		p.byName[d.Name] = d
		p.byReservoir[d.Reservoir] = append(p.byReservoir[d.Reservoir], d)
	}
	return p
}

// Names 返回所有 distillery 名称
func (p *Distillery) Names() []string {
	names := make([]string, 0, len(p.byName))
	for n := range p.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *Distillery) Has(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// Accept 实现 stream.Sink
func (p *Distillery) Accept(ctx context.Context, reservoir string, records []platform.Record) error {
	_, err := p.Distill(ctx, reservoir, records)
	return err
}

// Distill 对水库的所有 distillery 落地文档，返回每个 distillery 新写入的文档 ID
func (p *Distillery) Distill(ctx context.Context, reservoir string, records []platform.Record) (map[string][]string, error) {
	defs := p.byReservoir[reservoir]
	if len(defs) == 0 || len(records) == 0 {
		return map[string][]string{}, nil
	}

	base := p.stamp(len(records) * len(defs))
	written := make(map[string][]string, len(defs))
	docs := make([]*model.Document, 0, len(records)*len(defs))
	outs := make([]*model.Outbox, 0, cap(docs))
	for _, d := range defs {
		for _, rec := range records {
			res := d.Bottle.Distill(rec)
			if len(res.Errors) > 0 {
				logger.Debug("distill field errors", zap.String("distillery", d.Name), zap.Any("errors", res.Errors))
			}
			fields, err := json.Marshal(res.Fields)
			if err != nil {
				return nil, err
			}
			raw, err := json.Marshal(rec)
			if err != nil {
				return nil, err
			}
			id := uuid.New().String()
			// 同批文档按写入顺序递增 1µs，数据库 created_at DESC 与缓存 LPUSH 顺序一致
			now := base.Add(time.Duration(len(docs)) * time.Microsecond)
			docs = append(docs, &model.Document{ID: id, Distillery: d.Name, Reservoir: reservoir, Fields: fields, Raw: raw, CreatedAt: now})
			outs = append(outs, &model.Outbox{ID: uuid.New().String(), DocumentID: id, Distillery: d.Name, CreatedAt: now, Status: model.OutboxPending})
			written[d.Name] = append(written[d.Name], id)
		}
	}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(docs, 200).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(outs, 200).Error
	})
	if err != nil {
		return nil, err
	}

	if p.recent != nil {
		for name, ids := range written {
			if err := p.recent.Push(ctx, name, ids); err != nil {
				logger.Warn("push recent documents failed", zap.String("distillery", name), zap.Error(err))
			}
		}
	}
	return written, nil
}

// stamp 为 n 篇文档预留一段严格递增的创建时间，返回起点
func (p *Distillery) stamp(n int) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	base := time.Now().Truncate(time.Microsecond)
	if !base.After(p.lastTime) {
		base = p.lastTime.Add(time.Microsecond)
	}
	p.lastTime = base.Add(time.Duration(n-1) * time.Microsecond)
	return base
}

// Documents 分页查询某个 distillery 的文档（新的在前）
func (p *Distillery) Documents(ctx context.Context, name string, page, pageSize int) ([]*model.Document, error) {
	if !p.Has(name) {
		return nil, ErrUnknownDistillery
	}
	return p.recent.Page(ctx, name, page, pageSize)
}

// DocumentTotal distillery 的文档总数
func (p *Distillery) DocumentTotal(ctx context.Context, name string) (int64, error) {
	if !p.Has(name) {
		return 0, ErrUnknownDistillery
	}
	return p.recent.Total(ctx, name)
}
