package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/database"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

// AlertFanout 从 outbox 拉取新文档事件，为每个订阅者写入告警
type AlertFanout struct {
	db           *gorm.DB
	subs         repository.SubscriptionRepository
	watchers     repository.WatcherRepository
	notifier     *Notifier
	batchSize    int
	claimLimit   int
	pollInterval time.Duration
	workers      int

	processed atomic.Int64
	failed    atomic.Int64
	lagNanos  atomic.Int64 // 最近一条 outbox 从写入到处理完成的耗时
}

// FanoutStats 告警扇出的运行计数
type FanoutStats struct {
	Processed int64         `json:"processed"`
	Failed    int64         `json:"failed"`
	LastLag   time.Duration `json:"last_lag_ns"`
}

func NewAlertFanout(db *gorm.DB, subs repository.SubscriptionRepository, watchers repository.WatcherRepository, notifier *Notifier,
	workers, batchSize, claimLimit int, pollInterval time.Duration) *AlertFanout {
	if workers <= 0 {
		workers = 2
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if claimLimit <= 0 {
		claimLimit = 128
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &AlertFanout{
		db: db, subs: subs, watchers: watchers, notifier: notifier,
		workers: workers, batchSize: batchSize, claimLimit: claimLimit, pollInterval: pollInterval,
	}
}

func (w *AlertFanout) Stats() FanoutStats {
	return FanoutStats{Processed: w.processed.Load(), Failed: w.failed.Load(), LastLag: time.Duration(w.lagNanos.Load())}
}

// Start 启动若干 worker 轮询处理 outbox；返回停止函数，等待 worker 退出。
func (w *AlertFanout) Start() func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(stop)
		}()
	}
	return func(ctx context.Context) error {
		close(stop)
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *AlertFanout) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(context.Background()); err != nil {
				logger.Warn("alert fanout round failed", zap.Error(err))
			}
		}
	}
}

type claimed struct {
	ID         string
	DocumentID string
	Distillery string
	CreatedAt  time.Time
}

// claim 标记一批 pending 为 processing；PostgreSQL 下多 worker 互不阻塞
func (w *AlertFanout) claim(ctx context.Context) ([]claimed, error) {
	var batch []claimed
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if database.IsPostgres(tx) {
			if err := tx.Raw(`
				SELECT id, document_id, distillery, created_at
				FROM outbox
				WHERE status = 'pending'
				ORDER BY created_at
				LIMIT ?
				FOR UPDATE SKIP LOCKED
			`, w.claimLimit).Scan(&batch).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&model.Outbox{}).
				Select("id, document_id, distillery, created_at").
				Where("status = ?", model.OutboxPending).
				Order("created_at").
				Limit(w.claimLimit).
				Scan(&batch).Error; err != nil {
				return err
			}
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.Outbox{}).Where("id IN ?", ids).Update("status", model.OutboxProcessing).Error
	})
	return batch, err
}

// ProcessOnce 处理一批 outbox，返回处理的事件数
func (w *AlertFanout) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.claim(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range batch {
		total, err := w.fanout(ctx, b)
		if err != nil {
			// 放回 pending，下一轮重试
			logger.Warn("fanout outbox failed", zap.String("outbox", b.ID), zap.Error(err))
			w.failed.Add(1)
			_ = w.db.WithContext(ctx).Model(&model.Outbox{}).Where("id = ?", b.ID).Update("status", model.OutboxPending).Error
			continue
		}
		now := time.Now()
		if err := w.db.WithContext(ctx).Model(&model.Outbox{}).
			Where("id = ?", b.ID).
			Updates(map[string]any{"status": model.OutboxDone, "processed_at": now, "fanout_count": total}).Error; err != nil {
			logger.Warn("mark outbox done failed", zap.String("outbox", b.ID), zap.Error(err))
		}
		w.processed.Add(1)
		if !b.CreatedAt.IsZero() {
			w.lagNanos.Store(int64(time.Since(b.CreatedAt)))
		}
	}
	return len(batch), nil
}

// fanout 为文档的每个订阅者写入告警；只有本轮新插入的告警才发邮件，
// 重试时已存在的告警被跳过。返回该文档已有的告警总数。
func (w *AlertFanout) fanout(ctx context.Context, b claimed) (int64, error) {
	var fields map[string]any
	offset := 0
	page := w.batchSize
	for {
		subs, err := w.subs.ListSubscribers(ctx, b.Distillery, offset, page)
		if err != nil {
			return 0, err
		}
		if len(subs) == 0 {
			break
		}
		now := time.Now()
		score := now.UnixNano()
		records := make([]*model.Alert, 0, len(subs))
		ids := make([]string, 0, len(subs))
		wantMail := make(map[string]bool, len(subs))
		for _, s := range subs {
			a := &model.Alert{ID: uuid.New().String(), WatcherID: s.WatcherID, DocumentID: b.DocumentID, Distillery: b.Distillery, Score: score, CreatedAt: now}
			records = append(records, a)
			ids = append(ids, a.ID)
			wantMail[s.WatcherID] = s.NotifyEmail
		}
		// 重复投递忽略
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error; err != nil {
			return 0, err
		}
		// 冲突的行不会落库，按生成的 ID 回查出真正插入的那部分
		var inserted []string
		if err := w.db.WithContext(ctx).Model(&model.Alert{}).Where("id IN ?", ids).Pluck("id", &inserted).Error; err != nil {
			return 0, err
		}
		fresh := make(map[string]struct{}, len(inserted))
		for _, id := range inserted {
			fresh[id] = struct{}{}
		}
		var notify []*model.Alert
		var notifyIDs []string
		for _, a := range records {
			if _, ok := fresh[a.ID]; ok && wantMail[a.WatcherID] {
				notify = append(notify, a)
				notifyIDs = append(notifyIDs, a.WatcherID)
			}
		}

		if len(notify) > 0 && w.notifier != nil {
			if fields == nil {
				fields = w.documentFields(ctx, b.DocumentID)
			}
			w.sendMail(ctx, notify, notifyIDs, fields)
		}
		if len(subs) < page {
			break
		}
		offset += page
	}
	var total int64
	err := w.db.WithContext(ctx).Model(&model.Alert{}).Where("document_id = ?", b.DocumentID).Count(&total).Error
	return total, err
}

func (w *AlertFanout) documentFields(ctx context.Context, documentID string) map[string]any {
	var doc model.Document
	fields := map[string]any{}
	if err := w.db.WithContext(ctx).Where("id = ?", documentID).First(&doc).Error; err != nil {
		return fields
	}
	_ = json.Unmarshal(doc.Fields, &fields)
	return fields
}

func (w *AlertFanout) sendMail(ctx context.Context, alerts []*model.Alert, watcherIDs []string, fields map[string]any) {
	watchers, err := w.watchers.GetByIDs(ctx, watcherIDs)
	if err != nil {
		logger.Warn("load watchers failed", zap.Error(err))
		return
	}
	for _, a := range alerts {
		// 失败已记录在 Dispatch 中，不影响告警本身
		_ = w.notifier.NotifyAlert(ctx, a, watchers[a.WatcherID], fields)
	}
}
