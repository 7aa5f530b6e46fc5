package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

// Scheduler 按 cron 表达式定时跑搜索并蒸馏结果
type Scheduler struct {
	cron    *cron.Cron
	search  *SearchService
	baseCtx context.Context
	now     func() time.Time
}

func NewScheduler(baseCtx context.Context, search *SearchService) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		search:  search,
		baseCtx: baseCtx,
		now:     time.Now,
	}
}

// Add 注册一个定时任务
func (s *Scheduler) Add(sc config.ScheduleConfig) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(sc.Spec, func() { s.Run(s.baseCtx, sc) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", sc.Name, err)
	}
	return id, nil
}

// Run 执行一次任务；time_frame 为 [now-lookback, now]
func (s *Scheduler) Run(ctx context.Context, sc config.ScheduleConfig) {
	q := query.ReservoirQuery{Accounts: sc.Accounts, SearchTerms: sc.SearchTerms}
	if sc.Lookback > 0 {
		end := s.now()
		q.TimeFrame = query.TimeFrame{Start: end.Add(-sc.Lookback), End: end}
	}
	res, err := s.search.Search(ctx, q, nil, true)
	if err != nil {
		logger.Warn("scheduled search rejected", zap.String("schedule", sc.Name), zap.Error(err))
		return
	}
	ok := 0
	for _, c := range res.Cargo {
		if c.OK() {
			ok++
		}
	}
	logger.Info("scheduled search done",
		zap.String("schedule", sc.Name),
		zap.Int("reservoirs", len(res.Cargo)),
		zap.Int("ok", ok))
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	logger.Info("cron started", zap.Int("entries", s.Entries()))
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("cron stopped")
}
