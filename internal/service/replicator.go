package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

type replicateAction int

const (
	actionAdd replicateAction = iota + 1
	actionRemove
)

type replicateJob struct {
	action   replicateAction
	targetID string
	sourceID string
	relation string
	enqAt    time.Time
}

// EdgeReplicator 异步维护入边索引（incoming_edges）
type EdgeReplicator struct {
	inRepo  repository.IncomingEdgeRepository
	ch      chan replicateJob
	pending sync.WaitGroup

	applied  atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
	lagNanos atomic.Int64
}

// ReplicatorStats 入边复制的运行计数
type ReplicatorStats struct {
	Queued  int           `json:"queued"`
	Applied int64         `json:"applied"`
	Failed  int64         `json:"failed"`
	Dropped int64         `json:"dropped"`
	LastLag time.Duration `json:"last_lag_ns"`
}

func NewEdgeReplicator(inRepo repository.IncomingEdgeRepository, queueSize int) *EdgeReplicator {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &EdgeReplicator{inRepo: inRepo, ch: make(chan replicateJob, queueSize)}
}

func (r *EdgeReplicator) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-r.ch:
					r.apply(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		// 先排空队列再停 worker
		done := make(chan struct{})
		go func() { r.pending.Wait(); close(done) }()
		select {
		case <-done:
		case <-ctx.Done():
		}
		close(stopCh)
		return nil
	}
}

func (r *EdgeReplicator) apply(job replicateJob) {
	defer r.pending.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	switch job.action {
	case actionAdd:
		err = r.inRepo.Create(ctx, job.targetID, job.sourceID, job.relation)
	case actionRemove:
		err = r.inRepo.Delete(ctx, job.targetID, job.sourceID, job.relation)
	}
	if err != nil {
		r.failed.Add(1)
		logger.Warn("replicate incoming edge failed", zap.String("target", job.targetID), zap.String("source", job.sourceID), zap.Error(err))
	} else {
		r.applied.Add(1)
	}
	if !job.enqAt.IsZero() {
		r.lagNanos.Store(int64(time.Since(job.enqAt)))
	}
}

func (r *EdgeReplicator) enqueue(job replicateJob) bool {
	r.pending.Add(1)
	select {
	case r.ch <- job:
		return true
	default:
		r.pending.Done()
		r.dropped.Add(1)
		return false
	}
}

func (r *EdgeReplicator) EnqueueAdd(targetID, sourceID, relation string) {
	if !r.enqueue(replicateJob{action: actionAdd, targetID: targetID, sourceID: sourceID, relation: relation, enqAt: time.Now()}) {
		logger.Warn("replicator queue full, drop add", zap.String("target", targetID), zap.String("source", sourceID))
	}
}

func (r *EdgeReplicator) EnqueueRemove(targetID, sourceID, relation string) {
	if !r.enqueue(replicateJob{action: actionRemove, targetID: targetID, sourceID: sourceID, relation: relation, enqAt: time.Now()}) {
		logger.Warn("replicator queue full, drop remove", zap.String("target", targetID), zap.String("source", sourceID))
	}
}

// Drain 等待已入队的任务全部落地（测试与导入后使用）
func (r *EdgeReplicator) Drain() { r.pending.Wait() }

// Stats 队列长度为采样值
func (r *EdgeReplicator) Stats() ReplicatorStats {
	return ReplicatorStats{
		Queued:  len(r.ch),
		Applied: r.applied.Load(),
		Failed:  r.failed.Load(),
		Dropped: r.dropped.Load(),
		LastLag: time.Duration(r.lagNanos.Load()),
	}
}
