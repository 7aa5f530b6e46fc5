// Package stream 管理长时间运行的流式查询，同一水库同时只允许一个
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/errtrack"
	"github.com/d60-Lab/pumproom/pkg/logger"
	"github.com/d60-Lab/pumproom/pkg/tracing"
)

// TaskStream 流式任务名
const TaskStream = "stream"

// fallbackNotes 结束时没有更具体的原因
const fallbackNotes = "cargo"

const defaultBatch = 100

var (
	ErrReservoirNotFound = errors.New("reservoir not found")
	ErrReservoirDisabled = errors.New("reservoir disabled")
	ErrStreamUnsupported = errors.New("reservoir does not support streaming")
)

var tracer = tracing.Tracer("stream")

// Sink 接收流中产生的记录（通常是 Distillery）
type Sink interface {
	Accept(ctx context.Context, reservoir string, records []platform.Record) error
}

// Controller 启动流式查询并保证 (reservoir, task) 上不重复
type Controller struct {
	base       context.Context
	reservoirs repository.ReservoirRepository
	streams    repository.StreamRepository
	stamps     repository.StampRepository
	registry   *platform.Registry
	sink       Sink
	batch      int

	wg sync.WaitGroup
}

// NewController base 决定后台流的生命周期，与发起请求的 ctx 无关
func NewController(base context.Context, reservoirs repository.ReservoirRepository, streams repository.StreamRepository,
	stamps repository.StampRepository, registry *platform.Registry, sink Sink) *Controller {
	return &Controller{
		base:       base,
		reservoirs: reservoirs,
		streams:    streams,
		stamps:     stamps,
		registry:   registry,
		sink:       sink,
		batch:      defaultBatch,
	}
}

// Start 返回 true 表示新启动了一个流；已有活跃流时返回 false
func (c *Controller) Start(ctx context.Context, reservoirName string, q query.ReservoirQuery, watcherID *string) (bool, error) {
	res, err := c.reservoirs.GetByName(ctx, reservoirName)
	if errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrReservoirNotFound, reservoirName)
	}
	if err != nil {
		return false, err
	}
	if !res.Enabled {
		return false, fmt.Errorf("%w: %s", ErrReservoirDisabled, reservoirName)
	}
	ep, limiter, ok := c.registry.Lookup(reservoirName)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrReservoirNotFound, reservoirName)
	}
	streamer, ok := ep.(platform.Streamer)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrStreamUnsupported, reservoirName)
	}

	filtered, err := q.Filter(ep.Capabilities())
	if err != nil {
		return false, err
	}
	payload, err := json.Marshal(filtered)
	if err != nil {
		return false, err
	}
	inv := &model.Invoice{
		Stamp: model.Stamp{
			Reservoir: reservoirName,
			Endpoint:  TaskStream,
			Status:    model.StatusProcessing,
			Notes:     "processing",
			WatcherID: watcherID,
		},
		Query: payload,
	}

	s, started, err := c.streams.Activate(ctx, res.ID, TaskStream, inv)
	if err != nil {
		return false, fmt.Errorf("activate stream: %w", err)
	}
	if !started {
		logger.Info("stream already running", zap.String("reservoir", reservoirName))
		return false, nil
	}

	c.wg.Add(1)
	go c.run(s.ID, inv.StampID, reservoirName, streamer, limiter, filtered)
	return true, nil
}

// Wait 阻塞直到所有后台流退出
func (c *Controller) Wait() { c.wg.Wait() }

// List 返回所有流及其当前 invoice
func (c *Controller) List(ctx context.Context) ([]*model.Stream, error) {
	return c.streams.List(ctx)
}

func (c *Controller) run(streamID, stampID uint, reservoir string, ep platform.Streamer, limiter *rate.Limiter, q query.ReservoirQuery) {
	defer c.wg.Done()

	ctx, span := tracer.Start(c.base, "stream.run", trace.WithAttributes(attribute.String("reservoir", reservoir)))
	defer span.End()

	status, count, notes := model.StatusFailed, 0, fallbackNotes
	defer func() {
		if r := recover(); r != nil {
			err := errtrack.CapturePanic(r, map[string]string{"reservoir": reservoir, "task": TaskStream})
			logger.Error("stream panic", zap.String("reservoir", reservoir), zap.Any("panic", r))
			status, notes = model.StatusFailed, err.Error()
		}
		fctx := context.WithoutCancel(ctx)
		if err := c.stamps.Finish(fctx, stampID, status, count, notes); err != nil {
			logger.Error("finish stream stamp failed", zap.String("reservoir", reservoir), zap.Error(err))
		}
		if err := c.streams.Deactivate(fctx, streamID); err != nil {
			logger.Error("deactivate stream failed", zap.String("reservoir", reservoir), zap.Error(err))
		}
		if status != model.StatusOK {
			span.SetStatus(codes.Error, notes)
		}
		span.SetAttributes(attribute.Int("status", status), attribute.Int("records", count))
		logger.Info("stream finished", zap.String("reservoir", reservoir), zap.Int("status", status), zap.Int("records", count))
	}()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			status, notes = model.StatusRateLimited, err.Error()
			return
		}
	}

	buf := make([]platform.Record, 0, c.batch)
	flush := func() error {
		if len(buf) == 0 || c.sink == nil {
			buf = buf[:0]
			return nil
		}
		err := c.sink.Accept(ctx, reservoir, buf)
		buf = make([]platform.Record, 0, c.batch)
		return err
	}
	err := ep.Stream(ctx, q, func(r platform.Record) error {
		count++
		buf = append(buf, r)
		if len(buf) >= c.batch {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		errtrack.Capture(err, map[string]string{"reservoir": reservoir, "task": TaskStream})
		logger.Warn("stream failed", zap.String("reservoir", reservoir), zap.Error(err))
		notes = err.Error()
		return
	}
	status, notes = model.StatusOK, ""
}
