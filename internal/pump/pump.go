// Package pump 把一次逻辑查询分发到所有启用的水库并收集结果
package pump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

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

// TaskAdhocSearch 即时搜索任务名，同时作为 Stamp.Endpoint
const TaskAdhocSearch = "adhoc_search"

var tracer = tracing.Tracer("pump")

// Cargo 单个水库的查询结果
type Cargo struct {
	Reservoir string            `json:"reservoir"`
	InvoiceID uint              `json:"invoice_id,omitempty"`
	Status    int               `json:"status"`
	Records   []platform.Record `json:"records,omitempty"`
	Error     string            `json:"error,omitempty"`
	Err       error             `json:"-"`

	stampID uint
}

// OK 调用成功
func (c Cargo) OK() bool { return c.Status >= 200 && c.Status < 300 }

func (c *Cargo) fail(status int, err error) {
	c.Status = status
	c.Err = err
	c.Records = nil
	if err != nil {
		c.Error = err.Error()
	}
}

// Pump 负责一个水库的一次调用：过滤、限流、调用、记账
type Pump struct {
	Reservoir string
	endpoint  platform.Endpoint
	limiter   *rate.Limiter
	stamps    repository.StampRepository
}

func NewPump(reservoir string, ep platform.Endpoint, limiter *rate.Limiter, stamps repository.StampRepository) *Pump {
	if limiter == nil {
		limiter = platform.NewLimiter(0, 1)
	}
	return &Pump{Reservoir: reservoir, endpoint: ep, limiter: limiter, stamps: stamps}
}

// Run 执行调用。错误和 panic 都转成失败的 Cargo，不会向上抛出。
func (p *Pump) Run(ctx context.Context, q query.ReservoirQuery, watcherID *string) (cargo Cargo) {
	ctx, span := tracer.Start(ctx, "pump.run", trace.WithAttributes(attribute.String("reservoir", p.Reservoir)))
	defer span.End()

	cargo = Cargo{Reservoir: p.Reservoir, Status: model.StatusProcessing}
	defer func() {
		if r := recover(); r != nil {
			err := errtrack.CapturePanic(r, map[string]string{"reservoir": p.Reservoir, "task": TaskAdhocSearch})
			logger.Error("pump panic", zap.String("reservoir", p.Reservoir), zap.Any("panic", r))
			cargo.fail(model.StatusFailed, err)
		}
		p.finish(ctx, &cargo)
		if !cargo.OK() {
			span.SetStatus(codes.Error, cargo.Error)
		}
		span.SetAttributes(attribute.Int("status", cargo.Status), attribute.Int("records", len(cargo.Records)))
	}()

	filtered, ferr := q.Filter(p.endpoint.Capabilities())
	payload, err := json.Marshal(filtered)
	if err != nil {
		cargo.fail(model.StatusFailed, fmt.Errorf("encode query: %w", err))
		return cargo
	}
	inv := &model.Invoice{
		Stamp: model.Stamp{
			Reservoir: p.Reservoir,
			Endpoint:  TaskAdhocSearch,
			Status:    model.StatusProcessing,
			WatcherID: watcherID,
		},
		Query: payload,
	}
	if err := p.stamps.CreateInvoice(ctx, inv); err != nil {
		cargo.fail(model.StatusFailed, fmt.Errorf("record invoice: %w", err))
		return cargo
	}
	cargo.InvoiceID = inv.ID
	cargo.stampID = inv.StampID

	if ferr != nil {
		// 过滤后没有可用条件，不调用平台
		cargo.fail(model.StatusBadQuery, ferr)
		return cargo
	}
	if err := p.limiter.Wait(ctx); err != nil {
		cargo.fail(model.StatusRateLimited, fmt.Errorf("rate limit wait: %w", err))
		return cargo
	}

	records, err := p.endpoint.Search(ctx, filtered)
	if err != nil {
		cargo.fail(statusFor(err), err)
		return cargo
	}
	cargo.Status = model.StatusOK
	cargo.Records = records
	return cargo
}

// finish 回写 Stamp；请求 ctx 可能已取消，记账不能跟着失败
func (p *Pump) finish(ctx context.Context, cargo *Cargo) {
	if cargo.Status == model.StatusProcessing {
		cargo.fail(model.StatusFailed, errors.New("pump ended without result"))
	}
	if !cargo.OK() && cargo.Status != model.StatusBadQuery {
		errtrack.Capture(cargo.Err, map[string]string{"reservoir": p.Reservoir, "task": TaskAdhocSearch})
		logger.Warn("pump failed",
			zap.String("reservoir", p.Reservoir),
			zap.Int("status", cargo.Status),
			zap.Error(cargo.Err))
	}
	if cargo.stampID == 0 {
		return
	}
	if err := p.stamps.Finish(context.WithoutCancel(ctx), cargo.stampID, cargo.Status, len(cargo.Records), cargo.Error); err != nil {
		logger.Error("finish stamp failed", zap.String("reservoir", p.Reservoir), zap.Uint("stamp_id", cargo.stampID), zap.Error(err))
	}
}

// statusFor 平台返回 429 时沿用，其余一律记为 500
func statusFor(err error) int {
	var se *platform.StatusError
	if errors.As(err, &se) && se.Code == model.StatusRateLimited {
		return model.StatusRateLimited
	}
	return model.StatusFailed
}
