package pump

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/internal/platform"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

// PumpRoom 并发调用所有启用的水库
type PumpRoom struct {
	reservoirs repository.ReservoirRepository
	registry   *platform.Registry
	stamps     repository.StampRepository
}

func NewPumpRoom(reservoirs repository.ReservoirRepository, registry *platform.Registry, stamps repository.StampRepository) *PumpRoom {
	return &PumpRoom{reservoirs: reservoirs, registry: registry, stamps: stamps}
}

// Pumps 返回启用且已注册客户端的水库，按名称排序
func (r *PumpRoom) Pumps(ctx context.Context) ([]*Pump, error) {
	enabled, err := r.reservoirs.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	pumps := make([]*Pump, 0, len(enabled))
	for _, res := range enabled {
		ep, limiter, ok := r.registry.Lookup(res.Name)
		if !ok {
			logger.Debug("reservoir enabled but no endpoint registered", zap.String("reservoir", res.Name))
			continue
		}
		pumps = append(pumps, NewPump(res.Name, ep, limiter, r.stamps))
	}
	return pumps, nil
}

// GetResults 每个水库一个 goroutine，全部结束后按水库名返回。
// 单个水库失败只体现在对应的 Cargo 上。
func (r *PumpRoom) GetResults(ctx context.Context, q query.ReservoirQuery, watcherID *string) []Cargo {
	pumps, err := r.Pumps(ctx)
	if err != nil {
		logger.Error("list reservoirs failed", zap.Error(err))
		return []Cargo{}
	}

	var wg sync.WaitGroup
	resultChan := make(chan Cargo, len(pumps))
	for _, p := range pumps {
		wg.Add(1)
		go func(p *Pump) {
			defer wg.Done()
			resultChan <- p.Run(ctx, q, watcherID)
		}(p)
	}

	wg.Wait()
	close(resultChan)

	cargos := make([]Cargo, 0, len(pumps))
	for c := range resultChan {
		cargos = append(cargos, c)
	}
	sort.Slice(cargos, func(i, j int) bool { return cargos[i].Reservoir < cargos[j].Reservoir })
	return cargos
}
