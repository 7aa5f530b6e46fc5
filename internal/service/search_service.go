package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/pumproom/internal/pump"
	"github.com/d60-Lab/pumproom/internal/query"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

// ErrInvalidQuery 查询参数不合法
type ErrInvalidQuery struct{ Err error }

func (e *ErrInvalidQuery) Error() string { return fmt.Sprintf("invalid query: %v", e.Err) }
func (e *ErrInvalidQuery) Unwrap() error { return e.Err }

// SearchResult 一次扇出搜索的结果
type SearchResult struct {
	Cargo     []pump.Cargo        `json:"cargo"`
	Distilled map[string][]string `json:"distilled,omitempty"`
}

// SearchService 校验查询后交给 PumpRoom；可选把成功结果送去蒸馏
type SearchService struct {
	room       *pump.PumpRoom
	distillery *Distillery
}

func NewSearchService(room *pump.PumpRoom, distillery *Distillery) *SearchService {
	return &SearchService{room: room, distillery: distillery}
}

func (s *SearchService) Search(ctx context.Context, q query.ReservoirQuery, watcherID *string, distill bool) (*SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, &ErrInvalidQuery{Err: err}
	}
	if !q.HasCriteria() {
		return nil, &ErrInvalidQuery{Err: query.ErrEmpty}
	}
	res := &SearchResult{Cargo: s.room.GetResults(ctx, q, watcherID)}
	if distill && s.distillery != nil {
		res.Distilled = s.distill(ctx, res.Cargo)
	}
	return res, nil
}

// distill 蒸馏失败只记日志，不影响搜索结果
func (s *SearchService) distill(ctx context.Context, cargos []pump.Cargo) map[string][]string {
	out := map[string][]string{}
	for _, c := range cargos {
		if !c.OK() || len(c.Records) == 0 {
			continue
		}
		written, err := s.distillery.Distill(ctx, c.Reservoir, c.Records)
		if err != nil {
			logger.Warn("distill cargo failed", zap.String("reservoir", c.Reservoir), zap.Error(err))
			continue
		}
		for name, ids := range written {
			out[name] = append(out[name], ids...)
		}
	}
	return out
}
