package platform

import (
	"context"
	"time"

	"github.com/d60-Lab/pumproom/internal/query"
)

const PlatformStub = "stub"

// Stub 进程内端点，用于压测和本地联调；设置 Hook 时替代固定返回
type Stub struct {
	Caps    query.Capabilities
	Delay   time.Duration
	Records []Record
	Err     error
	Hook    func(ctx context.Context, q query.ReservoirQuery) ([]Record, error)
}

func (s *Stub) Platform() string { return PlatformStub }

func (s *Stub) Capabilities() query.Capabilities { return s.Caps }

func (s *Stub) Search(ctx context.Context, q query.ReservoirQuery) ([]Record, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Hook != nil {
		return s.Hook(ctx, q)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Records, nil
}

func (s *Stub) Stream(ctx context.Context, q query.ReservoirQuery, emit func(Record) error) error {
	recs, err := s.Search(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := emit(r); err != nil {
			return err
		}
	}
	return nil
}
