package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/d60-Lab/pumproom/internal/ingest"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
)

var (
	ErrSelfLoop     = errors.New("edge source and target must differ")
	ErrNodeNotFound = errors.New("node not found")

	// ErrMalformedImport 导入文件无法解析
	ErrMalformedImport = errors.New("malformed import")
)

// ImportResult 导入统计
type ImportResult struct {
	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
	Skipped int `json:"skipped"`
}

// GraphService 事件图服务：出边同步写，入边由 replicator 异步冗余
type GraphService interface {
	Link(ctx context.Context, sourceID, targetID, relation string) error
	Unlink(ctx context.Context, sourceID, targetID, relation string) error
	ListOutgoing(ctx context.Context, nodeID string, page, pageSize int) ([]*model.Edge, error)
	ListIncoming(ctx context.Context, nodeID string, page, pageSize int) ([]*model.IncomingEdge, error)
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	Import(ctx context.Context, format string, r io.Reader) (*ImportResult, error)
}

type graphService struct {
	nodeRepo   repository.NodeRepository
	edgeRepo   repository.EdgeRepository
	inRepo     repository.IncomingEdgeRepository
	replicator *EdgeReplicator
}

// NewGraphService replicator 为 nil 时同步写入边索引
func NewGraphService(nodeRepo repository.NodeRepository, edgeRepo repository.EdgeRepository, inRepo repository.IncomingEdgeRepository, replicator *EdgeReplicator) GraphService {
	return &graphService{nodeRepo: nodeRepo, edgeRepo: edgeRepo, inRepo: inRepo, replicator: replicator}
}

func (s *graphService) Link(ctx context.Context, sourceID, targetID, relation string) error {
	if sourceID == targetID {
		return ErrSelfLoop
	}
	nodes, err := s.nodeRepo.GetByIDs(ctx, []string{sourceID, targetID})
	if err != nil {
		return err
	}
	if len(nodes) != 2 {
		return ErrNodeNotFound
	}
	return s.link(ctx, sourceID, targetID, relation)
}

func (s *graphService) link(ctx context.Context, sourceID, targetID, relation string) error {
	if err := s.edgeRepo.Create(ctx, sourceID, targetID, relation); err != nil {
		return err
	}
	if s.replicator != nil {
		s.replicator.EnqueueAdd(targetID, sourceID, relation)
		return nil
	}
	return s.inRepo.Create(ctx, targetID, sourceID, relation)
}

func (s *graphService) Unlink(ctx context.Context, sourceID, targetID, relation string) error {
	if err := s.edgeRepo.Delete(ctx, sourceID, targetID, relation); err != nil {
		return err
	}
	if s.replicator != nil {
		s.replicator.EnqueueRemove(targetID, sourceID, relation)
		return nil
	}
	return s.inRepo.Delete(ctx, targetID, sourceID, relation)
}

func (s *graphService) ListOutgoing(ctx context.Context, nodeID string, page, pageSize int) ([]*model.Edge, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return s.edgeRepo.ListOutgoing(ctx, nodeID, (page-1)*pageSize, pageSize)
}

func (s *graphService) ListIncoming(ctx context.Context, nodeID string, page, pageSize int) ([]*model.IncomingEdge, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return s.inRepo.ListIncoming(ctx, nodeID, (page-1)*pageSize, pageSize)
}

func (s *graphService) GetNode(ctx context.Context, nodeID string) (*model.Node, error) {
	n, err := s.nodeRepo.Get(ctx, nodeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNodeNotFound
	}
	return n, err
}

// Import 解析导出文件并写入节点和边；节点按 key 去重
func (s *graphService) Import(ctx context.Context, format string, r io.Reader) (*ImportResult, error) {
	g, err := ingest.Parse(format, r)
	if errors.Is(err, ingest.ErrUnknownFormat) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedImport, err)
	}
	ids := make(map[string]string, len(g.Nodes))
	for _, spec := range g.Nodes {
		var props []byte
		if len(spec.Props) > 0 {
			if props, err = json.Marshal(spec.Props); err != nil {
				return nil, err
			}
		}
		n := &model.Node{Key: spec.Key, Kind: spec.Kind, Label: spec.Label, Props: props}
		if err := s.nodeRepo.UpsertByKey(ctx, n); err != nil {
			return nil, err
		}
		ids[spec.Key] = n.ID
	}
	for _, e := range g.Edges {
		if err := s.link(ctx, ids[e.SourceKey], ids[e.TargetKey], e.Relation); err != nil {
			return nil, err
		}
	}
	return &ImportResult{Nodes: len(g.Nodes), Edges: len(g.Edges), Skipped: g.Skipped}, nil
}
