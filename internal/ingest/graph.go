// Package ingest 把第三方告警和溯源导出解析成事件图的节点和边
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/d60-Lab/pumproom/internal/model"
)

const (
	FormatFireEyeAX = "fireeye-ax"
	FormatDARPATC   = "darpa-tc"
)

var ErrUnknownFormat = errors.New("unknown import format")

// NodeSpec 以自然键标识的节点
type NodeSpec struct {
	Key   string
	Kind  string
	Label string
	Props map[string]any
}

// EdgeSpec 连接两个节点 key
type EdgeSpec struct {
	SourceKey string
	TargetKey string
	Relation  string
}

// Graph 解析结果，节点按首次出现的顺序
type Graph struct {
	Nodes   []NodeSpec
	Edges   []EdgeSpec
	Skipped int

	index map[string]int
	seen  map[EdgeSpec]struct{}
}

func newGraph() *Graph {
	return &Graph{index: make(map[string]int), seen: make(map[EdgeSpec]struct{})}
}

// node 按 key 去重；后出现的非空 label 覆盖占位 label
func (g *Graph) node(key, kind, label string, props map[string]any) string {
	props = clean(props)
	if i, ok := g.index[key]; ok {
		if label != "" && g.Nodes[i].Label == "" {
			g.Nodes[i].Label = label
		}
		for k, v := range props {
			if g.Nodes[i].Props == nil {
				g.Nodes[i].Props = map[string]any{}
			}
			g.Nodes[i].Props[k] = v
		}
		return key
	}
	g.index[key] = len(g.Nodes)
	g.Nodes = append(g.Nodes, NodeSpec{Key: key, Kind: kind, Label: label, Props: props})
	return key
}

func (g *Graph) has(key string) bool {
	_, ok := g.index[key]
	return ok
}

func (g *Graph) edge(src, dst, relation string) {
	if src == "" || dst == "" || src == dst {
		return
	}
	e := EdgeSpec{SourceKey: src, TargetKey: dst, Relation: relation}
	if _, ok := g.seen[e]; ok {
		return
	}
	g.seen[e] = struct{}{}
	g.Edges = append(g.Edges, e)
}

// Parse 按导入格式名分派
func Parse(format string, r io.Reader) (*Graph, error) {
	switch format {
	case FormatFireEyeAX:
		return ParseFireEyeAX(r)
	case FormatDARPATC:
		return ParseDARPATC(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func processKey(pid, image string) string {
	return fmt.Sprintf("%s:%s:%s", model.NodeProcess, pid, strings.ToLower(image))
}

func objectKey(kind, value string) string {
	return kind + ":" + strings.ToLower(value)
}

// baseName 兼容 Windows 与 POSIX 路径
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 && i < len(p)-1 {
		return p[i+1:]
	}
	return p
}

// clean 去掉空字符串属性
func clean(props map[string]any) map[string]any {
	for k, v := range props {
		if s, ok := v.(string); ok && s == "" {
			delete(props, k)
		}
	}
	if len(props) == 0 {
		return nil
	}
	return props
}
