package model

import (
	"time"

	"gorm.io/datatypes"
)

// 节点类型
const (
	NodeProcess  = "process"
	NodeFile     = "file"
	NodeRegistry = "registry"
	NodeNetwork  = "network"
	NodeHost     = "host"
)

// Node 事件图节点；Key 由类型和自然标识组成，导入时用于去重
type Node struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Key       string         `json:"key" gorm:"column:node_key;type:varchar(512);uniqueIndex;not null"`
	Kind      string         `json:"kind" gorm:"type:varchar(16);index;not null"`
	Label     string         `json:"label" gorm:"type:varchar(512)"`
	Props     datatypes.JSON `json:"props,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Node) TableName() string { return "nodes" }

// Edge 有向边（source -> target）
type Edge struct {
	ID       string `gorm:"primaryKey;type:varchar(36)"`
	SourceID string `gorm:"type:varchar(36);index:idx_edge_source;index:idx_edge_triple,unique;not null"`
	TargetID string `gorm:"type:varchar(36);not null;index:idx_edge_triple,unique"`
	Relation string `gorm:"type:varchar(32);not null;index:idx_edge_triple,unique"`
	// 复合唯一键，避免重复边
	// idx_edge_triple = (source_id, target_id, relation)
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Edge) TableName() string { return "edges" }

// IncomingEdge 入边索引（target 的来源是 source）冗余自 Edge
type IncomingEdge struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	TargetID  string `gorm:"type:varchar(36);index:idx_in_target;index:idx_in_triple,unique;not null"`
	SourceID  string `gorm:"type:varchar(36);not null;index:idx_in_triple,unique"`
	Relation  string `gorm:"type:varchar(32);not null;index:idx_in_triple,unique"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (IncomingEdge) TableName() string { return "incoming_edges" }
