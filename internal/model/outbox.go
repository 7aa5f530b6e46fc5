package model

import "time"

// Outbox 状态
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
)

// Outbox 文档入库事件外发盒，由告警扇出 worker 消费
type Outbox struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	DocumentID  string     `gorm:"type:varchar(36);uniqueIndex"`
	Distillery  string     `gorm:"type:varchar(64);index:idx_outbox_distillery"`
	CreatedAt   time.Time  `gorm:"index"`
	Status      string     `gorm:"type:varchar(16);index"`
	ProcessedAt *time.Time
	FanoutCount int64
}

func (Outbox) TableName() string { return "outbox" }
