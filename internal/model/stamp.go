package model

import (
	"time"

	"gorm.io/datatypes"
)

// Stamp 一次外部 API 调用的记录；Invoice / Dispatch 与其一对一
type Stamp struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Reservoir string    `json:"reservoir" gorm:"type:varchar(64);index:idx_stamp_reservoir_created"`
	Endpoint  string    `json:"endpoint" gorm:"type:varchar(64);not null"`
	Status    int       `json:"status" gorm:"index;not null"`
	Notes     string    `json:"notes,omitempty" gorm:"type:text"`
	Count     int       `json:"count"`
	WatcherID *string   `json:"watcher_id,omitempty" gorm:"type:varchar(36)"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_stamp_reservoir_created"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Stamp) TableName() string { return "stamps" }

// Succeeded 状态码为 2xx
func (s Stamp) Succeeded() bool { return s.Status >= 200 && s.Status < 300 }

// Invoice 查询类调用（搜索 / 流）的请求记录
type Invoice struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	StampID   uint           `json:"stamp_id" gorm:"uniqueIndex;not null"`
	Stamp     Stamp          `json:"stamp" gorm:"constraint:OnDelete:CASCADE"`
	Query     datatypes.JSON `json:"query"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Invoice) TableName() string { return "invoices" }

// Dispatch 动作类调用（告警通知）的请求记录
type Dispatch struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	StampID   uint      `json:"stamp_id" gorm:"uniqueIndex;not null"`
	Stamp     Stamp     `json:"stamp" gorm:"constraint:OnDelete:CASCADE"`
	AlertID   string    `json:"alert_id" gorm:"type:varchar(36);index"`
	Recipient string    `json:"recipient" gorm:"type:varchar(255)"`
	Subject   string    `json:"subject" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
}

func (Dispatch) TableName() string { return "dispatches" }

// 调用状态码（沿用 HTTP 语义）
const (
	StatusOK          = 200
	StatusProcessing  = 202
	StatusBadQuery    = 400
	StatusRateLimited = 429
	StatusFailed      = 500
)
