package model

import "time"

// Stream 长连接查询状态；(reservoir_id, task) 唯一
type Stream struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ReservoirID uint      `json:"reservoir_id" gorm:"not null;uniqueIndex:ux_stream_reservoir_task"`
	Reservoir   Reservoir `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Task        string    `json:"task" gorm:"type:varchar(32);not null;uniqueIndex:ux_stream_reservoir_task"`
	Active      bool      `json:"active" gorm:"not null;default:false"`
	InvoiceID   *uint     `json:"invoice_id,omitempty"`
	Invoice     *Invoice  `json:"invoice,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Stream) TableName() string { return "streams" }
