package model

import "time"

// Reservoir 第三方数据平台（水库），启用后参与查询扇出
type Reservoir struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string    `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
	Platform   string    `json:"platform" gorm:"type:varchar(32);not null"`
	Enabled    bool      `json:"enabled" gorm:"not null;default:false"`
	RatePerSec float64   `json:"rate_per_sec"`
	Burst      int       `json:"burst"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Reservoir) TableName() string { return "reservoirs" }
