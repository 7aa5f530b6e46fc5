package model

import "time"

// Watcher 分析员账号
type Watcher struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"type:varchar(64);uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"type:varchar(255)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Watcher) TableName() string { return "watchers" }

// Subscription watcher 订阅 distillery 的告警
// idx_sub_pair = (distillery, watcher_id)，重复订阅不报错
type Subscription struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Distillery  string    `json:"distillery" gorm:"type:varchar(64);index:idx_sub_distillery;index:idx_sub_pair,unique;not null"`
	WatcherID   string    `json:"watcher_id" gorm:"type:varchar(36);not null;index:idx_sub_pair,unique"`
	NotifyEmail bool      `json:"notify_email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
