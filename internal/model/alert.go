package model

import "time"

// Alert 订阅者的告警流（按 watcher_id 切分）
type Alert struct {
	ID         string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WatcherID  string `json:"watcher_id" gorm:"type:varchar(36);index:idx_alert_watcher;uniqueIndex:ux_alert_watcher_document"`
	DocumentID string `json:"document_id" gorm:"type:varchar(36);index:idx_alert_document;uniqueIndex:ux_alert_watcher_document"`
	// ux_alert_watcher_document = (watcher_id, document_id)，重复投递不产生重复告警
	Distillery string    `json:"distillery" gorm:"type:varchar(64)"`
	Score      int64     `json:"score" gorm:"index:idx_alert_watcher_score"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_alert_watcher_score"`
}

func (Alert) TableName() string { return "alerts" }
