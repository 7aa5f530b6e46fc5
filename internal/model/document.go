package model

import (
	"time"

	"gorm.io/datatypes"
)

// Document 蒸馏后的文档（按 distillery 存储）
type Document struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Distillery string         `json:"distillery" gorm:"type:varchar(64);index:idx_document_distillery_created;not null"`
	Reservoir  string         `json:"reservoir" gorm:"type:varchar(64);index"`
	Fields     datatypes.JSON `json:"fields"`
	Raw        datatypes.JSON `json:"raw,omitempty"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index:idx_document_distillery_created"`
}

func (Document) TableName() string { return "documents" }
