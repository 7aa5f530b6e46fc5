// Package query 扇出到各水库的逻辑查询
package query

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrEmpty 查询没有平台可用的条件
var ErrEmpty = errors.New("query has no usable criteria")

var validate = validator.New()

// Location 坐标点和搜索半径（公里）
type Location struct {
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon      float64 `json:"lon" validate:"gte=-180,lte=180"`
	RadiusKm float64 `json:"radius_km" validate:"gte=0"`
}

// TimeFrame 时间范围，零值表示不限
type TimeFrame struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero 两端都未设置
func (tf TimeFrame) IsZero() bool { return tf.Start.IsZero() && tf.End.IsZero() }

// ReservoirQuery 与水库无关的查询描述
type ReservoirQuery struct {
	Accounts    []string   `json:"accounts,omitempty" validate:"dive,required"`
	Locations   []Location `json:"locations,omitempty" validate:"dive"`
	SearchTerms []string   `json:"search_terms,omitempty" validate:"dive,required"`
	TimeFrame   TimeFrame  `json:"time_frame"`
}

// Validate 校验字段约束和时间先后
func (q ReservoirQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	if !q.TimeFrame.Start.IsZero() && !q.TimeFrame.End.IsZero() && q.TimeFrame.End.Before(q.TimeFrame.Start) {
		return errors.New("time_frame end is before start")
	}
	return nil
}

// HasCriteria 除时间外是否还有其他条件
func (q ReservoirQuery) HasCriteria() bool {
	return len(q.Accounts) > 0 || len(q.Locations) > 0 || len(q.SearchTerms) > 0
}

// Capabilities 平台支持哪些查询字段
type Capabilities struct {
	Accounts    bool
	Locations   bool
	SearchTerms bool
	TimeFrame   bool
}

// Filter 只保留平台支持的字段，返回副本；接收者在多个 pump 间共享，不能修改
func (q ReservoirQuery) Filter(c Capabilities) (ReservoirQuery, error) {
	var out ReservoirQuery
	if c.Accounts {
		out.Accounts = append([]string(nil), q.Accounts...)
	}
	if c.Locations {
		out.Locations = append([]Location(nil), q.Locations...)
	}
	if c.SearchTerms {
		out.SearchTerms = append([]string(nil), q.SearchTerms...)
	}
	if c.TimeFrame {
		out.TimeFrame = q.TimeFrame
	}
	if !out.HasCriteria() {
		return out, ErrEmpty
	}
	return out, nil
}
