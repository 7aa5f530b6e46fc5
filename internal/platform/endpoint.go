// Package platform 第三方情报平台客户端，以及把它们绑定到水库的注册表
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/d60-Lab/pumproom/internal/query"
)

// Record 平台返回的一条原始记录
type Record map[string]any

// Endpoint 能回答即时查询的平台客户端
type Endpoint interface {
	Platform() string
	Capabilities() query.Capabilities
	Search(ctx context.Context, q query.ReservoirQuery) ([]Record, error)
}

// Streamer 长查询可以边查边交付结果的端点
type Streamer interface {
	Endpoint
	Stream(ctx context.Context, q query.ReservoirQuery, emit func(Record) error) error
}

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrMissingAPIKey   = errors.New("missing api key")
)

// StatusError 平台返回非成功状态码
type StatusError struct {
	Platform string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Platform, e.Code, e.Body)
}

// collect 把流式结果收集成切片
func collect(ctx context.Context, s Streamer, q query.ReservoirQuery) ([]Record, error) {
	var out []Record
	err := s.Stream(ctx, q, func(r Record) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readStatusError(platform string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Platform: platform, Code: resp.StatusCode, Body: string(body)}
}
