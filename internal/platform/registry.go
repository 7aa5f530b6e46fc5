package platform

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/d60-Lab/pumproom/config"
)

// Registry 水库名到平台端点和限流器的映射
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	endpoint Endpoint
	limiter  *rate.Limiter
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// NewLimiter 令牌桶；速率 <= 0 表示不限流
func NewLimiter(ratePerSec float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if ratePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(ratePerSec), burst)
}

// Register 注册或替换水库的端点
func (r *Registry) Register(name string, ep Endpoint, ratePerSec float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{endpoint: ep, limiter: NewLimiter(ratePerSec, burst)}
}

// Lookup 返回水库对应的端点和限流器
func (r *Registry) Lookup(name string) (Endpoint, *rate.Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, nil, false
	}
	return e.endpoint, e.limiter, true
}

// Names 按名称排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromConfig 为每个配置的水库建一个客户端
func FromConfig(cfgs []config.ReservoirConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, c := range cfgs {
		ep, err := New(c)
		if err != nil {
			return nil, fmt.Errorf("reservoir %s: %w", c.Name, err)
		}
		reg.Register(c.Name, ep, c.RatePerSec, c.Burst)
	}
	return reg, nil
}

// New 按单个水库配置构建客户端
func New(c config.ReservoirConfig) (Endpoint, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch c.Platform {
	case PlatformVirusTotal:
		if c.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewVirusTotal(&http.Client{Timeout: timeout}, c.BaseURL, c.APIKey, c.PageSize), nil
	case PlatformElasticsearch:
		return NewElastic(ElasticOptions{
			Address:      c.BaseURL,
			Username:     c.Username,
			Password:     c.Password,
			APIKey:       c.APIKey,
			Index:        c.Index,
			AccountField: c.AccountField,
			PageSize:     c.PageSize,
			Timeout:      timeout,
		})
	case PlatformSplunk:
		// 导出接口是流式的，不设置整体超时
		return NewSplunk(&http.Client{}, SplunkOptions{
			BaseURL:      c.BaseURL,
			Token:        c.APIKey,
			Username:     c.Username,
			Password:     c.Password,
			Index:        c.Index,
			AccountField: c.AccountField,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, c.Platform)
	}
}
