// Package errtrack 封装 Sentry 上报；未配置 DSN 时所有调用都是空操作
package errtrack

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/d60-Lab/pumproom/config"
)

// Init 初始化 Sentry 客户端，DSN 为空时跳过
func Init(cfg config.SentryConfig, env string) error {
	if cfg.DSN == "" {
		return nil
	}
	if cfg.Environment != "" {
		env = cfg.Environment
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		SampleRate:  cfg.SampleRate,
		Environment: env,
	})
}

// Capture 上报错误并附带标签
func Capture(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic 把 recover() 的值转换成 error 上报，并返回该 error
func CapturePanic(r any, tags map[string]string) error {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	} else {
		err = fmt.Errorf("panic: %w", err)
	}
	Capture(err, tags)
	return err
}

// Flush 等待缓冲事件发送完成
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
