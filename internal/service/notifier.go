package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/d60-Lab/pumproom/config"
	"github.com/d60-Lab/pumproom/internal/model"
	"github.com/d60-Lab/pumproom/internal/repository"
	"github.com/d60-Lab/pumproom/pkg/logger"
)

const (
	dispatchReservoir = "mail"
	dispatchEndpoint  = "email"
)

// Dialer 发送邮件，*gomail.Dialer 满足该接口
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Notifier 告警邮件通知；每次投递记录 Stamp + Dispatch
type Notifier struct {
	dialer Dialer
	from   string
	stamps repository.StampRepository
}

// NewNotifier 未启用邮件时返回 nil，调用方按 nil 处理
func NewNotifier(cfg config.MailConfig, stamps repository.StampRepository) *Notifier {
	if !cfg.Enabled || cfg.Host == "" {
		return nil
	}
	return NewNotifierWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, stamps)
}

func NewNotifierWithDialer(d Dialer, from string, stamps repository.StampRepository) *Notifier {
	return &Notifier{dialer: d, from: from, stamps: stamps}
}

// NotifyAlert 发送一封告警邮件。发送失败也会落一条 500 的 Dispatch。
func (n *Notifier) NotifyAlert(ctx context.Context, alert *model.Alert, to *model.Watcher, fields map[string]any) error {
	if n == nil || to == nil || to.Email == "" {
		return nil
	}
	subject := fmt.Sprintf("[pumproom] new %s document", alert.Distillery)

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", alertBody(alert, fields))

	status, notes := model.StatusOK, ""
	sendErr := n.dialer.DialAndSend(m)
	if sendErr != nil {
		status, notes = model.StatusFailed, sendErr.Error()
		logger.Warn("send alert mail failed", zap.String("alert", alert.ID), zap.String("to", to.Email), zap.Error(sendErr))
	}

	watcherID := to.ID
	d := &model.Dispatch{
		Stamp: model.Stamp{
			Reservoir: dispatchReservoir,
			Endpoint:  dispatchEndpoint,
			Status:    status,
			Notes:     notes,
			Count:     1,
			WatcherID: &watcherID,
		},
		AlertID:   alert.ID,
		Recipient: to.Email,
		Subject:   subject,
	}
	if err := n.stamps.CreateDispatch(ctx, d); err != nil {
		logger.Error("record dispatch failed", zap.String("alert", alert.ID), zap.Error(err))
	}
	return sendErr
}

func alertBody(alert *model.Alert, fields map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "distillery: %s\ndocument: %s\n\n", alert.Distillery, alert.DocumentID)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, fields[k])
	}
	return b.String()
}
