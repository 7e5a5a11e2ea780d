package service

import (
	"context"
	"time"

	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/monitoring"
)

// Provider 上游临时邮箱服务的抽象。
type Provider interface {
	ListDomains(ctx context.Context) ([]mailtm.Domain, error)
	CreateAccount(ctx context.Context, address, password string) (*mailtm.AccountInfo, error)
	GetToken(ctx context.Context, address, password string) (string, error)
	ListMessages(ctx context.Context, token string) ([]mailtm.MessageSummary, error)
	GetMessage(ctx context.Context, token, messageID string) (*mailtm.MessageDetail, error)
	MarkSeen(ctx context.Context, token, messageID string) error
	DeleteMessage(ctx context.Context, token, messageID string) error
	DeleteAccount(ctx context.Context, token, accountID string) error
}

// instrumentedProvider 在上游调用外层记录监控指标。
type instrumentedProvider struct {
	next    Provider
	metrics *monitoring.Metrics
}

// InstrumentProvider 包装上游客户端，记录每次调用的耗时与结果。
func InstrumentProvider(next Provider, metrics *monitoring.Metrics) Provider {
	if metrics == nil {
		return next
	}
	return &instrumentedProvider{next: next, metrics: metrics}
}

func (p *instrumentedProvider) record(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.metrics.RecordProviderRequest(operation, outcome, time.Since(start))
}

func (p *instrumentedProvider) ListDomains(ctx context.Context) ([]mailtm.Domain, error) {
	start := time.Now()
	domains, err := p.next.ListDomains(ctx)
	p.record("list_domains", start, err)
	return domains, err
}

func (p *instrumentedProvider) CreateAccount(ctx context.Context, address, password string) (*mailtm.AccountInfo, error) {
	start := time.Now()
	info, err := p.next.CreateAccount(ctx, address, password)
	p.record("create_account", start, err)
	return info, err
}

func (p *instrumentedProvider) GetToken(ctx context.Context, address, password string) (string, error) {
	start := time.Now()
	token, err := p.next.GetToken(ctx, address, password)
	p.record("get_token", start, err)
	return token, err
}

func (p *instrumentedProvider) ListMessages(ctx context.Context, token string) ([]mailtm.MessageSummary, error) {
	start := time.Now()
	messages, err := p.next.ListMessages(ctx, token)
	p.record("list_messages", start, err)
	return messages, err
}

func (p *instrumentedProvider) GetMessage(ctx context.Context, token, messageID string) (*mailtm.MessageDetail, error) {
	start := time.Now()
	detail, err := p.next.GetMessage(ctx, token, messageID)
	p.record("get_message", start, err)
	return detail, err
}

func (p *instrumentedProvider) MarkSeen(ctx context.Context, token, messageID string) error {
	start := time.Now()
	err := p.next.MarkSeen(ctx, token, messageID)
	p.record("mark_seen", start, err)
	return err
}

func (p *instrumentedProvider) DeleteMessage(ctx context.Context, token, messageID string) error {
	start := time.Now()
	err := p.next.DeleteMessage(ctx, token, messageID)
	p.record("delete_message", start, err)
	return err
}

func (p *instrumentedProvider) DeleteAccount(ctx context.Context, token, accountID string) error {
	start := time.Now()
	err := p.next.DeleteAccount(ctx, token, accountID)
	p.record("delete_account", start, err)
	return err
}
