package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/storage/memory"
)

// fakeProvider 可编程的上游替身。
type fakeProvider struct {
	domains  []mailtm.Domain
	inbox    map[string][]mailtm.MessageSummary
	details  map[string]*mailtm.MessageDetail
	tokens   map[string]string

	createErr error
	listErr   error

	createdAccounts []string
	deletedAccounts []string
	deletedMessages []string
	seenMessages    []string

	nextAccountID int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		domains: []mailtm.Domain{
			{ID: "d1", Domain: "temp.example", IsActive: true},
		},
		inbox:   make(map[string][]mailtm.MessageSummary),
		details: make(map[string]*mailtm.MessageDetail),
		tokens:  make(map[string]string),
	}
}

func (p *fakeProvider) ListDomains(ctx context.Context) ([]mailtm.Domain, error) {
	return p.domains, nil
}

func (p *fakeProvider) CreateAccount(ctx context.Context, address, password string) (*mailtm.AccountInfo, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.nextAccountID++
	id := fmt.Sprintf("acc-%d", p.nextAccountID)
	p.createdAccounts = append(p.createdAccounts, address)
	return &mailtm.AccountInfo{ID: id, Address: address}, nil
}

func (p *fakeProvider) GetToken(ctx context.Context, address, password string) (string, error) {
	token := "token-" + address
	p.tokens[address] = token
	return token, nil
}

func (p *fakeProvider) ListMessages(ctx context.Context, token string) ([]mailtm.MessageSummary, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return p.inbox[token], nil
}

func (p *fakeProvider) GetMessage(ctx context.Context, token, messageID string) (*mailtm.MessageDetail, error) {
	detail, ok := p.details[messageID]
	if !ok {
		return nil, &mailtm.APIError{StatusCode: http.StatusNotFound, Body: "not found"}
	}
	return detail, nil
}

func (p *fakeProvider) MarkSeen(ctx context.Context, token, messageID string) error {
	p.seenMessages = append(p.seenMessages, messageID)
	return nil
}

func (p *fakeProvider) DeleteMessage(ctx context.Context, token, messageID string) error {
	p.deletedMessages = append(p.deletedMessages, messageID)
	return nil
}

func (p *fakeProvider) DeleteAccount(ctx context.Context, token, accountID string) error {
	p.deletedAccounts = append(p.deletedAccounts, accountID)
	return nil
}

// newTestServices 构建基于内存存储的服务组合。
func newTestServices(provider Provider) (*AccountService, *MessageService, *DomainService, *memory.Store) {
	store := memory.NewStore(24 * time.Hour)
	domains := NewDomainService(store, provider, nil, nil)
	accounts := NewAccountService(store, provider, domains, nil, 24*time.Hour, nil, nil)
	messages := NewMessageService(store, provider, nil, nil, nil)
	return accounts, messages, domains, store
}
