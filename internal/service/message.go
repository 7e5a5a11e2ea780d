package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/monitoring"
	"mailproxy/backend/internal/storage"
	"mailproxy/backend/internal/storage/redis"
)

const (
	messageListCacheTTL = 30 * time.Second
	messageCacheTTL     = 5 * time.Minute
)

// MessageService 封装邮件相关业务操作。
type MessageService struct {
	store    storage.Store
	provider Provider
	cache    *redis.Cache
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(store storage.Store, provider Provider, cache *redis.Cache, metrics *monitoring.Metrics, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		store:    store,
		provider: provider,
		cache:    cache,
		metrics:  metrics,
		log:      log,
	}
}

// Refresh 从上游同步收件箱并返回按时间倒序的邮件列表。
// 非上游托管的账户直接返回本地列表。
func (s *MessageService) Refresh(ctx context.Context, email string) ([]domain.Message, error) {
	account, err := s.store.GetAccount(email)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, err := s.cache.GetCachedMessageList(email); err == nil {
			return cached, nil
		}
	}

	if account.DomainType == string(domain.DomainKindProvider) {
		summaries, err := s.provider.ListMessages(ctx, account.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch inbox: %w", err)
		}

		for _, summary := range summaries {
			message := summaryToMessage(email, summary)
			if err := s.store.SaveMessage(&message); err != nil {
				s.log.Warn("failed to save fetched message",
					zap.String("email", email),
					zap.String("message_id", summary.ID),
					zap.Error(err),
				)
			}
		}
		if s.metrics != nil && len(summaries) > 0 {
			for range summaries {
				s.metrics.RecordMessageFetched()
			}
		}
	}

	messages, err := s.store.ListMessages(email)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cerr := s.cache.CacheMessageList(email, messages, messageListCacheTTL); cerr != nil {
			s.log.Warn("failed to cache message list", zap.Error(cerr))
		}
	}
	return messages, nil
}

// Get 获取单封邮件的完整内容，读取即标记为已读。
// 本地副本缺少正文时会从上游补齐返回内容。
func (s *MessageService) Get(ctx context.Context, email, messageID string) (*domain.Message, error) {
	account, err := s.store.GetAccount(email)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, err := s.cache.GetCachedMessage(email, messageID); err == nil {
			return cached, nil
		}
	}

	fromProvider := account.DomainType == string(domain.DomainKindProvider)

	message, err := s.store.GetMessage(email, messageID)
	switch {
	case err == nil:
		if message.HTMLBody == "" && message.TextBody == "" && fromProvider {
			detail, derr := s.provider.GetMessage(ctx, account.Token, messageID)
			if derr != nil {
				return nil, fmt.Errorf("failed to fetch message content: %w", derr)
			}
			message.HTMLBody = strings.Join(detail.HTML, "\n")
			message.TextBody = detail.Text
		}
	case errors.Is(err, storage.ErrMessageNotFound) && fromProvider:
		detail, derr := s.provider.GetMessage(ctx, account.Token, messageID)
		if derr != nil {
			var apiErr *mailtm.APIError
			if errors.As(derr, &apiErr) && apiErr.StatusCode == 404 {
				return nil, storage.ErrMessageNotFound
			}
			return nil, fmt.Errorf("failed to fetch message content: %w", derr)
		}

		fetched := detailToMessage(email, detail)
		if serr := s.store.SaveMessage(&fetched); serr != nil {
			s.log.Warn("failed to save fetched message", zap.String("message_id", messageID), zap.Error(serr))
		}
		message = &fetched
	default:
		return nil, err
	}

	if !message.IsRead {
		if err := s.markRead(ctx, account, messageID); err != nil {
			s.log.Warn("failed to mark message read", zap.String("message_id", messageID), zap.Error(err))
		}
		message.IsRead = true
		if s.metrics != nil {
			s.metrics.RecordMessageRead()
		}
	}

	if s.cache != nil {
		if cerr := s.cache.CacheMessage(message, messageCacheTTL); cerr != nil {
			s.log.Warn("failed to cache message", zap.Error(cerr))
		}
	}
	return message, nil
}

// markRead 本地标记已读，上游账户同时同步已读状态。
func (s *MessageService) markRead(ctx context.Context, account *domain.Account, messageID string) error {
	if err := s.store.MarkMessageRead(account.Email, messageID); err != nil {
		return err
	}

	if account.DomainType == string(domain.DomainKindProvider) {
		if err := s.provider.MarkSeen(ctx, account.Token, messageID); err != nil {
			// 上游同步失败不影响本地状态
			s.log.Warn("failed to sync read state upstream",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Delete 删除单封邮件，上游账户一并删除上游副本。
func (s *MessageService) Delete(ctx context.Context, email, messageID string) error {
	account, err := s.store.GetAccount(email)
	if err != nil {
		return err
	}

	if account.DomainType == string(domain.DomainKindProvider) {
		if err := s.provider.DeleteMessage(ctx, account.Token, messageID); err != nil {
			var apiErr *mailtm.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
				return fmt.Errorf("failed to delete upstream message: %w", err)
			}
		}
	}

	if err := s.store.DeleteMessage(email, messageID); err != nil && !errors.Is(err, storage.ErrMessageNotFound) {
		return err
	}

	if s.cache != nil {
		if cerr := s.cache.DeleteCachedMessage(email, messageID); cerr != nil {
			s.log.Warn("failed to drop cached message", zap.Error(cerr))
		}
		if cerr := s.cache.DeleteCachedMessageList(email); cerr != nil {
			s.log.Warn("failed to drop cached message list", zap.Error(cerr))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordMessageDeleted()
	}
	return nil
}

// summaryToMessage 将上游列表条目转换为本地邮件记录。
func summaryToMessage(ownerEmail string, summary mailtm.MessageSummary) domain.Message {
	recipient := ownerEmail
	if len(summary.To) > 0 && summary.To[0].Address != "" {
		recipient = summary.To[0].Address
	}

	return domain.Message{
		MessageID:  summary.ID,
		OwnerEmail: ownerEmail,
		Sender:     summary.From.Address,
		Recipient:  recipient,
		Subject:    summary.Subject,
		Intro:      summary.Intro,
		IsRead:     summary.Seen,
		CreatedAt:  summary.CreatedAt,
	}
}

// detailToMessage 将上游完整邮件转换为本地邮件记录。
func detailToMessage(ownerEmail string, detail *mailtm.MessageDetail) domain.Message {
	message := summaryToMessage(ownerEmail, mailtm.MessageSummary{
		ID:        detail.ID,
		From:      detail.From,
		To:        detail.To,
		Subject:   detail.Subject,
		Intro:     detail.Intro,
		Seen:      detail.Seen,
		CreatedAt: detail.CreatedAt,
	})
	message.HTMLBody = strings.Join(detail.HTML, "\n")
	message.TextBody = detail.Text
	return message
}
