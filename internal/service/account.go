package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/monitoring"
	"mailproxy/backend/internal/storage"
	"mailproxy/backend/internal/storage/redis"
)

var (
	ErrUsernameInvalid = errors.New("username invalid")
)

const (
	usernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	usernameLength   = 10
	passwordLength   = 12

	accountCacheTTL = time.Minute
)

// AccountService 封装临时邮箱账户的业务操作。
type AccountService struct {
	store    storage.Store
	provider Provider
	domains  *DomainService
	cache    *redis.Cache
	ttl      time.Duration
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewAccountService 创建账户业务服务。ttl 为账户存活时间，传 0 使用默认值。
func NewAccountService(store storage.Store, provider Provider, domains *DomainService, cache *redis.Cache, ttl time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		store:    store,
		provider: provider,
		domains:  domains,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		log:      log,
	}
}

// GenerateInput 定义生成临时邮箱所需的输入。
type GenerateInput struct {
	Username string
	DomainID string
}

// Generate 生成新的临时邮箱账户。
func (s *AccountService) Generate(ctx context.Context, input GenerateInput) (*domain.Account, error) {
	domainName, kind, err := s.domains.ForGeneration(ctx, input.DomainID)
	if err != nil {
		return nil, err
	}

	username, err := resolveUsername(input.Username)
	if err != nil {
		return nil, err
	}

	email := fmt.Sprintf("%s@%s", username, domainName)
	password := randomString(passwordLength)

	account := &domain.Account{
		Email:      email,
		Password:   password,
		DomainType: string(kind),
		Status:     domain.StatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	if kind == domain.DomainKindProvider {
		info, err := s.provider.CreateAccount(ctx, email, password)
		if err != nil {
			return nil, fmt.Errorf("failed to create upstream account: %w", err)
		}

		token, err := s.provider.GetToken(ctx, email, password)
		if err != nil {
			return nil, fmt.Errorf("failed to authenticate upstream account: %w", err)
		}

		account.ProviderID = info.ID
		account.Token = token
	} else {
		// 常见/自定义域名没有真实上游账户，仅占位
		account.ProviderID = uuid.NewString()
		account.Token = uuid.NewString()
	}

	if err := s.store.AddAccount(account); err != nil {
		if errors.Is(err, storage.ErrAccountExists) && kind == domain.DomainKindProvider {
			// 本地冲突时回收刚创建的上游账户
			if derr := s.provider.DeleteAccount(ctx, account.Token, account.ProviderID); derr != nil {
				s.log.Warn("failed to roll back upstream account", zap.String("email", email), zap.Error(derr))
			}
		}
		return nil, err
	}

	if s.cache != nil {
		if cerr := s.cache.CacheAccount(account, accountCacheTTL); cerr != nil {
			s.log.Warn("failed to cache account", zap.Error(cerr))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordAccountCreated()
	}

	s.log.Info("generated temporary email",
		zap.String("email", email),
		zap.String("domain_type", string(kind)),
	)
	return account, nil
}

// Get 获取活跃账户。
func (s *AccountService) Get(email string) (*domain.Account, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedAccount(email); err == nil {
			if s.fresh(cached, time.Now().UTC()) {
				return cached, nil
			}
		}
	}

	account, err := s.store.GetAccount(email)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cerr := s.cache.CacheAccount(account, accountCacheTTL); cerr != nil {
			s.log.Warn("failed to cache account", zap.Error(cerr))
		}
	}
	return account, nil
}

// fresh 判断缓存命中的账户是否仍可直接返回，存活时间按服务配置计算。
func (s *AccountService) fresh(account *domain.Account, now time.Time) bool {
	return account.IsActive() && !account.ExpiredAt(now, s.ttl)
}

// Delete 删除账户及其全部邮件。上游账户一并回收。
func (s *AccountService) Delete(ctx context.Context, email string) error {
	account, err := s.store.GetAccount(email)
	if err != nil {
		return err
	}

	if account.DomainType == string(domain.DomainKindProvider) {
		if err := s.provider.DeleteAccount(ctx, account.Token, account.ProviderID); err != nil {
			// 上游已不存在时继续本地删除
			var apiErr *mailtm.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
				return fmt.Errorf("failed to delete upstream account: %w", err)
			}
		}
	}

	removed, err := s.store.RemoveAccount(email)
	if err != nil {
		return err
	}

	if s.cache != nil {
		if cerr := s.cache.InvalidateOwner(email); cerr != nil {
			s.log.Warn("failed to invalidate account cache", zap.Error(cerr))
		}
	}
	if removed && s.metrics != nil {
		s.metrics.RecordAccountDeleted()
	}

	s.log.Info("deleted temporary email", zap.String("email", email))
	return nil
}

// Cleanup 标记所有超过 TTL 的账户为过期，返回数量。
func (s *AccountService) Cleanup() (int, error) {
	count, err := s.store.CleanupExpired()
	if err != nil {
		return 0, err
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.RecordAccountsExpired(count)
		}
		s.log.Info("expired stale accounts", zap.Int("count", count))
	}
	return count, nil
}

// resolveUsername 生成或校验邮箱用户名。
func resolveUsername(username string) (string, error) {
	if username == "" {
		return randomString(usernameLength), nil
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if len(username) < 1 || len(username) > 64 {
		return "", ErrUsernameInvalid
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return "", ErrUsernameInvalid
		}
	}
	if strings.HasPrefix(username, ".") || strings.HasSuffix(username, ".") {
		return "", ErrUsernameInvalid
	}
	return username, nil
}

// randomString 生成小写字母加数字的随机串。
func randomString(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = usernameAlphabet[rand.Intn(len(usernameAlphabet))]
	}
	return string(b)
}
