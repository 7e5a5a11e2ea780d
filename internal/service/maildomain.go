package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
	"mailproxy/backend/internal/storage/redis"
)

var (
	ErrNoDomainsAvailable = errors.New("no domains available")
	ErrDomainUnavailable  = errors.New("domain not found or inactive")
	ErrDomainReadOnly     = errors.New("provider domains cannot be modified")
	ErrDomainInvalid      = errors.New("domain invalid")
)

const domainListCacheTTL = 5 * time.Minute

// DomainOption 可供生成邮箱的域名条目。
type DomainOption struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"type"`
}

// DomainService 封装域名相关业务操作。
type DomainService struct {
	repo     storage.DomainRepository
	provider Provider
	cache    *redis.Cache
	log      *zap.Logger
}

// NewDomainService 创建域名业务服务。
func NewDomainService(repo storage.DomainRepository, provider Provider, cache *redis.Cache, log *zap.Logger) *DomainService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DomainService{
		repo:     repo,
		provider: provider,
		cache:    cache,
		log:      log,
	}
}

// SeedPopular 初始化常见域名条目，已存在时跳过。
func (s *DomainService) SeedPopular() error {
	seeded := 0
	for _, md := range domain.PopularDomains() {
		entry := md
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if err := s.repo.SaveDomain(&entry); err != nil {
			if errors.Is(err, storage.ErrDomainExists) {
				continue
			}
			return fmt.Errorf("failed to seed domain %s: %w", entry.Domain, err)
		}
		seeded++
	}
	if seeded > 0 {
		s.log.Info("seeded popular domains", zap.Int("count", seeded))
	}
	return nil
}

// List 返回全部可用域名：上游域名 + 本地启用的常见/自定义域名。
func (s *DomainService) List(ctx context.Context) ([]DomainOption, error) {
	options := make([]DomainOption, 0)

	for _, d := range s.providerDomains(ctx) {
		options = append(options, DomainOption{
			ID:          fmt.Sprintf("%s_%s", domain.DomainKindProvider, d.ID),
			Domain:      d.Domain,
			DisplayName: fmt.Sprintf("Mail.tm (%s)", d.Domain),
			Kind:        string(domain.DomainKindProvider),
		})
	}

	stored, err := s.repo.ListDomains()
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	for _, md := range stored {
		if !md.IsActive {
			continue
		}
		options = append(options, DomainOption{
			ID:          fmt.Sprintf("%s_%s", md.Kind, md.ID),
			Domain:      md.Domain,
			DisplayName: md.DisplayName,
			Kind:        string(md.Kind),
		})
	}

	return options, nil
}

// providerDomains 获取上游域名，短暂缓存，失败时降级为空列表。
func (s *DomainService) providerDomains(ctx context.Context) []domain.MailDomain {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedDomainList(); err == nil {
			return cached
		}
	}

	upstream, err := s.provider.ListDomains(ctx)
	if err != nil {
		s.log.Warn("failed to fetch provider domains", zap.Error(err))
		return nil
	}

	domains := make([]domain.MailDomain, 0, len(upstream))
	for _, d := range upstream {
		if !d.IsActive {
			continue
		}
		domains = append(domains, domain.MailDomain{
			ID:       d.ID,
			Domain:   d.Domain,
			Kind:     domain.DomainKindProvider,
			IsActive: true,
		})
	}

	if s.cache != nil {
		if err := s.cache.CacheDomainList(domains, domainListCacheTTL); err != nil {
			s.log.Warn("failed to cache domain list", zap.Error(err))
		}
	}
	return domains
}

// ForGeneration 解析生成邮箱时使用的域名。domainID 为空时取第一个上游域名。
func (s *DomainService) ForGeneration(ctx context.Context, domainID string) (string, domain.DomainKind, error) {
	if domainID == "" {
		domains := s.providerDomains(ctx)
		if len(domains) == 0 {
			return "", "", ErrNoDomainsAvailable
		}
		return domains[0].Domain, domain.DomainKindProvider, nil
	}

	providerPrefix := string(domain.DomainKindProvider) + "_"
	if strings.HasPrefix(domainID, providerPrefix) {
		upstreamID := strings.TrimPrefix(domainID, providerPrefix)
		for _, d := range s.providerDomains(ctx) {
			if d.ID == upstreamID {
				return d.Domain, domain.DomainKindProvider, nil
			}
		}
		return "", "", ErrDomainUnavailable
	}

	var kind domain.DomainKind
	var rawID string
	switch {
	case strings.HasPrefix(domainID, string(domain.DomainKindPopular)+"_"):
		kind = domain.DomainKindPopular
		rawID = strings.TrimPrefix(domainID, string(domain.DomainKindPopular)+"_")
	case strings.HasPrefix(domainID, string(domain.DomainKindCustom)+"_"):
		kind = domain.DomainKindCustom
		rawID = strings.TrimPrefix(domainID, string(domain.DomainKindCustom)+"_")
	default:
		return "", "", ErrDomainUnavailable
	}

	md, err := s.repo.GetDomainByID(rawID)
	if err != nil {
		if errors.Is(err, storage.ErrDomainNotFound) {
			return "", "", ErrDomainUnavailable
		}
		return "", "", err
	}
	if !md.IsActive {
		return "", "", ErrDomainUnavailable
	}
	return md.Domain, kind, nil
}

// AddCustomDomain 新增自定义域名。
func (s *DomainService) AddCustomDomain(name, displayName string) (*domain.MailDomain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || !strings.Contains(name, ".") {
		return nil, ErrDomainInvalid
	}
	if displayName == "" {
		displayName = name
	}

	md := &domain.MailDomain{
		ID:          uuid.NewString(),
		Domain:      name,
		DisplayName: displayName,
		Kind:        domain.DomainKindCustom,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.SaveDomain(md); err != nil {
		return nil, err
	}

	s.log.Info("custom domain added", zap.String("domain", name))
	return md, nil
}

// SetDomainStatus 启用或停用本地域名。上游域名不可修改。
func (s *DomainService) SetDomainStatus(domainID string, active bool) error {
	if strings.HasPrefix(domainID, string(domain.DomainKindProvider)+"_") {
		return ErrDomainReadOnly
	}

	rawID := domainID
	for _, kind := range []domain.DomainKind{domain.DomainKindPopular, domain.DomainKindCustom} {
		prefix := string(kind) + "_"
		if strings.HasPrefix(domainID, prefix) {
			rawID = strings.TrimPrefix(domainID, prefix)
			break
		}
	}

	if err := s.repo.SetDomainActive(rawID, active); err != nil {
		if errors.Is(err, storage.ErrDomainNotFound) {
			return ErrDomainUnavailable
		}
		return err
	}

	s.log.Info("domain status updated", zap.String("id", rawID), zap.Bool("active", active))
	return nil
}
