package memory

import (
	"sort"
	"sync"
	"time"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
)

// Store 使用内存保存账户与邮件数据，主要用于开发验证。
//
// 每个邮箱地址只保留最新一条记录；写入覆盖非活跃的旧记录，
// 因此"同一地址至多一个活跃账户"的约束天然成立。
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account            // email -> account
	messages map[string]map[string]*domain.Message // ownerEmail -> messageID -> message
	domains  map[string]*domain.MailDomain         // domainID -> entry
	byDomain map[string]string                     // domain -> domainID

	ttl time.Duration
}

// NewStore 创建一个内存存储实例。ttl <= 0 时使用默认的 24 小时。
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = domain.DefaultAccountTTL
	}
	return &Store{
		accounts: make(map[string]*domain.Account),
		messages: make(map[string]map[string]*domain.Message),
		domains:  make(map[string]*domain.MailDomain),
		byDomain: make(map[string]string),
		ttl:      ttl,
	}
}

// AddAccount 写入新的活跃账户。
func (s *Store) AddAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked(time.Now())

	if existing, ok := s.accounts[account.Email]; ok && existing.Status == domain.StatusActive {
		return storage.ErrAccountExists
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Status == "" {
		account.Status = domain.StatusActive
	}

	// 覆盖同地址的非活跃旧记录，其遗留邮件一并丢弃
	delete(s.messages, account.Email)
	s.accounts[account.Email] = account
	return nil
}

// GetAccount 返回活跃且未过期的账户。
func (s *Store) GetAccount(email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[email]
	if !ok || account.Status != domain.StatusActive {
		return nil, storage.ErrAccountNotFound
	}

	if account.ExpiredAt(time.Now(), s.ttl) {
		account.Status = domain.StatusExpired
		return nil, storage.ErrAccountNotFound
	}

	copied := *account
	return &copied, nil
}

// RemoveAccount 软删除账户并级联删除其全部邮件。
func (s *Store) RemoveAccount(email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[email]
	if !ok || account.Status == domain.StatusDeleted {
		return false, nil
	}

	account.Status = domain.StatusDeleted
	delete(s.messages, email)
	return true, nil
}

// CleanupExpired 将所有超过存活时间的活跃账户标记为过期。
func (s *Store) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cleanupExpiredLocked(time.Now()), nil
}

func (s *Store) cleanupExpiredLocked(now time.Time) int {
	count := 0
	for _, account := range s.accounts {
		if account.Status == domain.StatusActive && account.ExpiredAt(now, s.ttl) {
			account.Status = domain.StatusExpired
			count++
		}
	}
	return count
}

// activeOwnerLocked 返回属主是否为活跃未过期账户。
func (s *Store) activeOwnerLocked(email string) bool {
	account, ok := s.accounts[email]
	if !ok || account.Status != domain.StatusActive {
		return false
	}
	if account.ExpiredAt(time.Now(), s.ttl) {
		account.Status = domain.StatusExpired
		return false
	}
	return true
}

// SaveMessage 保存邮件，重复保存仅合并已读状态。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeOwnerLocked(message.OwnerEmail) {
		return storage.ErrAccountNotFound
	}

	msgMap, ok := s.messages[message.OwnerEmail]
	if !ok {
		msgMap = make(map[string]*domain.Message)
		s.messages[message.OwnerEmail] = msgMap
	}

	if existing, ok := msgMap[message.MessageID]; ok {
		if existing.IsRead != message.IsRead {
			existing.IsRead = message.IsRead
		}
		return nil
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	copied := *message
	msgMap[message.MessageID] = &copied
	return nil
}

// GetMessage 获取单封邮件。
func (s *Store) GetMessage(ownerEmail, messageID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeOwnerLocked(ownerEmail) {
		return nil, storage.ErrMessageNotFound
	}

	msg, ok := s.messages[ownerEmail][messageID]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}

	copied := *msg
	return &copied, nil
}

// ListMessages 按创建时间倒序返回属主的全部邮件。
func (s *Store) ListMessages(ownerEmail string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Message, 0)
	if !s.activeOwnerLocked(ownerEmail) {
		return result, nil
	}

	for _, msg := range s.messages[ownerEmail] {
		result = append(result, *msg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(ownerEmail, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeOwnerLocked(ownerEmail) {
		return storage.ErrMessageNotFound
	}

	msg, ok := s.messages[ownerEmail][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}

	msg.IsRead = true
	return nil
}

// DeleteMessage 删除单封邮件。
func (s *Store) DeleteMessage(ownerEmail, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgMap, ok := s.messages[ownerEmail]
	if !ok {
		return storage.ErrMessageNotFound
	}
	if _, ok := msgMap[messageID]; !ok {
		return storage.ErrMessageNotFound
	}

	delete(msgMap, messageID)
	return nil
}

// DeleteMessagesByOwner 删除属主的全部邮件。
func (s *Store) DeleteMessagesByOwner(ownerEmail string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.messages[ownerEmail])
	delete(s.messages, ownerEmail)
	return count, nil
}

// SaveDomain 保存域名条目。
func (s *Store) SaveDomain(md *domain.MailDomain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byDomain[md.Domain]; ok && existingID != md.ID {
		return storage.ErrDomainExists
	}

	if md.CreatedAt.IsZero() {
		md.CreatedAt = time.Now().UTC()
	}
	copied := *md
	s.domains[md.ID] = &copied
	s.byDomain[md.Domain] = md.ID
	return nil
}

// GetDomainByID 根据 ID 获取域名条目。
func (s *Store) GetDomainByID(id string) (*domain.MailDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md, ok := s.domains[id]
	if !ok {
		return nil, storage.ErrDomainNotFound
	}
	copied := *md
	return &copied, nil
}

// ListDomains 返回全部域名条目。
func (s *Store) ListDomains() ([]domain.MailDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MailDomain, 0, len(s.domains))
	for _, md := range s.domains {
		result = append(result, *md)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Domain < result[j].Domain
	})
	return result, nil
}

// SetDomainActive 启用或禁用域名条目。
func (s *Store) SetDomainActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	md, ok := s.domains[id]
	if !ok {
		return storage.ErrDomainNotFound
	}
	md.IsActive = active
	return nil
}

// Close 关闭存储连接。内存存储无需处理。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。内存存储总是健康的。
func (s *Store) Health() error {
	return nil
}
