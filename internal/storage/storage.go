package storage

import (
	"errors"

	"mailproxy/backend/internal/domain"
)

var (
	// ErrAccountNotFound 账户不存在、已过期或已删除
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists 同一邮箱地址已存在活跃账户
	ErrAccountExists = errors.New("account already exists")
	// ErrMessageNotFound 邮件不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrDomainNotFound 域名条目不存在
	ErrDomainNotFound = errors.New("domain not found")
	// ErrDomainExists 域名条目已存在
	ErrDomainExists = errors.New("domain already exists")
)

// AccountRepository 定义临时邮箱账户的存取操作。
//
// 读取只返回活跃且未过期的账户；过期账户在读取时被顺手标记为过期
// （惰性过期），同时提供 CleanupExpired 做周期性全量清扫。
type AccountRepository interface {
	// AddAccount 写入新的活跃账户。同邮箱已有活跃记录时返回 ErrAccountExists。
	// 每次写入会顺带触发一次过期清扫。
	AddAccount(account *domain.Account) error
	// GetAccount 返回活跃且未过期的账户。读到过期账户时将其标记为过期并返回
	// ErrAccountNotFound；重复调用结果一致。
	GetAccount(email string) (*domain.Account, error)
	// RemoveAccount 软删除账户并级联删除其全部邮件，返回是否存在可删除的记录。
	RemoveAccount(email string) (bool, error)
	// CleanupExpired 将所有超过存活时间的活跃账户标记为过期，返回处理数量。
	// 幂等，可在每次写入时调用。
	CleanupExpired() (int, error)
}

// MessageRepository 定义邮件的存取操作。
//
// 所有操作都以属主邮箱地址为入口；属主不是活跃账户时邮件不可见。
type MessageRepository interface {
	// SaveMessage 保存邮件。属主无活跃账户时返回 ErrAccountNotFound；
	// 同 (MessageID, OwnerEmail) 已存在时仅合并已读状态，不覆盖其余字段。
	SaveMessage(message *domain.Message) error
	// GetMessage 获取单封邮件。
	GetMessage(ownerEmail, messageID string) (*domain.Message, error)
	// ListMessages 按创建时间倒序返回属主的全部邮件。属主不存在时返回空列表。
	ListMessages(ownerEmail string) ([]domain.Message, error)
	// MarkMessageRead 将邮件标记为已读。
	MarkMessageRead(ownerEmail, messageID string) error
	// DeleteMessage 删除单封邮件。
	DeleteMessage(ownerEmail, messageID string) error
	// DeleteMessagesByOwner 删除属主的全部邮件，返回删除数量。
	DeleteMessagesByOwner(ownerEmail string) (int, error)
}

// DomainRepository 定义本地域名条目（popular / custom）的存取操作。
type DomainRepository interface {
	SaveDomain(md *domain.MailDomain) error
	GetDomainByID(id string) (*domain.MailDomain, error)
	ListDomains() ([]domain.MailDomain, error)
	SetDomainActive(id string, active bool) error
}

// Store 聚合完整的存储接口。
type Store interface {
	AccountRepository
	MessageRepository
	DomainRepository

	Close() error
	Health() error
}
