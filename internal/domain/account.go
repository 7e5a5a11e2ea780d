package domain

import (
	"time"
)

// AccountStatus 表示临时邮箱账户的生命周期状态。
//
// 账户只有三种状态：活跃、已过期（超过 TTL 被动失效）、已删除（显式删除）。
// 过期与删除分开记录，便于排查清理任务的行为。
type AccountStatus string

const (
	// StatusActive 活跃账户，可正常查询
	StatusActive AccountStatus = "active"
	// StatusExpired 超过存活时间后被标记为过期
	StatusExpired AccountStatus = "expired"
	// StatusDeleted 被用户显式删除
	StatusDeleted AccountStatus = "deleted"
)

// DefaultAccountTTL 账户默认存活时间，超过后账户对所有查询不可见。
const DefaultAccountTTL = 24 * time.Hour

// Account 表示一个临时邮箱账户及其上游提供商凭据。
type Account struct {
	Email      string        `json:"email" gorm:"primaryKey;type:varchar(255)"`
	ProviderID string        `json:"providerId" gorm:"type:varchar(100)"` // 上游提供商的账户ID
	Token      string        `json:"token" gorm:"type:text"`              // 上游提供商的访问令牌
	Password   string        `json:"password" gorm:"type:varchar(100)"`
	DomainType string        `json:"domainType" gorm:"type:varchar(20);default:mail_tm"` // mail_tm / popular / custom
	Status     AccountStatus `json:"status" gorm:"type:varchar(10);default:active;index"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// IsActive 判断账户是否处于活跃状态。
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// ExpiredAt 在指定时间判断账户是否超过存活时间。
func (a *Account) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultAccountTTL
	}
	return now.Sub(a.CreatedAt) > ttl
}
