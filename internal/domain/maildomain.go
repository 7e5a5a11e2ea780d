package domain

import "time"

// DomainKind 域名来源类型。
type DomainKind string

const (
	// DomainKindProvider 上游提供商（Mail.tm）托管的域名，可以真实收信
	DomainKindProvider DomainKind = "mail_tm"
	// DomainKindPopular 常见邮件服务商域名，仅生成地址不收信
	DomainKindPopular DomainKind = "popular"
	// DomainKindCustom 用户添加的自定义域名
	DomainKindCustom DomainKind = "custom"
)

// MailDomain 表示可用于生成邮箱地址的域名条目。
//
// 提供商域名由 Mail.tm 实时返回，不落库；本地只存 popular 和 custom 两类。
type MailDomain struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Domain      string     `json:"domain" gorm:"type:varchar(100);uniqueIndex"`
	DisplayName string     `json:"displayName" gorm:"type:varchar(100)"`
	Kind        DomainKind `json:"kind" gorm:"type:varchar(20);index"`
	IsActive    bool       `json:"-" gorm:"default:true"`
	CreatedAt   time.Time  `json:"-"`
}

// PopularDomains 内置的常见邮件服务商域名，启动时自动入库。
func PopularDomains() []MailDomain {
	entries := []struct {
		domain  string
		display string
	}{
		{"gmail.com", "Gmail"},
		{"hotmail.com", "Hotmail"},
		{"outlook.com", "Outlook"},
		{"yahoo.com", "Yahoo"},
		{"aol.com", "AOL"},
		{"protonmail.com", "ProtonMail"},
		{"icloud.com", "iCloud"},
		{"mail.com", "Mail.com"},
	}

	out := make([]MailDomain, 0, len(entries))
	for _, e := range entries {
		out = append(out, MailDomain{
			Domain:      e.domain,
			DisplayName: e.display,
			Kind:        DomainKindPopular,
			IsActive:    true,
		})
	}
	return out
}
