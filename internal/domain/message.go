package domain

import "time"

// Message 表示从上游提供商抓取并落库的一封邮件。
//
// (MessageID, OwnerEmail) 在存储层保证唯一；重复保存同一封邮件
// 只会合并已读状态，不会覆盖正文等其他字段。
type Message struct {
	MessageID  string    `json:"id" gorm:"type:varchar(100);uniqueIndex:idx_owner_message;not null"`
	OwnerEmail string    `json:"-" gorm:"type:varchar(255);uniqueIndex:idx_owner_message;index;not null"`
	Sender     string    `json:"from" gorm:"type:varchar(255)"`
	Recipient  string    `json:"to" gorm:"type:varchar(255)"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	Intro      string    `json:"intro" gorm:"type:text"`
	HTMLBody   string    `json:"html,omitempty" gorm:"type:text"`
	TextBody   string    `json:"text,omitempty" gorm:"type:text"`
	IsRead     bool      `json:"isRead" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"createdAt"`
}
