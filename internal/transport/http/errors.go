package httptransport

import (
	"errors"

	"mailproxy/backend/internal/service"
	"mailproxy/backend/internal/storage"
)

// errorMessages 业务错误到中文提示的映射。
var errorMessages = map[error]string{
	service.ErrUsernameInvalid:    "邮箱用户名格式无效",
	service.ErrNoDomainsAvailable: "暂无可用域名",
	service.ErrDomainUnavailable:  "域名不可用",
	service.ErrDomainReadOnly:     "该域名由上游提供，不支持修改",
	service.ErrDomainInvalid:      "域名格式无效",
	storage.ErrAccountNotFound:    "邮箱地址不存在",
	storage.ErrAccountExists:      "邮箱地址已存在",
	storage.ErrMessageNotFound:    "邮件不存在",
	storage.ErrDomainNotFound:     "域名不存在",
	storage.ErrDomainExists:       "域名已存在",
}

// GetErrorMessage 返回业务错误对应的中文提示，未知错误返回原始信息。
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

// 通用提示信息常量
const (
	// ========== 通用 ==========
	MsgInvalidRequest = "请求参数无效"
	MsgInternalError  = "服务器内部错误"
	MsgRateLimited    = "请求过于频繁，请稍后再试"

	// ========== 邮箱账户 ==========
	MsgAccountCreateFailed = "生成临时邮箱失败"
	MsgAccountNotFound     = "邮箱地址不存在"
	MsgAccountDeleteFailed = "删除邮箱失败"

	// ========== 邮件 ==========
	MsgMessageListFailed   = "获取邮件列表失败"
	MsgMessageNotFound     = "邮件不存在"
	MsgMessageDeleteFailed = "删除邮件失败"

	// ========== 域名 ==========
	MsgDomainListFailed   = "获取域名列表失败"
	MsgDomainCreateFailed = "添加域名失败"
	MsgDomainUpdateFailed = "更新域名状态失败"

	// ========== 上游服务 ==========
	MsgProviderUnavailable = "上游邮件服务暂时不可用"
)
