package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/service"
	"mailproxy/backend/internal/storage"
)

type generateEmailRequest struct {
	Username string `json:"username"`
	Domain   string `json:"domain"` // 域名选项ID，为空时使用默认域名
}

type accountResponse struct {
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	DomainType string    `json:"domainType"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// generateEmail 生成一个新的临时邮箱地址。
func (h *Handler) generateEmail(c *gin.Context) {
	var req generateEmailRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	account, err := h.accounts.Generate(c.Request.Context(), service.GenerateInput{
		Username: req.Username,
		DomainID: req.Domain,
	})
	if err != nil {
		var apiErr *mailtm.APIError
		switch {
		case errors.Is(err, service.ErrUsernameInvalid),
			errors.Is(err, service.ErrNoDomainsAvailable),
			errors.Is(err, service.ErrDomainUnavailable),
			errors.Is(err, service.ErrDomainInvalid):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, storage.ErrAccountExists):
			Conflict(c, GetErrorMessage(err))
		case errors.As(err, &apiErr):
			BadGateway(c, MsgProviderUnavailable)
		default:
			InternalError(c, MsgAccountCreateFailed)
		}
		return
	}

	Created(c, h.toAccountResponse(account))
}

// deleteAccount 删除临时邮箱及其全部邮件。
func (h *Handler) deleteAccount(c *gin.Context) {
	address := c.Param("address")

	if err := h.accounts.Delete(c.Request.Context(), address); err != nil {
		var apiErr *mailtm.APIError
		switch {
		case errors.Is(err, storage.ErrAccountNotFound):
			NotFound(c, MsgAccountNotFound)
		case errors.As(err, &apiErr):
			BadGateway(c, MsgProviderUnavailable)
		default:
			InternalError(c, MsgAccountDeleteFailed)
		}
		return
	}

	NoContent(c)
}

// toAccountResponse 转换账户实体为响应体。
func (h *Handler) toAccountResponse(account *domain.Account) accountResponse {
	ttl := h.accountTTL
	if ttl <= 0 {
		ttl = domain.DefaultAccountTTL
	}
	return accountResponse{
		Email:      account.Email,
		Password:   account.Password,
		DomainType: account.DomainType,
		CreatedAt:  account.CreatedAt,
		ExpiresAt:  account.CreatedAt.Add(ttl),
	}
}
