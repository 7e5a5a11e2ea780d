package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailproxy/backend/internal/service"
	"mailproxy/backend/internal/storage"
)

type addDomainRequest struct {
	Domain      string `json:"domain" binding:"required"`
	DisplayName string `json:"displayName"`
}

type setDomainStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

type domainListResponse struct {
	Items []service.DomainOption `json:"items"`
	Count int                    `json:"count"`
}

// listDomains 返回可用于生成邮箱的域名选项列表。
func (h *Handler) listDomains(c *gin.Context) {
	options, err := h.domains.List(c.Request.Context())
	if err != nil {
		InternalError(c, MsgDomainListFailed)
		return
	}

	Success(c, domainListResponse{
		Items: options,
		Count: len(options),
	})
}

// addDomain 添加自定义域名。
func (h *Handler) addDomain(c *gin.Context) {
	var req addDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	added, err := h.domains.AddCustomDomain(req.Domain, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDomainInvalid):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, storage.ErrDomainExists):
			Conflict(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgDomainCreateFailed)
		}
		return
	}

	Created(c, added)
}

// setDomainStatus 启用或禁用一个域名。
func (h *Handler) setDomainStatus(c *gin.Context) {
	var req setDomainStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	domainID := c.Param("id")
	if err := h.domains.SetDomainStatus(domainID, *req.IsActive); err != nil {
		switch {
		case errors.Is(err, service.ErrDomainReadOnly):
			Conflict(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrDomainUnavailable), errors.Is(err, storage.ErrDomainNotFound):
			NotFound(c, GetErrorMessage(err))
		default:
			InternalError(c, MsgDomainUpdateFailed)
		}
		return
	}

	NoContent(c)
}
