package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/storage"
)

type messageListResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

// listMessages 拉取上游最新邮件并返回邮箱内的邮件列表。
func (h *Handler) listMessages(c *gin.Context) {
	address := c.Param("address")

	messages, err := h.messages.Refresh(c.Request.Context(), address)
	if err != nil {
		var apiErr *mailtm.APIError
		switch {
		case errors.Is(err, storage.ErrAccountNotFound):
			NotFound(c, MsgAccountNotFound)
		case errors.As(err, &apiErr):
			BadGateway(c, MsgProviderUnavailable)
		default:
			InternalError(c, MsgMessageListFailed)
		}
		return
	}

	Success(c, messageListResponse{
		Items: messages,
		Count: len(messages),
	})
}

// getMessage 获取单封邮件内容并标记已读。
func (h *Handler) getMessage(c *gin.Context) {
	address := c.Param("address")
	messageID := c.Param("messageID")

	msg, err := h.messages.Get(c.Request.Context(), address, messageID)
	if err != nil {
		var apiErr *mailtm.APIError
		switch {
		case errors.Is(err, storage.ErrAccountNotFound):
			NotFound(c, MsgAccountNotFound)
		case errors.Is(err, storage.ErrMessageNotFound):
			NotFound(c, MsgMessageNotFound)
		case errors.As(err, &apiErr):
			BadGateway(c, MsgProviderUnavailable)
		default:
			InternalError(c, MsgInternalError)
		}
		return
	}

	Success(c, msg)
}

// deleteMessage 删除单封邮件。
func (h *Handler) deleteMessage(c *gin.Context) {
	address := c.Param("address")
	messageID := c.Param("messageID")

	if err := h.messages.Delete(c.Request.Context(), address, messageID); err != nil {
		var apiErr *mailtm.APIError
		switch {
		case errors.Is(err, storage.ErrAccountNotFound):
			NotFound(c, MsgAccountNotFound)
		case errors.Is(err, storage.ErrMessageNotFound):
			NotFound(c, MsgMessageNotFound)
		case errors.As(err, &apiErr):
			BadGateway(c, MsgProviderUnavailable)
		default:
			InternalError(c, MsgMessageDeleteFailed)
		}
		return
	}

	NoContent(c)
}
