package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应格式。
type Response struct {
	Code int         `json:"code"`           // HTTP 状态码
	Msg  string      `json:"msg"`            // 提示信息
	Data interface{} `json:"data,omitempty"` // 业务数据
}

// Success 返回 200 成功响应。
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: http.StatusOK,
		Msg:  "成功",
		Data: data,
	})
}

// SuccessWithMsg 返回带自定义消息的成功响应。
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: http.StatusOK,
		Msg:  msg,
		Data: data,
	})
}

// Created 返回 201 创建成功响应。
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code: http.StatusCreated,
		Msg:  "创建成功",
		Data: data,
	})
}

// NoContent 返回 204 无内容响应。
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 返回 400 错误响应。
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Code: http.StatusBadRequest,
		Msg:  msg,
	})
}

// NotFound 返回 404 错误响应。
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{
		Code: http.StatusNotFound,
		Msg:  msg,
	})
}

// Conflict 返回 409 冲突响应。
func Conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, Response{
		Code: http.StatusConflict,
		Msg:  msg,
	})
}

// UnprocessableEntity 返回 422 错误响应。
func UnprocessableEntity(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, Response{
		Code: http.StatusUnprocessableEntity,
		Msg:  msg,
	})
}

// TooManyRequests 返回 429 限流响应。
func TooManyRequests(c *gin.Context, msg string) {
	c.JSON(http.StatusTooManyRequests, Response{
		Code: http.StatusTooManyRequests,
		Msg:  msg,
	})
}

// InternalError 返回 500 服务器错误响应。
func InternalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code: http.StatusInternalServerError,
		Msg:  msg,
	})
}

// BadGateway 返回 502 上游服务错误响应。
func BadGateway(c *gin.Context, msg string) {
	c.JSON(http.StatusBadGateway, Response{
		Code: http.StatusBadGateway,
		Msg:  msg,
	})
}

// Error 根据状态码返回通用错误响应。
func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, Response{
		Code: code,
		Msg:  msg,
	})
}
