package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TraceIDKey is the gin context key holding the request trace id
const TraceIDKey = "trace_id"

// TraceHeader is echoed on every response
const TraceHeader = "X-Request-Id"

// Response represents the standard API response structure
type Response struct {
	OK      bool       `json:"ok"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	TraceID string     `json:"trace_id,omitempty"`
}

// ErrorBody is the error half of the envelope
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK sends a 200 success response
func OK(c *gin.Context, data any) {
	Status(c, http.StatusOK, data)
}

// Created sends a 201 success response
func Created(c *gin.Context, data any) {
	Status(c, http.StatusCreated, data)
}

// Status sends a success response with an explicit HTTP status
func Status(c *gin.Context, httpStatus int, data any) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(httpStatus, Response{
		OK:      true,
		Data:    data,
		TraceID: c.GetString(TraceIDKey),
	})
}

// Fail sends an error response with specified HTTP status, business code, and message
func Fail(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, Response{
		OK:      false,
		Error:   &ErrorBody{Code: code, Message: message},
		TraceID: c.GetString(TraceIDKey),
	})
}

// FailErr sends an error response from an AppError.
// AppError.Err is logged but never returned to the client.
func FailErr(c *gin.Context, err *AppError) {
	if err.Err != nil {
		logrus.WithFields(logrus.Fields{
			"code":     err.Code,
			"trace_id": c.GetString(TraceIDKey),
			"path":     c.FullPath(),
		}).WithError(err.Err).Error(err.Message)
	}

	Fail(c, err.HTTPStatus, err.Code, err.Message)
}

// ListData represents the standard list response data structure
type ListData struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// OKItems sends a successful list response with pagination
func OKItems(c *gin.Context, items any, total int64, page, size int) {
	OK(c, ListData{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
	})
}
