package response

import (
	"errors"
	"net/http"
	"time"

	"civic-document-service/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key holding the request correlation ID.
const CtxRequestID = "request_id"

// SuccessResponse is the envelope of every 2xx body.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the envelope of every error body.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Page wraps one page of a staff listing.
type Page struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

// Paged sends items with the page counters derived from total.
func Paged(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Error maps err to its AppError status and code. Anything else is a 500 that
// never leaks the underlying message.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		failure(c, http.StatusInternalServerError, "SYS_000", "Internal server error")
		return
	}
	failure(c, appErr.HTTPStatus, appErr.Code, appErr.Message)
}

// BindError reports a request that could not be decoded. Bodies cut off by
// the size limit get 413, everything else is a validation error.
func BindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(c, apperror.ErrPayloadTooLarge())
		return
	}
	Error(c, apperror.Validation(err.Error()))
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{Data: data, RequestID: requestID(c), Timestamp: timestamp()})
}

func failure(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{ErrorCode: code, Message: message, RequestID: requestID(c), Timestamp: timestamp()})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID falls back to a fresh UUID outside the RequestID middleware.
func requestID(c *gin.Context) string {
	if s := c.GetString(CtxRequestID); s != "" {
		return s
	}
	return uuid.New().String()
}
