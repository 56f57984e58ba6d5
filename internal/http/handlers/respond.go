package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	RequestID string       `json:"requestId,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func respond(ctx *gin.Context, status int, body APIError) {
	body.RequestID = requestIDFrom(ctx)
	ctx.JSON(status, body)
}

func RespondError(ctx *gin.Context, status int, code, message string) {
	respond(ctx, status, APIError{Code: code, Message: message})
}

func RespondBadRequest(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusBadRequest, code, message)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, "invalid_token", message)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message)
}

func RespondValidation(ctx *gin.Context, fields []FieldError) {
	respond(ctx, http.StatusBadRequest, APIError{
		Code:    "validation_failed",
		Message: "Validation failed",
		Errors:  fields,
	})
}

// RespondInternal includes the underlying error text in the body.
func RespondInternal(ctx *gin.Context, message string, err error) {
	body := APIError{Code: "internal_error", Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	respond(ctx, http.StatusInternalServerError, body)
}
