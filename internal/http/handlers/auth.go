package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/rehearsalhub/internal/account"
	"github.com/geocoder89/rehearsalhub/internal/actorctx"
	"github.com/geocoder89/rehearsalhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (account.Session, error)
	Login(ctx context.Context, in account.LoginInput) (account.Session, error)
	Refresh(ctx context.Context, token string) (account.Session, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, in account.ResetPasswordInput) error
	VerifyEmail(ctx context.Context, token string) error
	Me(ctx context.Context, userID string) (user.User, error)
}

type AuthHandler struct {
	accounts AccountService
	log      *slog.Logger
	timeout  time.Duration
}

func NewAuthHandler(accounts AccountService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuthHandler{
		accounts: accounts,
		log:      log,
		timeout:  3 * time.Second,
	}
}

type RegisterRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,password"`
	FirstName string  `json:"firstName" binding:"required,notblank"`
	LastName  string  `json:"lastName" binding:"required,notblank"`
	Phone     *string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Token string `json:"token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,password"`
}

type SessionResponse struct {
	Message string      `json:"message"`
	User    user.Public `json:"user"`
	Token   string      `json:"token"`
}

// requestContext bounds store and hashing work for one request. It derives
// from the request context so cancellation and trace spans carry through.
func (h *AuthHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), h.timeout)
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	sess, err := h.accounts.Register(cctx, account.RegisterInput{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		h.respondAccountError(ctx, "registration", err)
		return
	}

	ctx.JSON(http.StatusCreated, SessionResponse{
		Message: "User registered successfully",
		User:    sess.User,
		Token:   sess.Token,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	sess, err := h.accounts.Login(cctx, account.LoginInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		h.respondAccountError(ctx, "login", err)
		return
	}

	ctx.JSON(http.StatusOK, SessionResponse{
		Message: "Login successful",
		User:    sess.User,
		Token:   sess.Token,
	})
}

// RefreshToken tolerates an empty or malformed body: a missing token is a
// 400 "Token is required" rather than a validation failure.
func (h *AuthHandler) RefreshToken(ctx *gin.Context) {
	var req RefreshRequest
	// malformed JSON leaves Token empty and is reported as a missing token
	_ = ctx.ShouldBindJSON(&req)

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	sess, err := h.accounts.Refresh(cctx, req.Token)
	if err != nil {
		if errors.Is(err, account.ErrUnauthorized) {
			RespondUnauthorized(ctx, "Invalid token")
			return
		}
		h.respondAccountError(ctx, "token refresh", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Token refreshed",
		"token":   sess.Token,
	})
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.accounts.ForgotPassword(cctx, strings.TrimSpace(req.Email))
	if err != nil {
		h.respondAccountError(ctx, "password reset request", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":    "Password reset email sent",
		"resetToken": token,
	})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	err := h.accounts.ResetPassword(cctx, account.ResetPasswordInput{
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		h.respondAccountError(ctx, "password reset", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (h *AuthHandler) VerifyEmail(ctx *gin.Context) {
	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.accounts.VerifyEmail(cctx, ctx.Param("token")); err != nil {
		h.respondAccountError(ctx, "email verification", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// Me requires the session middleware to have run.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "Missing or invalid access token")
		return
	}

	cctx, cancel := h.requestContext(ctx)
	defer cancel()

	u, err := h.accounts.Me(cctx, userID)
	if err != nil {
		h.respondAccountError(ctx, "profile lookup", err)
		return
	}

	respondVersioned(ctx, u.ID, u.UpdatedAt.UnixNano(), gin.H{"user": u})
}

// respondAccountError is the single mapping from workflow errors to HTTP.
func (h *AuthHandler) respondAccountError(ctx *gin.Context, op string, err error) {
	var verr *account.ValidationError

	switch {
	case errors.As(err, &verr):
		fields := make([]FieldError, 0, len(verr.Fields))
		for _, fe := range verr.Fields {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Tag(), fe.Param()),
			})
		}
		RespondValidation(ctx, fields)
	case errors.Is(err, account.ErrConflict):
		RespondBadRequest(ctx, "email_taken", "User already exists with this email")
	case errors.Is(err, account.ErrInvalidCredentials):
		RespondBadRequest(ctx, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, account.ErrTokenRequired):
		RespondBadRequest(ctx, "token_required", "Token is required")
	case errors.Is(err, account.ErrInvalidPurpose):
		RespondBadRequest(ctx, "invalid_purpose", "Invalid token purpose")
	case errors.Is(err, account.ErrUnauthorized):
		RespondUnauthorized(ctx, "Invalid or expired token")
	case errors.Is(err, account.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "auth_request_failed",
			"op", op,
			"request_id", requestIDFrom(ctx),
			"err", err,
		)
		RespondInternal(ctx, "Server error during "+op, err)
	}
}
