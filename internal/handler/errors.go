package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/postboard/backend/internal/model"
	"github.com/postboard/backend/internal/service"
)

// writeError - 서비스 에러를 HTTP 상태코드로 변환.
// 인증 실패 사유(존재하지 않는 계정/비밀번호 불일치/만료 등)는 응답에서 구분하지 않는다.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid input",
			Field:   verr.Field,
			Message: verr.Message,
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid input"})
	case errors.Is(err, service.ErrConflict):
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "already exists"})
	case errors.Is(err, service.ErrAccountDisabled):
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "account is deactivated"})
	case errors.Is(err, service.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{Error: "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrUnavailable):
		slog.Warn("dependency unavailable", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "service unavailable"})
	default:
		slog.Error("unhandled error", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "server error"})
	}
}

// writeBindError - gin binding(validator) 에러를 첫 번째 필드 기준으로 응답
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "invalid input",
			Field:   jsonFieldName(fe.Field()),
			Message: bindMessage(fe),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request"})
}

func bindMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

// jsonFieldName - 구조체 필드명(Email)을 JSON 키(email)로 변환
func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
