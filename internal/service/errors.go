package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrUnavailable   = errors.New("service unavailable")
	ErrMisconfigured = errors.New("auth config invalid")
)

// 아래 에러들은 모두 ErrUnauthorized 로 매핑된다
var (
	ErrAccountDisabled  = fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	ErrTokenExpired     = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrInvalidSignature = fmt.Errorf("%w: invalid token", ErrUnauthorized)
)

// ValidationError - 필드 단위 입력 오류
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// unavailable - 저장소 오류를 fail-closed 에러로 감싼다.
// 이미 분류된 에러(ErrUnauthorized 등)는 그대로 돌려준다.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrInvalidInput, ErrUnavailable} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s timed out", ErrUnavailable, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
