package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeNotFound               = "RESOURCE_NOT_FOUND"
	CodeTargetNotFound         = "TARGET_NOT_FOUND"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeShortageBlocks         = "SHORTAGE_BLOCKS_VERIFICATION"
	CodeAlreadyVerified        = "ALREADY_VERIFIED"
	CodeStatusGuardViolation   = "STATUS_GUARD_VIOLATION"
	CodeBatchAlreadyActive     = "BATCH_ALREADY_ACTIVE"
	CodeBatchSettled           = "BATCH_SETTLED"
	CodeConflict               = "CONFLICT"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeBadRequest             = "BAD_REQUEST"
	CodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// AppError is what handlers return. The fiber error handler renders it.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Data       any               `json:"data,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithData attaches a payload, e.g. the shortage list of a failed verification.
func (e *AppError) WithData(data any) *AppError {
	e.Data = data
	return e
}

func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func Validation(message string, fields map[string]string) *AppError {
	return &AppError{Code: CodeValidationError, Message: message, Details: fields, HTTPStatus: http.StatusBadRequest}
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, resource+" not found", http.StatusNotFound)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternalError, message, http.StatusInternalServerError).Wrap(err)
}

type mapping struct {
	target error
	code   string
	status int
}

var registry []mapping

// Register maps a domain sentinel error to a code and status. Domain packages
// call it from init so this package stays free of domain imports.
func Register(target error, code string, status int) {
	registry = append(registry, mapping{target: target, code: code, status: status})
}

// FromError turns any error into an AppError.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return New(codeForStatus(fe.Code), fe.Message, fe.Code)
	}
	for _, m := range registry {
		if errors.Is(err, m.target) {
			return New(m.code, err.Error(), m.status).Wrap(err)
		}
	}
	return Internal("unexpected server error", err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	default:
		return CodeInternalError
	}
}

// Handler is the fiber.Config ErrorHandler.
func Handler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := FromError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.Error(err),
			)
		}
		return c.Status(appErr.HTTPStatus).JSON(fiber.Map{"error": appErr})
	}
}
