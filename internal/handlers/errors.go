package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/logger"
	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
	"github.com/imrishuroy/go-photobook-orderflow/internal/processor"
	"github.com/imrishuroy/go-photobook-orderflow/internal/uploads"
	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

// Error codes of the JSON error envelope.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidBody         = "INVALID_REQUEST_BODY"
	CodeInvalidCursor       = "INVALID_CURSOR"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeIdempotencyReused   = "IDEMPOTENCY_KEY_REUSED"
	CodeNotFound            = "NOT_FOUND"
	CodeProcessing          = "PROCESSING_ERROR"
	CodeRepository          = "REPOSITORY_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
	maxEnvelopeMessageRunes = 512
)

// APIError is the canonical error envelope. Details are merged into the top-level object.
type APIError struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

func writeError(c *gin.Context, e APIError) {
	if e.Status == 0 {
		e.Status = http.StatusInternalServerError
	}
	msg := []rune(e.Message)
	if len(msg) > maxEnvelopeMessageRunes {
		e.Message = string(msg[:maxEnvelopeMessageRunes])
	}

	payload := gin.H{
		"error":   e.Code,
		"message": e.Message,
		"status":  e.Status,
	}
	if id := logger.RequestID(c.Request.Context()); id != "" {
		payload["request_id"] = id
	}
	for k, v := range e.Details {
		payload[k] = v
	}
	c.AbortWithStatusJSON(e.Status, payload)
}

// toAPIError maps a service error to its envelope. It is the only place that
// decides HTTP statuses for errors.
func toAPIError(err error) APIError {
	var (
		bodyErr   *validation.BodyError
		fieldErrs validation.Errors
		uploadErr *uploads.UploadError
		transErr  *orders.TransitionError
		procErr   *processor.ProcessingError
	)

	switch {
	case errors.As(err, &bodyErr):
		e := APIError{Code: CodeInvalidBody, Message: bodyErr.Error(), Status: http.StatusBadRequest}
		if len(bodyErr.Fields) > 0 {
			e.Details = map[string]any{"errors": bodyErr.Fields}
		}
		return e
	case errors.As(err, &fieldErrs):
		return APIError{
			Code:    CodeValidation,
			Message: "request validation failed",
			Status:  http.StatusBadRequest,
			Details: map[string]any{"errors": fieldErrs},
		}
	case errors.As(err, &uploadErr):
		return APIError{
			Code:    uploadErr.Code,
			Message: uploadErr.Message,
			Status:  http.StatusBadRequest,
			Details: map[string]any{"errors": uploadErr.Fields},
		}
	case errors.As(err, &transErr):
		allowed := make([]string, 0, len(transErr.Allowed))
		for _, s := range transErr.Allowed {
			allowed = append(allowed, string(s))
		}
		return APIError{
			Code:    CodeInvalidTransition,
			Message: transErr.Error(),
			Status:  http.StatusBadRequest,
			Details: map[string]any{
				"currentStatus":      transErr.Current,
				"allowedTransitions": allowed,
			},
		}
	case errors.Is(err, orders.ErrErrorMessageNotAllowed):
		return APIError{
			Code:    CodeValidation,
			Message: "request validation failed",
			Status:  http.StatusBadRequest,
			Details: map[string]any{"errors": validation.Errors{{
				Field:   "errorMessage",
				Message: "errorMessage is only allowed when status is FAILED",
			}}},
		}
	case errors.Is(err, orders.ErrInvalidCursor):
		return APIError{Code: CodeInvalidCursor, Message: "cursor is invalid or expired", Status: http.StatusBadRequest}
	case errors.Is(err, orders.ErrIdempotencyKeyReused):
		return APIError{
			Code:    CodeIdempotencyReused,
			Message: "Idempotency-Key was already used with a different request",
			Status:  http.StatusBadRequest,
		}
	case errors.Is(err, processor.ErrInvalidStatus):
		return APIError{Code: CodeInvalidStatus, Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, orders.ErrNotFound):
		return APIError{Code: CodeNotFound, Message: "order not found", Status: http.StatusNotFound}
	case errors.As(err, &procErr):
		return APIError{
			Code:    CodeProcessing,
			Message: procErr.Error(),
			Status:  http.StatusInternalServerError,
			Details: map[string]any{"orderId": procErr.OrderID, "orderStatus": orders.StatusFailed},
		}
	case errors.Is(err, orders.ErrRepository),
		errors.Is(err, orders.ErrUnavailable),
		errors.Is(err, orders.ErrConflict):
		return APIError{
			Code:    CodeRepository,
			Message: "order storage is temporarily unavailable",
			Status:  http.StatusInternalServerError,
			Details: map[string]any{"retryable": true},
		}
	default:
		return APIError{Code: CodeInternal, Message: "internal server error", Status: http.StatusInternalServerError}
	}
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	e := toAPIError(err)
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", e.Code),
			zap.String("requestId", logger.RequestID(c.Request.Context())),
			zap.Error(err),
		)
	}
	writeError(c, e)
}
