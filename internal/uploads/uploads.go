// Package uploads issues presigned upload URLs for album and collage assets.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

const (
	DefaultTTL         = time.Hour
	DefaultMaxFileSize = 50 * 1024 * 1024
)

// Error codes returned to clients.
const (
	CodeInvalidType        = "INVALID_TYPE"
	CodeMissingOwnerID     = "MISSING_OWNER_ID"
	CodeInvalidOwnerID     = "INVALID_OWNER_ID"
	CodeMissingFileName    = "MISSING_FILE_NAME"
	CodeMissingContentType = "MISSING_CONTENT_TYPE"
	CodeInvalidContentType = "INVALID_CONTENT_TYPE"
	CodeInvalidFileSize    = "INVALID_FILE_SIZE"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
)

// AllowedContentTypes is the upload allow-list, shared by albums and collages.
var AllowedContentTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/gif",
	"image/heic",
	"application/pdf",
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// BlobSigner grants a time-limited PUT for one object key. aws.S3Presigner implements it.
type BlobSigner interface {
	Sign(ctx context.Context, key, contentType string, ttl time.Duration, metadata map[string]string) (string, error)
}

type PresignRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=album collage"`
	OwnerID     string `json:"ownerId" validate:"required,notblank,safesegment"`
	FileName    string `json:"fileName" validate:"required,notblank"`
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/jpg image/png image/webp image/gif image/heic application/pdf"`
	FileSize    *int64 `json:"fileSize,omitempty" validate:"omitempty,gt=0"`
}

type PresignResult struct {
	UploadKey    string    `json:"uploadKey"`
	UploadURL    string    `json:"uploadUrl"`
	Expiry       time.Time `json:"expiry"`
	ExpiresIn    int64     `json:"expiresIn"` // seconds
	OwnerID      string    `json:"ownerId"`
	MaxFileSize  int64     `json:"maxFileSize"`
	AllowedTypes []string  `json:"allowedTypes"`
}

// UploadError is a rejected presign request. Code is taken from the first failing rule.
type UploadError struct {
	Code    string
	Message string
	Fields  validation.Errors
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type Options struct {
	TTL         time.Duration
	MaxFileSize int64
}

type Service struct {
	signer    BlobSigner
	validator *validation.Validator
	logger    *zap.Logger
	opts      Options
	nowFunc   func() time.Time
}

func NewService(signer BlobSigner, v *validation.Validator, logger *zap.Logger, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	return &Service{
		signer:    signer,
		validator: v,
		logger:    logger,
		opts:      opts,
		nowFunc:   time.Now,
	}
}

// Presign validates req and returns a signed PUT URL for a fresh object key.
func (s *Service) Presign(ctx context.Context, req PresignRequest) (*PresignResult, error) {
	req.Kind = strings.TrimSpace(req.Kind)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	key := ObjectKey(req.Kind, req.OwnerID, req.FileName, now)

	url, err := s.signer.Sign(ctx, key, req.ContentType, s.opts.TTL, map[string]string{
		"original-name": req.FileName,
		"upload-type":   req.Kind,
		"owner-id":      req.OwnerID,
		"uploaded-at":   now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	s.logger.Info("upload presigned",
		zap.String("key", key),
		zap.String("contentType", req.ContentType),
	)

	allowed := make([]string, len(AllowedContentTypes))
	copy(allowed, AllowedContentTypes)
	return &PresignResult{
		UploadKey:    key,
		UploadURL:    url,
		Expiry:       now.Add(s.opts.TTL),
		ExpiresIn:    int64(s.opts.TTL / time.Second),
		OwnerID:      req.OwnerID,
		MaxFileSize:  s.opts.MaxFileSize,
		AllowedTypes: allowed,
	}, nil
}

func (s *Service) validate(req PresignRequest) error {
	var fields validation.Errors
	if err := s.validator.Struct(req); err != nil {
		if !errors.As(err, &fields) {
			return err
		}
	}
	if req.FileSize != nil && *req.FileSize > s.opts.MaxFileSize {
		fields = append(fields, validation.FieldError{
			Field:   "fileSize",
			Message: fmt.Sprintf("fileSize must be at most %d bytes (%d MB)", s.opts.MaxFileSize, s.opts.MaxFileSize/(1024*1024)),
			Rule:    "max_file_size",
		})
	}
	if len(fields) == 0 {
		return nil
	}
	first := fields[0]
	return &UploadError{Code: codeFor(first), Message: first.Message, Fields: fields}
}

func codeFor(fe validation.FieldError) string {
	missing := fe.Rule == "required" || fe.Rule == "notblank"
	switch fe.Field {
	case "kind":
		return CodeInvalidType
	case "ownerId":
		if missing {
			return CodeMissingOwnerID
		}
		return CodeInvalidOwnerID
	case "fileName":
		return CodeMissingFileName
	case "contentType":
		if missing {
			return CodeMissingContentType
		}
		return CodeInvalidContentType
	case "fileSize":
		if fe.Rule == "max_file_size" {
			return CodeFileTooLarge
		}
		return CodeInvalidFileSize
	default:
		return "VALIDATION_ERROR"
	}
}

// ObjectKey builds "{kind}s/{ownerId}/{unixMillis}-{sanitized file name}".
func ObjectKey(kind, ownerID, fileName string, at time.Time) string {
	return fmt.Sprintf("%ss/%s/%d-%s", kind, ownerID, at.UnixMilli(), Sanitize(fileName))
}

// Sanitize replaces every character outside [A-Za-z0-9._-] with an underscore.
func Sanitize(fileName string) string {
	return unsafeChars.ReplaceAllString(strings.TrimSpace(fileName), "_")
}
