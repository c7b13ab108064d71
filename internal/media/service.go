package media

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

const maxUploadBytes = 10 * 1024 * 1024

// Kind scopes an upload to the entity its file decorates.
type Kind string

const (
	KindProduct Kind = "product"
	KindAvatar  Kind = "avatar"
	KindFarm    Kind = "farm"
	KindReview  Kind = "review"
)

var mimeTypesByKind = map[Kind][]string{
	KindProduct: {"image/png", "image/jpeg", "image/webp"},
	KindAvatar:  {"image/png", "image/jpeg", "image/webp"},
	KindFarm:    {"image/png", "image/jpeg", "image/webp"},
	KindReview:  {"image/png", "image/jpeg", "image/webp"},
}

// IsValid reports whether the value is a known upload kind.
func (k Kind) IsValid() bool {
	_, ok := mimeTypesByKind[k]
	return ok
}

type signer interface {
	SignedUploadURL(object, contentType string) (string, error)
	SignedDownloadURL(object string) (string, error)
}

// PresignInput models the payload required to request an upload URL.
type PresignInput struct {
	Kind      Kind
	MimeType  string
	FileName  string
	SizeBytes int64
}

// PresignOutput contains what a client needs to PUT the file directly to
// object storage and reference it afterwards.
type PresignOutput struct {
	ObjectKey    string    `json:"objectKey"`
	UploadURL    string    `json:"uploadUrl"`
	DownloadURL  string    `json:"downloadUrl"`
	ContentType  string    `json:"contentType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Service exposes upload-presign semantics.
type Service interface {
	PresignUpload(userID uuid.UUID, input PresignInput) (*PresignOutput, error)
}

type service struct {
	gcs       signer
	uploadTTL time.Duration
	now       func() time.Time
}

// NewService constructs a media service backed by the provided GCS signer.
func NewService(gcs signer, uploadTTL time.Duration) (Service, error) {
	if gcs == nil {
		return nil, fmt.Errorf("gcs client required")
	}
	if uploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	return &service{
		gcs:       gcs,
		uploadTTL: uploadTTL,
		now:       time.Now,
	}, nil
}

func (s *service) PresignUpload(userID uuid.UUID, input PresignInput) (*PresignOutput, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid upload kind")
	}

	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fileName is required")
	}
	if input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sizeBytes must be positive")
	}
	if input.SizeBytes > maxUploadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sizeBytes must be at most %d", maxUploadBytes))
	}

	mimeType := strings.TrimSpace(input.MimeType)
	if !isAllowedMime(input.Kind, mimeType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mimeType not allowed for upload kind")
	}

	objectKey := buildObjectKey(input.Kind, userID, fileName)
	uploadURL, err := s.gcs.SignedUploadURL(objectKey, mimeType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}
	downloadURL, err := s.gcs.SignedDownloadURL(objectKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}

	return &PresignOutput{
		ObjectKey:   objectKey,
		UploadURL:   uploadURL,
		DownloadURL: downloadURL,
		ContentType: mimeType,
		ExpiresAt:   s.now().Add(s.uploadTTL),
	}, nil
}

func isAllowedMime(kind Kind, mimeType string) bool {
	for _, candidate := range mimeTypesByKind[kind] {
		if strings.EqualFold(candidate, mimeType) {
			return true
		}
	}
	return false
}

func buildObjectKey(kind Kind, userID uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = uuid.NewString()
	}
	return fmt.Sprintf("uploads/%s/%s/%s/%s", kind, userID, uuid.NewString(), cleanName)
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" || clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
