package media

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

type fakeSigner struct {
	uploadErr error

	uploadObject  string
	uploadContent string
}

func (f *fakeSigner) SignedUploadURL(object, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploadObject = object
	f.uploadContent = contentType
	return "https://storage.example.com/upload/" + object, nil
}

func (f *fakeSigner) SignedDownloadURL(object string) (string, error) {
	return "https://storage.example.com/download/" + object, nil
}

func newMediaService(t *testing.T, signer *fakeSigner) Service {
	t.Helper()
	svc, err := NewService(signer, 15*time.Minute)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestPresignUpload(t *testing.T) {
	signer := &fakeSigner{}
	svc := newMediaService(t, signer)
	userID := uuid.New()

	out, err := svc.PresignUpload(userID, PresignInput{
		Kind:      KindProduct,
		MimeType:  "image/png",
		FileName:  "fresh basil.png",
		SizeBytes: 1024,
	})
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	prefix := fmt.Sprintf("uploads/product/%s/", userID)
	if !strings.HasPrefix(out.ObjectKey, prefix) {
		t.Fatalf("expected object key under %q, got %q", prefix, out.ObjectKey)
	}
	if !strings.HasSuffix(out.ObjectKey, "/fresh-basil.png") {
		t.Fatalf("expected sanitized file name, got %q", out.ObjectKey)
	}
	if out.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", out.ContentType)
	}
	if signer.uploadObject != out.ObjectKey || signer.uploadContent != "image/png" {
		t.Fatalf("signer received %q %q", signer.uploadObject, signer.uploadContent)
	}
	if !strings.Contains(out.UploadURL, "/upload/") || !strings.Contains(out.DownloadURL, "/download/") {
		t.Fatalf("unexpected urls %q %q", out.UploadURL, out.DownloadURL)
	}
	if out.ExpiresAt.IsZero() {
		t.Fatal("expected expiry timestamp")
	}
}

func TestPresignUploadStripsPathTraversal(t *testing.T) {
	signer := &fakeSigner{}
	svc := newMediaService(t, signer)

	out, err := svc.PresignUpload(uuid.New(), PresignInput{
		Kind:      KindAvatar,
		MimeType:  "image/jpeg",
		FileName:  "../../etc/passwd",
		SizeBytes: 512,
	})
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	if strings.Contains(out.ObjectKey, "..") {
		t.Fatalf("object key must not carry traversal segments, got %q", out.ObjectKey)
	}
	if !strings.HasSuffix(out.ObjectKey, "/passwd") {
		t.Fatalf("expected base name only, got %q", out.ObjectKey)
	}
}

func TestPresignUploadValidation(t *testing.T) {
	svc := newMediaService(t, &fakeSigner{})
	valid := PresignInput{
		Kind:      KindProduct,
		MimeType:  "image/png",
		FileName:  "photo.png",
		SizeBytes: 1024,
	}

	cases := []struct {
		name   string
		userID uuid.UUID
		mutate func(*PresignInput)
		code   pkgerrors.Code
	}{
		{
			name:   "missing identity",
			userID: uuid.Nil,
			mutate: func(*PresignInput) {},
			code:   pkgerrors.CodeUnauthorized,
		},
		{
			name:   "unknown kind",
			userID: uuid.New(),
			mutate: func(in *PresignInput) { in.Kind = Kind("archive") },
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "blank file name",
			userID: uuid.New(),
			mutate: func(in *PresignInput) { in.FileName = "   " },
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "zero size",
			userID: uuid.New(),
			mutate: func(in *PresignInput) { in.SizeBytes = 0 },
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "oversized upload",
			userID: uuid.New(),
			mutate: func(in *PresignInput) { in.SizeBytes = maxUploadBytes + 1 },
			code:   pkgerrors.CodeValidation,
		},
		{
			name:   "disallowed mime",
			userID: uuid.New(),
			mutate: func(in *PresignInput) { in.MimeType = "application/pdf" },
			code:   pkgerrors.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			_, err := svc.PresignUpload(tc.userID, input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestPresignUploadSignerFailure(t *testing.T) {
	svc := newMediaService(t, &fakeSigner{uploadErr: fmt.Errorf("gcs unavailable")})

	_, err := svc.PresignUpload(uuid.New(), PresignInput{
		Kind:      KindFarm,
		MimeType:  "image/webp",
		FileName:  "barn.webp",
		SizeBytes: 2048,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
