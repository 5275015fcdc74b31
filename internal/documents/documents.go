// Package documents attaches supporting files to claims. Bytes go to blob
// storage; metadata is committed together with a claim revision bump so an
// attachment never interleaves with a lifecycle decision.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/aldoetobex/claims-backend/internal/claims"
	"github.com/aldoetobex/claims-backend/internal/storage"
	"github.com/aldoetobex/claims-backend/pkg/models"
)

const (
	DefaultMaxFileBytes = 5 << 20
	DefaultMaxFiles     = 10

	commitAttempts = 3
)

// allowed maps every accepted MIME type to the extensions that imply it.
var allowed = map[string][]string{
	"image/jpeg":         {".jpg", ".jpeg"},
	"image/png":          {".png"},
	"application/pdf":    {".pdf"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
}

// AllowedTypes lists the accepted MIME types.
func AllowedTypes() []string {
	out := make([]string, 0, len(allowed))
	for k := range allowed {
		out = append(out, k)
	}
	return out
}

// ClaimStore is the slice of claims.Store attachments need.
type ClaimStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	AddDocuments(ctx context.Context, claimID uuid.UUID, expected int64, docs []models.Document) error
	Document(ctx context.Context, id uuid.UUID) (*models.Document, error)
}

// Limits caps attachments.
type Limits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// Upload is one file offered for attachment.
type Upload struct {
	FileName     string
	MimeType     string
	DocumentType string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// BytesUpload wraps in-memory content as an Upload.
func BytesUpload(name, mimeType, docType string, data []byte) Upload {
	return Upload{
		FileName:     name,
		MimeType:     mimeType,
		DocumentType: docType,
		Size:         int64(len(data)),
		Open:         func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Viewer is the caller acting on a claim's documents.
type Viewer struct {
	ID    uuid.UUID
	Staff bool
}

// CanAccess reports whether v is staff or owns c.
func (v Viewer) CanAccess(c *models.Claim) bool {
	return v.Staff || c.ClaimantID == v.ID
}

// FileError reports why one file of a batch was not stored.
type FileError struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Err      error  `json:"-"`
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.FileName, e.Err) }
func (e FileError) Unwrap() error { return e.Err }

// AttachResult is the outcome of a batch: stored documents and per-file failures.
type AttachResult struct {
	Stored []models.Document
	Failed []FileError
}

// Service validates, stores and lists claim documents.
type Service struct {
	claims ClaimStore
	blobs  storage.Blob
	limits Limits
	log    *slog.Logger

	Now func() time.Time
}

func NewService(cs ClaimStore, blobs storage.Blob, limits Limits, log *slog.Logger) *Service {
	if limits.MaxFileBytes <= 0 {
		limits.MaxFileBytes = DefaultMaxFileBytes
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = DefaultMaxFiles
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		claims: cs,
		blobs:  blobs,
		limits: limits,
		log:    log.With("component", "documents"),
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Limits returns the configured caps.
func (s *Service) Limits() Limits { return s.limits }

// CheckFile validates a file descriptor without its content and returns the
// normalized MIME type.
func (s *Service) CheckFile(name, declared string, size int64) (string, error) {
	mt := NormalizeMIME(declared, name)
	if _, ok := allowed[mt]; !ok {
		return mt, &claims.UnsupportedFileTypeError{FileName: name, MimeType: mt}
	}
	if size <= 0 {
		return mt, claims.NewValidationError("files", name+": file is empty")
	}
	if size > s.limits.MaxFileBytes {
		return mt, &claims.FileTooLargeError{FileName: name, Size: size, Limit: s.limits.MaxFileBytes}
	}
	return mt, nil
}

// NormalizeMIME strips parameters and falls back to the file extension when the
// declared type is missing or generic.
func NormalizeMIME(declared, name string) string {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "image/jpg" || mt == "image/pjpeg" {
		mt = "image/jpeg"
	}
	if mt == "" || mt == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(name))
		for t, exts := range allowed {
			for _, e := range exts {
				if e == ext {
					return t
				}
			}
		}
	}
	return mt
}

type prepared struct {
	index int
	up    Upload
	mime  string
	data  []byte
}

// read loads the file, enforcing the size cap on the real byte count and
// checking the content agrees with the declared type.
func (s *Service) read(up Upload, mt string) ([]byte, error) {
	rc, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", up.FileName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.limits.MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", up.FileName, err)
	}
	if len(data) == 0 {
		return nil, claims.NewValidationError("files", up.FileName+": file is empty")
	}
	if int64(len(data)) > s.limits.MaxFileBytes {
		return nil, &claims.FileTooLargeError{FileName: up.FileName, Size: int64(len(data)), Limit: s.limits.MaxFileBytes}
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(mt) {
			return data, nil
		}
	}
	return nil, &claims.UnsupportedFileTypeError{FileName: up.FileName, MimeType: detected.String()}
}

// Attach stores a batch of files on a claim. Files failing their own checks are
// skipped and reported; the batch as a whole fails when the claim is terminal or
// the accepted files would exceed the per-claim cap.
func (s *Service) Attach(ctx context.Context, claimID uuid.UUID, uploads []Upload, by Viewer) (*AttachResult, error) {
	if len(uploads) == 0 {
		return nil, claims.NewValidationError("files", "At least one file is required")
	}
	c, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !by.CanAccess(c) {
		return nil, claims.ErrForbidden
	}
	if c.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is %s", claims.ErrClaimClosed, c.ClaimNumber, c.Status)
	}

	res := &AttachResult{}
	accepted := make([]prepared, 0, len(uploads))
	for i, up := range uploads {
		mt, err := s.CheckFile(up.FileName, up.MimeType, max(up.Size, 1))
		if err == nil {
			var data []byte
			if data, err = s.read(up, mt); err == nil {
				accepted = append(accepted, prepared{index: i, up: up, mime: mt, data: data})
				continue
			}
		}
		res.Failed = append(res.Failed, FileError{Index: i, FileName: up.FileName, Err: err})
	}
	if len(accepted) == 0 {
		return res, nil
	}
	if err := s.checkCount(c, len(accepted)); err != nil {
		return nil, err
	}

	now := s.Now()
	docs := make([]models.Document, 0, len(accepted))
	keys := make([]string, 0, len(accepted))
	for _, p := range accepted {
		key := storage.ObjectKey(c.ID, p.up.FileName, now)
		if err := s.blobs.Upload(ctx, key, bytes.NewReader(p.data), p.mime, int64(len(p.data))); err != nil {
			s.log.Warn("document upload failed", "claim", c.ClaimNumber, "file", p.up.FileName, "err", err)
			res.Failed = append(res.Failed, FileError{Index: p.index, FileName: p.up.FileName, Err: err})
			continue
		}
		keys = append(keys, key)
		docs = append(docs, models.Document{
			ID:           uuid.New(),
			ClaimID:      c.ID,
			FileName:     p.up.FileName,
			MimeType:     p.mime,
			Size:         int64(len(p.data)),
			DocumentType: strings.TrimSpace(p.up.DocumentType),
			StorageKey:   key,
			UploadedBy:   by.ID.String(),
			UploadedAt:   now,
		})
	}
	if len(docs) == 0 {
		return res, nil
	}

	if err := s.commit(ctx, c, docs); err != nil {
		if derr := s.blobs.BulkDelete(context.WithoutCancel(ctx), keys); derr != nil {
			s.log.Error("orphaned document blobs", "claim", c.ClaimNumber, "keys", keys, "err", derr)
		}
		return nil, err
	}

	s.log.Info("documents attached", "claim", c.ClaimNumber, "stored", len(docs), "failed", len(res.Failed))
	res.Stored = docs
	return res, nil
}

// commit writes metadata against the claim revision, re-checking the batch
// rules whenever another writer got there first.
func (s *Service) commit(ctx context.Context, c *models.Claim, docs []models.Document) error {
	var err error
	for attempt := 0; attempt < commitAttempts; attempt++ {
		err = s.claims.AddDocuments(ctx, c.ID, c.Version, docs)
		if !errors.Is(err, claims.ErrConcurrentModification) {
			return err
		}
		if c, err = s.claims.Get(ctx, c.ID); err != nil {
			return err
		}
		if c.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is %s", claims.ErrClaimClosed, c.ClaimNumber, c.Status)
		}
		if err = s.checkCount(c, len(docs)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: attaching to %s", claims.ErrConcurrentModification, c.ClaimNumber)
}

func (s *Service) checkCount(c *models.Claim, adding int) error {
	if len(c.Documents)+adding > s.limits.MaxFiles {
		return &claims.TooManyFilesError{Existing: len(c.Documents), Adding: adding, Limit: s.limits.MaxFiles}
	}
	return nil
}

// List returns the documents of a claim in upload order.
func (s *Service) List(ctx context.Context, claimID uuid.UUID, by Viewer) ([]models.Document, error) {
	c, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !by.CanAccess(c) {
		return nil, claims.ErrForbidden
	}
	return c.Documents, nil
}

// Link is a short-lived download URL.
type Link struct {
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expires_in"`
	Now       time.Time `json:"now"`
}

// SignedURL issues a download link for one document.
func (s *Service) SignedURL(ctx context.Context, docID uuid.UUID, ttl time.Duration, by Viewer) (*Link, error) {
	d, err := s.claims.Document(ctx, docID)
	if err != nil {
		return nil, err
	}
	c, err := s.claims.Get(ctx, d.ClaimID)
	if err != nil {
		return nil, err
	}
	if !by.CanAccess(c) {
		return nil, claims.ErrForbidden
	}
	url, err := s.blobs.SignedURL(ctx, d.StorageKey, ttl)
	if err != nil {
		return nil, err
	}
	return &Link{URL: url, ExpiresIn: int(ttl.Seconds()), Now: s.Now()}, nil
}
