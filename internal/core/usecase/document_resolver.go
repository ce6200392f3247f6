package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
)

// DocumentResolver resolves document references into content. Lookups never
// fail loudly: an unavailable document resolves to nil.
type DocumentResolver struct {
	docs       ports.DocumentRepository
	valuations ports.ValuationRepository
	storage    ports.ObjectStorage
	cache      ports.ContentCache
	sheets     ports.SpreadsheetExtractor
	types      ports.DocumentTypeClassifier
	logger     *slog.Logger

	companyFallback bool

	now   func() time.Time
	token func() string
}

type DocumentResolverOption func(*DocumentResolver)

func WithContentCache(cache ports.ContentCache) DocumentResolverOption {
	return func(r *DocumentResolver) { r.cache = cache }
}

func WithSpreadsheetExtractor(sheets ports.SpreadsheetExtractor) DocumentResolverOption {
	return func(r *DocumentResolver) { r.sheets = sheets }
}

// WithValuationCompanyFallback controls whether a valuation without linked
// document ids resolves to all documents of its company. Enabled by default.
func WithValuationCompanyFallback(enabled bool) DocumentResolverOption {
	return func(r *DocumentResolver) { r.companyFallback = enabled }
}

func WithResolverLogger(logger *slog.Logger) DocumentResolverOption {
	return func(r *DocumentResolver) { r.logger = logger }
}

func NewDocumentResolver(
	docs ports.DocumentRepository,
	valuations ports.ValuationRepository,
	storage ports.ObjectStorage,
	types ports.DocumentTypeClassifier,
	opts ...DocumentResolverOption,
) *DocumentResolver {
	r := &DocumentResolver{
		docs:       docs,
		valuations: valuations,
		storage:    storage,
		types:      types,
		logger:     slog.Default(),

		companyFallback: true,

		now:   func() time.Time { return time.Now().UTC() },
		token: randomToken,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DocumentResolver) GetDocumentContent(ctx context.Context, documentID string) *domain.DocumentWithContent {
	doc, err := r.docs.GetByID(ctx, documentID)
	if err != nil {
		r.logger.Warn("document_metadata_unavailable", "document_id", documentID, "error", err)
		return nil
	}
	if userID, err := domain.UserIDFromContext(ctx); err == nil && doc.UserID != "" && doc.UserID != userID {
		r.logger.Warn("document_owner_mismatch", "document_id", documentID)
		return nil
	}

	if r.cache != nil {
		content, hit, err := r.cache.GetContent(ctx, documentID)
		if err != nil {
			r.logger.Warn("document_cache_read_failed", "document_id", documentID, "error", err)
		} else if hit {
			return &domain.DocumentWithContent{Document: *doc, Content: content}
		}
	}

	raw, err := r.download(ctx, doc.FilePath)
	if err != nil {
		r.logger.Warn("document_download_failed", "document_id", documentID, "path", doc.FilePath, "error", err)
		return nil
	}

	content := r.decodeContent(doc.FileType, doc.Name, raw)
	if r.cache != nil {
		if err := r.cache.SetContent(ctx, documentID, content); err != nil {
			r.logger.Warn("document_cache_write_failed", "document_id", documentID, "error", err)
		}
	}
	return &domain.DocumentWithContent{Document: *doc, Content: content}
}

func (r *DocumentResolver) download(ctx context.Context, key string) ([]byte, error) {
	reader, err := r.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return raw, nil
}

// GetValuationDocuments resolves the documents behind a stored valuation.
func (r *DocumentResolver) GetValuationDocuments(ctx context.Context, valuationID string) ([]domain.DocumentWithContent, *domain.Valuation, error) {
	valuation, err := r.valuations.GetByID(ctx, valuationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load valuation: %w", err)
	}
	if userID, err := domain.UserIDFromContext(ctx); err == nil && valuation.UserID != "" && valuation.UserID != userID {
		return nil, nil, domain.WrapError(domain.ErrNotFound, "load valuation", fmt.Errorf("id=%s", valuationID))
	}

	ids := valuation.DocumentIDs
	if len(ids) == 0 && r.companyFallback {
		// Valuations stored before explicit document linkage carry no ids.
		// Company-wide documents may include files the valuation never used.
		r.logger.Warn("valuation_without_document_ids",
			"valuation_id", valuationID,
			"company_id", valuation.CompanyID,
		)
		companyDocs, err := r.docs.ListByCompany(ctx, valuation.CompanyID)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrPersistence, "list company documents", err)
		}
		for _, d := range companyDocs {
			ids = append(ids, d.ID)
		}
	}

	out := make([]domain.DocumentWithContent, 0, len(ids))
	for _, id := range ids {
		if doc := r.GetDocumentContent(ctx, id); doc != nil {
			out = append(out, *doc)
		}
	}
	return out, valuation, nil
}

// UploadFilesToStorage stores each file and records its metadata row. When a
// file fails part way through the batch, the documents already stored are
// returned together with the error.
func (r *DocumentResolver) UploadFilesToStorage(ctx context.Context, files []domain.UploadFile, companyID string) ([]domain.DocumentWithContent, error) {
	userID, err := domain.UserIDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("upload files: %w", err)
	}
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload files", errors.New("no files"))
	}

	for _, file := range files {
		if len(file.Data) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload files", fmt.Errorf("file %q is empty", file.Name))
		}
	}

	out := make([]domain.DocumentWithContent, 0, len(files))
	for _, file := range files {
		mimeType := normalizeMime(file.MimeType)
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = normalizeMime(mimetype.Detect(file.Data).String())
		}

		now := r.now()
		key := fmt.Sprintf("%s/%s/%d_%s_%s", userID, companyID, now.UnixMilli(), r.token(), sanitizeFilename(file.Name))
		if err := r.storage.Save(ctx, key, mimeType, bytes.NewReader(file.Data)); err != nil {
			return out, domain.WrapError(domain.ErrPersistence, "save to object storage", err)
		}

		doc := domain.Document{
			ID:           uuid.NewString(),
			CompanyID:    companyID,
			UserID:       userID,
			Name:         file.Name,
			FilePath:     key,
			FileType:     mimeType,
			DocumentType: r.types.Classify(file.Name),
			CreatedAt:    now,
		}
		if err := r.docs.Create(ctx, &doc); err != nil {
			return out, domain.WrapError(domain.ErrPersistence, "create document metadata", err)
		}

		out = append(out, domain.DocumentWithContent{
			Document: doc,
			Content:  r.decodeContent(mimeType, file.Name, file.Data),
			Upload:   file.Data,
		})
	}
	return out, nil
}

func (r *DocumentResolver) decodeContent(declared, name string, raw []byte) domain.DocumentContent {
	mimeType := normalizeMime(declared)
	if mimeType == "" {
		mimeType = normalizeMime(mimetype.Detect(raw).String())
	}

	if isSpreadsheetMime(mimeType) && r.sheets != nil {
		text, err := r.sheets.ExtractText(raw)
		if err == nil {
			return domain.TextContent(text)
		}
		r.logger.Debug("spreadsheet_text_extraction_failed", "name", name, "error", err)
	}
	if isTextualMime(mimeType) && utf8.Valid(raw) {
		return domain.TextContent(string(raw))
	}
	return domain.Base64Content(base64.StdEncoding.EncodeToString(raw))
}

func normalizeMime(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}

func isSpreadsheetMime(mimeType string) bool {
	switch mimeType {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel":
		return true
	default:
		return false
	}
}

func isTextualMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json",
		"application/xml",
		"application/csv",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	default:
		return false
	}
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "document.bin"
	}
	return base
}
