package domain

import (
	"encoding/json"
	"time"
)

const DocumentTypeOther = "other"

type Document struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	FilePath     string    `json:"file_path"`
	FileType     string    `json:"file_type"`
	DocumentType string    `json:"document_type"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d Document) Ref() DocumentRef {
	return DocumentRef{ID: d.ID, Name: d.Name, DocumentType: d.DocumentType}
}

type ContentEncoding string

const (
	ContentUnresolved ContentEncoding = ""
	ContentText       ContentEncoding = "text"
	ContentBase64     ContentEncoding = "base64"
)

// DocumentContent holds exactly one of the two encodings.
type DocumentContent struct {
	Encoding ContentEncoding `json:"encoding"`
	Data     string          `json:"data"`
}

func TextContent(text string) DocumentContent {
	return DocumentContent{Encoding: ContentText, Data: text}
}

func Base64Content(encoded string) DocumentContent {
	return DocumentContent{Encoding: ContentBase64, Data: encoded}
}

func (c DocumentContent) Resolved() bool {
	return c.Encoding != ContentUnresolved
}

type DocumentWithContent struct {
	Document
	Content DocumentContent `json:"-"`

	// Upload holds bytes received in the current request; never persisted.
	Upload []byte `json:"-"`
}

// MarshalJSON emits the wire shape the analysis functions expect.
func (d DocumentWithContent) MarshalJSON() ([]byte, error) {
	payload := struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		DocumentType string `json:"document_type"`
		FilePath     string `json:"file_path"`
		FileType     string `json:"file_type"`
		Text         string `json:"text,omitempty"`
		Base64       string `json:"base64,omitempty"`
	}{
		ID:           d.ID,
		Name:         d.Name,
		DocumentType: d.DocumentType,
		FilePath:     d.FilePath,
		FileType:     d.FileType,
	}
	switch d.Content.Encoding {
	case ContentText:
		payload.Text = d.Content.Data
	case ContentBase64:
		payload.Base64 = d.Content.Data
	}
	return json.Marshal(payload)
}

type UploadFile struct {
	Name     string
	MimeType string
	Data     []byte
}

type Company struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type Valuation struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	UserID      string          `json:"user_id"`
	DocumentIDs []string        `json:"document_ids"`
	Results     json.RawMessage `json:"results,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
