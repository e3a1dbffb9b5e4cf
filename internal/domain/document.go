package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// DocumentKind identifies the uploaded document format
type DocumentKind string

const (
	KindPDF         DocumentKind = "pdf"
	KindWordProc    DocumentKind = "wordproc"
	KindSpreadsheet DocumentKind = "spreadsheet"
)

var (
	ErrUnsupportedKind  = errors.New("unsupported document kind")
	ErrExtractionFailed = errors.New("document extraction failed")
)

// KindFromName derives the document kind from the filename suffix (case-insensitive)
func KindFromName(name string) (DocumentKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF, nil
	case ".docx":
		return KindWordProc, nil
	case ".xlsx":
		return KindSpreadsheet, nil
	default:
		return "", ErrUnsupportedKind
	}
}

// SupportedExtensions lists the accepted upload suffixes
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".xlsx"}
}

// Document is the single active upload of a session
type Document struct {
	Name       string       `json:"name"`
	Kind       DocumentKind `json:"kind"`
	RawBytes   []byte       `json:"-"`
	Size       int64        `json:"size"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

// NewDocument builds a document from an uploaded file
func NewDocument(name string, data []byte) (*Document, error) {
	kind, err := KindFromName(name)
	if err != nil {
		return nil, err
	}
	return &Document{
		Name:       name,
		Kind:       kind,
		RawBytes:   data,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
	}, nil
}

// Digest returns the hex SHA-256 of the raw bytes
func (d *Document) Digest() string {
	sum := sha256.Sum256(d.RawBytes)
	return hex.EncodeToString(sum[:])
}
