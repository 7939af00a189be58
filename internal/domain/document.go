package domain

import (
	"path"
	"strings"
)

// MIME types used by document sources.
const (
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"

	MimeTypePDF      = "application/pdf"
	MimeTypePDFAlt   = "application/x-pdf"
	MimeTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeTypePPTX     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeTypeText     = "text/plain"
	MimeTypeMarkdown = "text/markdown"
	MimeTypeCSV      = "text/csv"
	MimeTypeHTML     = "text/html"
	MimeTypeJPEG     = "image/jpeg"
	MimeTypePNG      = "image/png"
	MimeTypeWebP     = "image/webp"
)

// Document is a source artifact discovered during sync enumeration.
// ModifiedTime is the provider's opaque timestamp and the only staleness signal.
type Document struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	SourceURI    string
	Size         int64
	Parents      []string
}

// IsFolder reports whether the document is a container to be expanded.
func (d Document) IsFolder() bool {
	return d.MimeType == MimeTypeFolder
}

// Format returns the document's format variant.
func (d Document) Format() Format {
	return DetectFormat(d.MimeType, d.Name)
}

// Format enumerates the document formats the extractors understand.
type Format string

const (
	FormatPDF          Format = "pdf"
	FormatDOCX         Format = "docx"
	FormatPPTX         Format = "pptx"
	FormatXLSX         Format = "xlsx"
	FormatCSV          Format = "csv"
	FormatText         Format = "text"
	FormatMarkdown     Format = "markdown"
	FormatHTML         Format = "html"
	FormatImage        Format = "image"
	FormatGoogleDoc    Format = "google_doc"
	FormatGoogleSheet  Format = "google_sheet"
	FormatGoogleSlides Format = "google_slides"
	FormatUnsupported  Format = "unsupported"
)

var formatsByMime = map[string]Format{
	MimeTypePDF:          FormatPDF,
	MimeTypePDFAlt:       FormatPDF,
	MimeTypeDOCX:         FormatDOCX,
	MimeTypePPTX:         FormatPPTX,
	MimeTypeXLSX:         FormatXLSX,
	MimeTypeCSV:          FormatCSV,
	MimeTypeText:         FormatText,
	MimeTypeMarkdown:     FormatMarkdown,
	MimeTypeHTML:         FormatHTML,
	MimeTypeJPEG:         FormatImage,
	MimeTypePNG:          FormatImage,
	MimeTypeWebP:         FormatImage,
	MimeTypeGoogleDoc:    FormatGoogleDoc,
	MimeTypeGoogleSheet:  FormatGoogleSheet,
	MimeTypeGoogleSlides: FormatGoogleSlides,
}

var formatsByExtension = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".pptx": FormatPPTX,
	".xlsx": FormatXLSX,
	".csv":  FormatCSV,
	".txt":  FormatText,
	".md":   FormatMarkdown,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".png":  FormatImage,
	".webp": FormatImage,
}

// DetectFormat classifies a document by MIME type, falling back to the filename
// extension for generic types such as application/octet-stream.
func DetectFormat(mimeType, name string) Format {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if f, ok := formatsByMime[mimeType]; ok {
		return f
	}
	ext := strings.ToLower(path.Ext(name))
	if f, ok := formatsByExtension[ext]; ok {
		return f
	}
	return FormatUnsupported
}

// Supported reports whether the format can be extracted and indexed.
func (f Format) Supported() bool {
	return f != FormatUnsupported && f != ""
}

// RowOriented reports whether the format is chunked one row per chunk.
func (f Format) RowOriented() bool {
	switch f {
	case FormatXLSX, FormatCSV, FormatGoogleSheet:
		return true
	}
	return false
}

// PageOriented reports whether extracted text carries [PAGE n] markers.
func (f Format) PageOriented() bool {
	switch f {
	case FormatPDF, FormatGoogleSlides:
		return true
	}
	return false
}

// Workspace reports whether the format must be exported before download.
func (f Format) Workspace() bool {
	return f.ExportMimeType() != ""
}

// ExportMimeType returns the MIME type workspace-native files are exported to.
func (f Format) ExportMimeType() string {
	switch f {
	case FormatGoogleDoc:
		return MimeTypeDOCX
	case FormatGoogleSheet:
		return MimeTypeCSV
	case FormatGoogleSlides:
		return MimeTypePDF
	}
	return ""
}

// Extension returns a short display label used in embedding prefixes.
func (f Format) Extension() string {
	switch f {
	case FormatGoogleDoc:
		return "docx"
	case FormatGoogleSheet:
		return "csv"
	case FormatGoogleSlides:
		return "pdf"
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	}
	return string(f)
}
