package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"unicode/utf8"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/domain"
	"github.com/cloo-solutions/ragsync/internal/service"
)

const maxMultipartMemory = 32 << 20

type ParseHandler struct {
	extractor service.TextExtractor
}

func NewParseHandler(extractor service.TextExtractor) *ParseHandler {
	return &ParseHandler{extractor: extractor}
}

type ParseResponse struct {
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	MimeType   string `json:"mime_type"`
	Text       string `json:"text"`
	Characters int    `json:"characters"`
}

// Parse extracts the text of an uploaded multipart "file" field.
func (h *ParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	name := filepath.Base(header.Filename)
	mimeType := header.Header.Get("Content-Type")
	format := domain.DetectFormat(mimeType, name)
	if !format.Supported() {
		api.HandleError(w, domain.ErrUnsupportedFormat)
		return
	}

	text, err := h.extractor.Extract(r.Context(), data, format, mimeType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ParseResponse{
		Filename:   name,
		Format:     string(format),
		MimeType:   mimeType,
		Text:       text,
		Characters: utf8.RuneCountInString(text),
	})
}
