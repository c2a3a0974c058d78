package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/usecase/importer"
)

const importFormField = "file"

// Importer - массовый импорт аттестатов из CSV
type Importer interface {
	ImportCSV(ctx context.Context, p domain.Principal, r io.Reader) (*importer.Result, error)
}

// ImportHandler принимает файл импорта
type ImportHandler struct {
	importer      Importer
	maxUploadSize int64
	logger        logger.Logger
}

// NewImportHandler создает новый handler
func NewImportHandler(importer Importer, maxUploadSize int64, logger logger.Logger) *ImportHandler {
	return &ImportHandler{
		importer:      importer,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// ImportCertificates загружает CSV (multipart, поле file)
// POST /api/v1/certificates/import
func (h *ImportHandler) ImportCertificates(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Import file is too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Multipart form with a file field is required")
		return
	}

	file, _, err := r.FormFile(importFormField)
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	result, err := h.importer.ImportCSV(r.Context(), p, file)
	if err != nil {
		status := errorStatus(err)
		// Неизвестное агентство в файле - ошибка содержимого, а не маршрута
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusBadRequest
		}
		respondServiceErrorWithStatus(w, h.logger, err, "import certificates", status)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   result.Inserted,
		"data":    result,
	})
}
