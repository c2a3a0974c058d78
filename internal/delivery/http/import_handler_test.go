package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/usecase/importer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockImporter - мок сервиса импорта
type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) ImportCSV(ctx context.Context, p domain.Principal, r io.Reader) (*importer.Result, error) {
	content, _ := io.ReadAll(r)
	args := m.Called(ctx, p, string(content))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

const importCSV = "N° Feuillet,Type Feuillet,Agence\n1,JAUNE,Analakely\n"

func multipartBody(t *testing.T, field, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "import.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

// TestImportHandler_ImportCertificates тестирует загрузку файла импорта
func TestImportHandler_ImportCertificates(t *testing.T) {
	adminID := uuid.New()

	tests := []struct {
		name           string
		field          string
		maxUploadSize  int64
		mockSetup      func(*MockImporter)
		expectedStatus int
		checkResponse  func(*testing.T, map[string]interface{})
	}{
		{
			name:          "успешный импорт",
			field:         "file",
			maxUploadSize: 1 << 20,
			mockSetup: func(m *MockImporter) {
				m.On("ImportCSV", mock.Anything, mock.Anything, importCSV).Return(&importer.Result{
					Inserted:  1,
					Attempted: []int64{1},
					Skipped:   []int64{},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				AssertSuccess(t, resp)
				assert.Equal(t, float64(1), resp["count"])
			},
		},
		{
			name:          "неизвестное агентство в файле",
			field:         "file",
			maxUploadSize: 1 << 20,
			mockSetup: func(m *MockImporter) {
				m.On("ImportCSV", mock.Anything, mock.Anything, importCSV).
					Return(nil, &domain.RowError{Row: 1, Err: domain.ErrAgencyNotFound})
			},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				AssertError(t, resp)
				assert.Equal(t, "not_found", resp["code"])
				assert.Equal(t, float64(1), resp["row"])
			},
		},
		{
			name:          "бланков не хватает",
			field:         "file",
			maxUploadSize: 1 << 20,
			mockSetup: func(m *MockImporter) {
				m.On("ImportCSV", mock.Anything, mock.Anything, importCSV).
					Return(nil, &domain.StockError{Kind: domain.ErrStockExhausted, AgencyName: "Analakely", SheetType: domain.SheetYellow, Requested: 1})
			},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "stock_exhausted", resp["code"])
			},
		},
		{
			name:           "нет поля file",
			field:          "upload",
			maxUploadSize:  1 << 20,
			mockSetup:      func(m *MockImporter) {},
			expectedStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "No file uploaded", resp["error"])
			},
		},
		{
			name:           "файл слишком большой",
			field:          "file",
			maxUploadSize:  16,
			mockSetup:      func(m *MockImporter) {},
			expectedStatus: http.StatusRequestEntityTooLarge,
			checkResponse: func(t *testing.T, resp map[string]interface{}) {
				AssertError(t, resp)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockImporter := new(MockImporter)
			tt.mockSetup(mockImporter)

			handler := NewImportHandler(mockImporter, tt.maxUploadSize, logger.NewNoop())

			body, contentType := multipartBody(t, tt.field, importCSV)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates/import", body)
			req.Header.Set("Content-Type", contentType)
			req = req.WithContext(CreateAuthContext(t, adminID, domain.RoleAdmin, nil))
			w := httptest.NewRecorder()

			handler.ImportCertificates(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			_ = json.Unmarshal(w.Body.Bytes(), &response)
			tt.checkResponse(t, response)

			mockImporter.AssertExpectations(t)
		})
	}
}
