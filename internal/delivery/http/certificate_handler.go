package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/export"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/usecase/certificate"
	"github.com/frontandrew/attestation/internal/usecase/coverage"
	"github.com/google/uuid"
)

// CertificateService - операции с аттестатами
type CertificateService interface {
	Issue(ctx context.Context, p domain.Principal, req certificate.IssueRequest) (*domain.Certificate, error)
	Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Certificate, error)
	List(ctx context.Context, p domain.Principal, q certificate.ListQuery) (*certificate.Page, error)
	Export(ctx context.Context, p domain.Principal, q certificate.ListQuery) ([]*domain.Certificate, error)
	ForPrint(ctx context.Context, p domain.Principal, ids []uuid.UUID) ([]*domain.Certificate, error)
	Update(ctx context.Context, p domain.Principal, id uuid.UUID, req certificate.UpdateRequest) (*domain.Certificate, error)
	Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error
	Verify(ctx context.Context, id uuid.UUID) (*certificate.Verification, error)
	Today() time.Time
}

// CoverageChecker - справочная проверка покрытия
type CoverageChecker interface {
	Check(ctx context.Context, p domain.Principal, vehicleID string, effective time.Time) (coverage.Result, error)
}

// DocumentRenderer собирает печатный PDF
type DocumentRenderer interface {
	Render(certs []*domain.Certificate) ([]byte, error)
}

// CertificateHandler обрабатывает запросы по аттестатам
type CertificateHandler struct {
	certificateService CertificateService
	coverage           CoverageChecker
	renderer           DocumentRenderer
	logger             logger.Logger
}

// NewCertificateHandler создает новый handler
func NewCertificateHandler(
	certificateService CertificateService,
	coverage CoverageChecker,
	renderer DocumentRenderer,
	logger logger.Logger,
) *CertificateHandler {
	return &CertificateHandler{
		certificateService: certificateService,
		coverage:           coverage,
		renderer:           renderer,
		logger:             logger,
	}
}

// certificateBody - тело запроса выдачи и редактирования; даты строками YYYY-MM-DD или DD/MM/YYYY
type certificateBody struct {
	AgencyID      *uuid.UUID `json:"agency_id,omitempty"`
	SheetType     string     `json:"sheet_type"`
	SheetNumber   int64      `json:"sheet_number"`
	PolicyNumber  string     `json:"policy_number"`
	Holder        string     `json:"holder"`
	Address       string     `json:"address"`
	VehicleID     string     `json:"vehicle_id"`
	Brand         string     `json:"brand"`
	Usage         string     `json:"usage"`
	Seats         int        `json:"seats"`
	EffectiveDate string     `json:"effective_date"`
	ExpiryDate    string     `json:"expiry_date"`
}

func (b certificateBody) dates() (time.Time, time.Time, error) {
	effective, err := domain.ParseDate(b.EffectiveDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	expiry, err := domain.ParseDate(b.ExpiryDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return effective, expiry, nil
}

func (b certificateBody) issueRequest() (certificate.IssueRequest, error) {
	sheetType, err := domain.ParseSheetType(b.SheetType)
	if err != nil {
		return certificate.IssueRequest{}, err
	}
	effective, expiry, err := b.dates()
	if err != nil {
		return certificate.IssueRequest{}, err
	}

	req := certificate.IssueRequest{
		SheetType:     sheetType,
		SheetNumber:   b.SheetNumber,
		PolicyNumber:  b.PolicyNumber,
		Holder:        b.Holder,
		Address:       b.Address,
		VehicleID:     b.VehicleID,
		Brand:         b.Brand,
		Usage:         b.Usage,
		Seats:         b.Seats,
		EffectiveDate: effective,
		ExpiryDate:    expiry,
	}
	if b.AgencyID != nil {
		req.AgencyID = *b.AgencyID
	}
	return req, nil
}

func (b certificateBody) updateRequest() (certificate.UpdateRequest, error) {
	effective, expiry, err := b.dates()
	if err != nil {
		return certificate.UpdateRequest{}, err
	}
	return certificate.UpdateRequest{
		PolicyNumber:  b.PolicyNumber,
		Holder:        b.Holder,
		Address:       b.Address,
		VehicleID:     b.VehicleID,
		Brand:         b.Brand,
		Usage:         b.Usage,
		Seats:         b.Seats,
		EffectiveDate: effective,
		ExpiryDate:    expiry,
	}, nil
}

// listQuery разбирает фильтры списка и выгрузки
func listQuery(r *http.Request) (certificate.ListQuery, error) {
	values := r.URL.Query()
	q := certificate.ListQuery{Search: strings.TrimSpace(values.Get("search"))}

	if raw := values.Get("agency_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, domain.InvalidArgument("invalid agency_id")
		}
		q.AgencyID = &id
	}

	status, ok, err := domain.ParseStatus(values.Get("status"))
	if err != nil {
		return q, err
	}
	if ok {
		q.Status = status
	}

	ranges := []struct {
		target *certificate.DateRange
		prefix string
	}{
		{&q.Effective, "effective"},
		{&q.Expiry, "expiry"},
		{&q.Created, "created"},
	}
	for _, rng := range ranges {
		if rng.target.From, err = queryDate(r, rng.prefix+"_from"); err != nil {
			return q, err
		}
		if rng.target.To, err = queryDate(r, rng.prefix+"_to"); err != nil {
			return q, err
		}
	}

	if q.IDs, err = queryUUIDs(r, "ids"); err != nil {
		return q, err
	}

	if raw := values.Get("sort"); raw != "" {
		if q.SortBy, err = domain.ParseSortField(raw); err != nil {
			return q, err
		}
		q.Desc = strings.EqualFold(values.Get("order"), "desc")
	}

	if q.Page, err = queryInt(r, "page", 1); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(r, "limit", certificate.DefaultPageSize); err != nil {
		return q, err
	}

	return q, nil
}

// ListCertificates возвращает страницу аттестатов
// GET /api/v1/certificates
func (h *CertificateHandler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q, err := listQuery(r)
	if err != nil {
		respondServiceError(w, h.logger, err, "list certificates")
		return
	}

	page, err := h.certificateService.List(r.Context(), p, q)
	if err != nil {
		respondServiceError(w, h.logger, err, "list certificates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"data":        page.Items,
		"total":       page.Total,
		"page":        page.Page,
		"limit":       page.Limit,
		"total_pages": page.TotalPages,
	})
}

// IssueCertificate выдает аттестат
// POST /api/v1/certificates
func (h *CertificateHandler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var body certificateBody
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := body.issueRequest()
	if err != nil {
		respondServiceError(w, h.logger, err, "issue certificate")
		return
	}

	cert, err := h.certificateService.Issue(r.Context(), p, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "issue certificate")
		return
	}

	respondData(w, http.StatusCreated, cert)
}

// GetCertificate возвращает аттестат
// GET /api/v1/certificates/{id}
func (h *CertificateHandler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	cert, err := h.certificateService.Get(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get certificate")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    cert,
		"status":  cert.Status(h.certificateService.Today()),
	})
}

// UpdateCertificate меняет аттестат (кроме номера бланка, типа и агентства)
// PUT /api/v1/certificates/{id}
func (h *CertificateHandler) UpdateCertificate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var body certificateBody
	if !decodeJSON(w, r, &body) {
		return
	}
	req, err := body.updateRequest()
	if err != nil {
		respondServiceError(w, h.logger, err, "update certificate")
		return
	}

	cert, err := h.certificateService.Update(r.Context(), p, id, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update certificate")
		return
	}

	respondData(w, http.StatusOK, cert)
}

// DeleteCertificate удаляет аттестат; бланк в остатки не возвращается
// DELETE /api/v1/certificates/{id}
func (h *CertificateHandler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.certificateService.Delete(r.Context(), p, id); err != nil {
		respondServiceError(w, h.logger, err, "delete certificate")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Certificate deleted",
	})
}

// CheckCoverage - справочная проверка для формы выдачи
// GET /api/v1/certificates/coverage?vehicle_id=&effective_date=
func (h *CertificateHandler) CheckCoverage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	effective, err := domain.ParseDate(r.URL.Query().Get("effective_date"))
	if err != nil {
		respondServiceError(w, h.logger, err, "check coverage")
		return
	}

	result, err := h.coverage.Check(r.Context(), p, r.URL.Query().Get("vehicle_id"), effective)
	if err != nil {
		respondServiceError(w, h.logger, err, "check coverage")
		return
	}

	data := map[string]interface{}{
		"vehicle_id": result.VehicleID,
		"conflict":   result.Conflict,
	}
	if result.Conflict {
		data["blocking_expiry"] = result.BlockingExpiry.Format(domain.DateLayout)
		data["message"] = result.Err().Error()
	}
	respondData(w, http.StatusOK, data)
}

// ExportCertificates выгружает отфильтрованные аттестаты
// GET /api/v1/certificates/export?format=csv|xlsx&...
func (h *CertificateHandler) ExportCertificates(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondServiceError(w, h.logger, err, "export certificates")
		return
	}
	q, err := listQuery(r)
	if err != nil {
		respondServiceError(w, h.logger, err, "export certificates")
		return
	}

	certs, err := h.certificateService.Export(r.Context(), p, q)
	if err != nil {
		respondServiceError(w, h.logger, err, "export certificates")
		return
	}

	today := h.certificateService.Today()
	body, err := export.Write(format, certs, today)
	if err != nil {
		respondServiceError(w, h.logger, err, "export certificates")
		return
	}

	respondFile(w, format.ContentType(), format.Filename(today), body)
}

// PrintCertificates возвращает PDF выбранных аттестатов
// GET /api/v1/certificates/print?ids=a,b,c
func (h *CertificateHandler) PrintCertificates(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	ids, err := queryUUIDs(r, "ids")
	if err != nil {
		respondServiceError(w, h.logger, err, "print certificates")
		return
	}

	certs, err := h.certificateService.ForPrint(r.Context(), p, ids)
	if err != nil {
		respondServiceError(w, h.logger, err, "print certificates")
		return
	}

	h.renderPDF(w, certs, "")
}

// CertificatePDF возвращает PDF одного аттестата
// GET /api/v1/certificates/{id}/pdf
func (h *CertificateHandler) CertificatePDF(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	cert, err := h.certificateService.Get(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "render certificate")
		return
	}

	h.renderPDF(w, []*domain.Certificate{cert}, "")
}

func (h *CertificateHandler) renderPDF(w http.ResponseWriter, certs []*domain.Certificate, filename string) {
	body, err := h.renderer.Render(certs)
	if err != nil {
		respondServiceError(w, h.logger, err, "render certificates")
		return
	}
	respondFile(w, "application/pdf", filename, body)
}

// VerifyCertificate - публичная проверка аттестата по ссылке с бланка
// GET /verify/{id}
func (h *CertificateHandler) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	verification, err := h.certificateService.Verify(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "verify certificate")
		return
	}

	respondData(w, http.StatusOK, verification)
}
