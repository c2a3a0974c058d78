package http

import (
	"context"
	"net/http"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/usecase/agency"
	"github.com/frontandrew/attestation/internal/usecase/ledger"
	"github.com/google/uuid"
)

// AgencyService - администрирование агентств
type AgencyService interface {
	List(ctx context.Context, p domain.Principal) ([]*domain.Agency, error)
	Create(ctx context.Context, p domain.Principal, req agency.CreateRequest) (*domain.Agency, error)
	Update(ctx context.Context, p domain.Principal, id uuid.UUID, req agency.UpdateRequest) (*domain.Agency, error)
	Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

// StockService - учет бланков
type StockService interface {
	Stocks(ctx context.Context, p domain.Principal) ([]*domain.Agency, error)
	GetStock(ctx context.Context, p domain.Principal, agencyID uuid.UUID) (domain.Stock, error)
	Increment(ctx context.Context, p domain.Principal, req ledger.StockMovement) (domain.Stock, error)
	Decrement(ctx context.Context, p domain.Principal, req ledger.StockMovement) (domain.Stock, error)
}

// AgencyHandler обрабатывает запросы по агентствам и их остаткам бланков
type AgencyHandler struct {
	agencyService AgencyService
	stockService  StockService
	logger        logger.Logger
}

// NewAgencyHandler создает новый handler
func NewAgencyHandler(agencyService AgencyService, stockService StockService, logger logger.Logger) *AgencyHandler {
	return &AgencyHandler{
		agencyService: agencyService,
		stockService:  stockService,
		logger:        logger,
	}
}

// ListAgencies возвращает агентства, видимые пользователю
// GET /api/v1/agencies
func (h *AgencyHandler) ListAgencies(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	agencies, err := h.agencyService.List(r.Context(), p)
	if err != nil {
		respondServiceError(w, h.logger, err, "list agencies")
		return
	}

	respondData(w, http.StatusOK, agencies)
}

// CreateAgency создает агентство с начальными остатками
// POST /api/v1/agencies
func (h *AgencyHandler) CreateAgency(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req agency.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.agencyService.Create(r.Context(), p, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create agency")
		return
	}

	respondData(w, http.StatusCreated, created)
}

// UpdateAgency меняет контактные данные агентства
// PUT /api/v1/agencies/{id}
func (h *AgencyHandler) UpdateAgency(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req agency.UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.agencyService.Update(r.Context(), p, id, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update agency")
		return
	}

	respondData(w, http.StatusOK, updated)
}

// DeleteAgency удаляет агентство без пользователей и аттестатов
// DELETE /api/v1/agencies/{id}
func (h *AgencyHandler) DeleteAgency(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.agencyService.Delete(r.Context(), p, id); err != nil {
		respondServiceError(w, h.logger, err, "delete agency")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Agency deleted",
	})
}

// ListStocks возвращает остатки бланков по агентствам
// GET /api/v1/stocks
func (h *AgencyHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	agencies, err := h.stockService.Stocks(r.Context(), p)
	if err != nil {
		respondServiceError(w, h.logger, err, "list stocks")
		return
	}

	respondData(w, http.StatusOK, agencies)
}

// GetStock возвращает остатки одного агентства; чужое агентство - 404
// GET /api/v1/stocks/{id}
func (h *AgencyHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	agencyID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	stock, err := h.stockService.GetStock(r.Context(), p, agencyID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get stock")
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"agency_id": agencyID,
		"stock":     stock,
	})
}

// IncrementStock оформляет приход бланков
// POST /api/v1/stocks/increment
func (h *AgencyHandler) IncrementStock(w http.ResponseWriter, r *http.Request) {
	h.moveStock(w, r, h.stockService.Increment)
}

// DecrementStock списывает бланки (корректировка)
// POST /api/v1/stocks/decrement
func (h *AgencyHandler) DecrementStock(w http.ResponseWriter, r *http.Request) {
	h.moveStock(w, r, h.stockService.Decrement)
}

func (h *AgencyHandler) moveStock(
	w http.ResponseWriter,
	r *http.Request,
	move func(context.Context, domain.Principal, ledger.StockMovement) (domain.Stock, error),
) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req ledger.StockMovement
	if !decodeJSON(w, r, &req) {
		return
	}
	sheetType, err := domain.ParseSheetType(string(req.SheetType))
	if err != nil {
		respondServiceError(w, h.logger, err, "update stock")
		return
	}
	req.SheetType = sheetType

	stock, err := move(r.Context(), p, req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update stock")
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"agency_id": req.AgencyID,
		"stock":     stock,
	})
}
