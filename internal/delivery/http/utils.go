package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frontandrew/attestation/internal/delivery/http/middleware"
	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// respondJSON отправляет JSON ответ
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondData отправляет успешный ответ с данными
func respondData(w http.ResponseWriter, code int, data interface{}) {
	respondJSON(w, code, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// respondError отправляет JSON ответ с ошибкой
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondFile отправляет файл на скачивание
func respondFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	disposition := "inline"
	if filename != "" {
		disposition = `attachment; filename="` + filename + `"`
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// errorStatus переводит доменную ошибку в HTTP статус
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStockExhausted), errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCoverageConflict), errors.Is(err, domain.ErrDuplicateSheetNumber):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAgencyAlreadyExists), errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrAgencyInUse), errors.Is(err, domain.ErrCannotDeleteSelf):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondServiceError отвечает на ошибку сервиса; неизвестные ошибки логируются и скрываются
func respondServiceError(w http.ResponseWriter, log logger.Logger, err error, action string) {
	respondServiceErrorWithStatus(w, log, err, action, errorStatus(err))
}

func respondServiceErrorWithStatus(w http.ResponseWriter, log logger.Logger, err error, action string, status int) {
	if status == http.StatusInternalServerError {
		log.Error("Failed to "+action, map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, status, "Failed to "+action)
		return
	}

	body := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
		"code":    domain.Kind(err),
	}

	var rowErr *domain.RowError
	if errors.As(err, &rowErr) {
		body["row"] = rowErr.Row
	}
	var stockErr *domain.StockError
	if errors.As(err, &stockErr) {
		body["details"] = map[string]interface{}{
			"agency_id":   stockErr.AgencyID,
			"agency_name": stockErr.AgencyName,
			"sheet_type":  stockErr.SheetType,
			"requested":   stockErr.Requested,
			"available":   stockErr.Available,
		}
	}
	var coverageErr *domain.CoverageConflictError
	if errors.As(err, &coverageErr) {
		body["details"] = map[string]interface{}{
			"vehicle_id":      coverageErr.VehicleID,
			"blocking_expiry": coverageErr.BlockingExpiry.Format(domain.DateLayout),
		}
	}

	respondJSON(w, status, body)
}

// decodeJSON читает тело запроса в dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// principal достает субъекта запроса, положенного AuthMiddleware
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	claims, ok := middleware.GetUserClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return domain.Principal{}, false
	}
	return claims.Principal(), true
}

// pathUUID разбирает параметр пути как UUID
func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt читает целое из query; пустое значение - def
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidArgument("%s must be an integer", key)
	}
	return v, nil
}

// queryDate читает дату из query; пустое значение - nil
func queryDate(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// queryUUIDs читает список UUID через запятую
func queryUUIDs(r *http.Request, key string) ([]uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, domain.InvalidArgument("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
