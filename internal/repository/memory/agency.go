package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/google/uuid"
)

type agencyRepository struct {
	h *handle
}

func (r *agencyRepository) Create(_ context.Context, agency *domain.Agency) error {
	return r.h.run(func(st *state) error {
		for _, existing := range st.agencies {
			if existing.Name == agency.Name {
				return domain.ErrAgencyAlreadyExists
			}
		}
		if agency.ID == uuid.Nil {
			agency.ID = uuid.New()
		}
		agency.CreatedAt = time.Now()
		agency.UpdatedAt = agency.CreatedAt
		st.agencies[agency.ID] = *agency
		return nil
	})
}

func (r *agencyRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Agency, error) {
	var out *domain.Agency
	err := r.h.run(func(st *state) error {
		a, ok := st.agencies[id]
		if !ok {
			return domain.ErrAgencyNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *agencyRepository) GetByNames(_ context.Context, names []string) (map[string]*domain.Agency, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	result := make(map[string]*domain.Agency)
	err := r.h.run(func(st *state) error {
		for _, a := range st.agencies {
			if wanted[a.Name] {
				a := a
				result[a.Name] = &a
			}
		}
		return nil
	})
	return result, err
}

func (r *agencyRepository) List(_ context.Context, scope *uuid.UUID) ([]*domain.Agency, error) {
	agencies := []*domain.Agency{}
	err := r.h.run(func(st *state) error {
		for _, a := range st.agencies {
			if scope != nil && a.ID != *scope {
				continue
			}
			a := a
			agencies = append(agencies, &a)
		}
		return nil
	})
	sort.Slice(agencies, func(i, j int) bool { return agencies[i].Name < agencies[j].Name })
	return agencies, err
}

func (r *agencyRepository) Update(_ context.Context, agency *domain.Agency) error {
	return r.h.run(func(st *state) error {
		current, ok := st.agencies[agency.ID]
		if !ok {
			return domain.ErrAgencyNotFound
		}
		for id, other := range st.agencies {
			if id != agency.ID && other.Name == agency.Name {
				return domain.ErrAgencyAlreadyExists
			}
		}
		current.Name = agency.Name
		current.Code = agency.Code
		current.Address = agency.Address
		current.Email = agency.Email
		current.Phone = agency.Phone
		current.UpdatedAt = time.Now()
		st.agencies[agency.ID] = current
		agency.Stock = current.Stock
		agency.UpdatedAt = current.UpdatedAt
		return nil
	})
}

func (r *agencyRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.h.run(func(st *state) error {
		if _, ok := st.agencies[id]; !ok {
			return domain.ErrAgencyNotFound
		}
		for _, u := range st.users {
			if u.AgencyID != nil && *u.AgencyID == id {
				return domain.ErrAgencyInUse
			}
		}
		for _, c := range st.certificates {
			if c.AgencyID == id {
				return domain.ErrAgencyInUse
			}
		}
		delete(st.agencies, id)
		return nil
	})
}

func (r *agencyRepository) GetStock(_ context.Context, id uuid.UUID) (domain.Stock, error) {
	var stock domain.Stock
	err := r.h.run(func(st *state) error {
		a, ok := st.agencies[id]
		if !ok {
			return domain.ErrAgencyNotFound
		}
		stock = a.Stock
		return nil
	})
	return stock, err
}

func (r *agencyRepository) LockForUpdate(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Agency, error) {
	locked := make(map[uuid.UUID]*domain.Agency, len(ids))
	err := r.h.run(func(st *state) error {
		for _, id := range ids {
			a, ok := st.agencies[id]
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrAgencyNotFound, id)
			}
			locked[id] = &a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

func (r *agencyRepository) AdjustStock(_ context.Context, id uuid.UUID, sheetType domain.SheetType, delta int) (domain.Stock, error) {
	if !sheetType.Valid() {
		return domain.Stock{}, domain.InvalidArgument("unknown sheet type %q", sheetType)
	}

	var stock domain.Stock
	err := r.h.run(func(st *state) error {
		a, ok := st.agencies[id]
		if !ok {
			return domain.ErrAgencyNotFound
		}
		current := a.Stock.Get(sheetType)
		if current+delta < 0 {
			stock = a.Stock
			return &domain.StockError{
				Kind:       domain.ErrInsufficientStock,
				AgencyID:   id,
				AgencyName: a.Name,
				SheetType:  sheetType,
				Requested:  -delta,
				Available:  current,
			}
		}
		if current+delta > domain.MaxStock {
			stock = a.Stock
			return domain.StockOverflow(sheetType, current, delta)
		}
		a.Stock = a.Stock.With(sheetType, current+delta)
		a.UpdatedAt = time.Now()
		st.agencies[id] = a
		stock = a.Stock
		return nil
	})
	return stock, err
}
