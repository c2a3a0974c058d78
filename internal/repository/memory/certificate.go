package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/google/uuid"
)

type certificateRepository struct {
	h *handle
}

func (st *state) hydrateCertificate(c domain.Certificate) *domain.Certificate {
	if a, ok := st.agencies[c.AgencyID]; ok {
		c.AgencyName = a.Name
		c.AgencyPhone = a.Phone
	}
	if u, ok := st.users[c.CreatorID]; ok {
		c.CreatorName = u.Name
	}
	return &c
}

func (st *state) sheetNumberTaken(number int64) bool {
	for _, c := range st.certificates {
		if c.SheetNumber == number {
			return true
		}
	}
	return false
}

func (st *state) insertCertificate(cert *domain.Certificate) {
	if cert.ID == uuid.Nil {
		cert.ID = uuid.New()
	}
	cert.CreatedAt = time.Now()
	cert.EditedAt = cert.CreatedAt
	stored := *cert
	stored.AgencyName, stored.AgencyPhone, stored.CreatorName = "", "", ""
	st.certificates[cert.ID] = stored
}

func (r *certificateRepository) Create(_ context.Context, cert *domain.Certificate) error {
	return r.h.run(func(st *state) error {
		if _, ok := st.agencies[cert.AgencyID]; !ok {
			return domain.ErrAgencyNotFound
		}
		if st.sheetNumberTaken(cert.SheetNumber) {
			return fmt.Errorf("%w: %d", domain.ErrDuplicateSheetNumber, cert.SheetNumber)
		}
		st.insertCertificate(cert)
		return nil
	})
}

func (r *certificateRepository) CreateMany(_ context.Context, certs []*domain.Certificate) ([]int64, error) {
	var inserted []int64
	err := r.h.run(func(st *state) error {
		for _, cert := range certs {
			if _, ok := st.agencies[cert.AgencyID]; !ok {
				return domain.ErrAgencyNotFound
			}
		}
		for _, cert := range certs {
			if st.sheetNumberTaken(cert.SheetNumber) {
				continue
			}
			st.insertCertificate(cert)
			inserted = append(inserted, cert.SheetNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *certificateRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Certificate, error) {
	var out *domain.Certificate
	err := r.h.run(func(st *state) error {
		c, ok := st.certificates[id]
		if !ok {
			return domain.ErrCertificateNotFound
		}
		out = st.hydrateCertificate(c)
		return nil
	})
	return out, err
}

func (r *certificateRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Certificate, error) {
	return r.List(ctx, domain.CertificateFilter{
		Predicates: []domain.Predicate{domain.IDIn{IDs: ids}},
		SortBy:     domain.SortSheetNumber,
	})
}

func (r *certificateRepository) Update(_ context.Context, cert *domain.Certificate) error {
	return r.h.run(func(st *state) error {
		current, ok := st.certificates[cert.ID]
		if !ok {
			return domain.ErrCertificateNotFound
		}
		if _, ok := st.agencies[cert.AgencyID]; !ok {
			return domain.ErrAgencyNotFound
		}
		cert.SheetNumber = current.SheetNumber
		cert.CreatorID = current.CreatorID
		cert.CreatedAt = current.CreatedAt
		cert.EditedAt = time.Now()
		stored := *cert
		stored.AgencyName, stored.AgencyPhone, stored.CreatorName = "", "", ""
		st.certificates[cert.ID] = stored
		return nil
	})
}

func (r *certificateRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.h.run(func(st *state) error {
		if _, ok := st.certificates[id]; !ok {
			return domain.ErrCertificateNotFound
		}
		delete(st.certificates, id)
		return nil
	})
}

func (r *certificateRepository) matching(filter domain.CertificateFilter) ([]*domain.Certificate, error) {
	var certs []*domain.Certificate
	err := r.h.run(func(st *state) error {
		for _, c := range st.certificates {
			if filter.Matches(&c) {
				certs = append(certs, st.hydrateCertificate(c))
			}
		}
		return nil
	})
	return certs, err
}

func (r *certificateRepository) List(_ context.Context, filter domain.CertificateFilter) ([]*domain.Certificate, error) {
	certs, err := r.matching(filter)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(certs, func(i, j int) bool {
		a, b := certs[i], certs[j]
		if cmp := compareBy(filter.SortBy, a, b); cmp != 0 {
			if filter.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return a.SheetNumber < b.SheetNumber
	})

	return paginate(certs, filter.Limit, filter.Offset), nil
}

func compareBy(field domain.SortField, a, b *domain.Certificate) int {
	switch field {
	case domain.SortEffectiveDate:
		return a.EffectiveDate.Compare(b.EffectiveDate)
	case domain.SortExpiryDate:
		return a.ExpiryDate.Compare(b.ExpiryDate)
	case domain.SortCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case domain.SortHolder:
		return strings.Compare(a.Holder, b.Holder)
	}
	switch {
	case a.SheetNumber < b.SheetNumber:
		return -1
	case a.SheetNumber > b.SheetNumber:
		return 1
	}
	return 0
}

func (r *certificateRepository) Count(_ context.Context, filter domain.CertificateFilter) (int, error) {
	certs, err := r.matching(filter)
	return len(certs), err
}

func (r *certificateRepository) CountByAgency(_ context.Context, agencyID uuid.UUID) (int, error) {
	count := 0
	err := r.h.run(func(st *state) error {
		for _, c := range st.certificates {
			if c.AgencyID == agencyID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *certificateRepository) LatestExpiry(_ context.Context, vehicleID string, exclude *uuid.UUID) (time.Time, bool, error) {
	var latest time.Time
	found := false
	err := r.h.run(func(st *state) error {
		for _, c := range st.certificates {
			if c.VehicleID != vehicleID || (exclude != nil && c.ID == *exclude) {
				continue
			}
			if !found || c.ExpiryDate.After(latest) {
				latest = c.ExpiryDate
				found = true
			}
		}
		return nil
	})
	return latest, found, err
}

// LockVehicle - транзакции хранилища уже выполняются по одной
func (r *certificateRepository) LockVehicle(context.Context, string) error {
	return nil
}

func (r *certificateRepository) ExistingSheetNumbers(_ context.Context, numbers []int64) (map[int64]bool, error) {
	wanted := make(map[int64]bool, len(numbers))
	for _, n := range numbers {
		wanted[n] = true
	}

	existing := make(map[int64]bool)
	err := r.h.run(func(st *state) error {
		for _, c := range st.certificates {
			if wanted[c.SheetNumber] {
				existing[c.SheetNumber] = true
			}
		}
		return nil
	})
	return existing, err
}
