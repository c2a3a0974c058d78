package certificate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MockInvalidator - мок сброса кэша проверки
type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	m.Called(ctx, ids)
}

type fixture struct {
	store    *memory.Store
	svc      *Service
	metrics  *metrics.Metrics
	agencyID uuid.UUID
	otherID  uuid.UUID
	admin    domain.Principal
	agent    domain.Principal
}

func newFixture(t *testing.T, stock domain.Stock, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	main := &domain.Agency{Name: "Analakely", Phone: "020 22 000 00", Stock: stock}
	other := &domain.Agency{Name: "Toamasina", Stock: domain.Stock{Yellow: 5, Red: 5, Green: 5}}
	require.NoError(t, store.Repositories().Agencies.Create(ctx, main))
	require.NoError(t, store.Repositories().Agencies.Create(ctx, other))

	m := metrics.New(prometheus.NewRegistry())
	opts = append([]Option{WithClock(func() time.Time { return day(2025, 1, 1) })}, opts...)

	return &fixture{
		store:    store,
		svc:      NewService(store, m, logger.NewNoop(), opts...),
		metrics:  m,
		agencyID: main.ID,
		otherID:  other.ID,
		admin:    domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin},
		agent:    domain.Principal{UserID: uuid.New(), Role: domain.RoleUser, AgencyID: &main.ID},
	}
}

func (f *fixture) stock(t *testing.T, agencyID uuid.UUID) domain.Stock {
	t.Helper()
	stock, err := f.store.Repositories().Agencies.GetStock(context.Background(), agencyID)
	require.NoError(t, err)
	return stock
}

func request(number int64, vehicle string, effective, expiry time.Time) IssueRequest {
	return IssueRequest{
		SheetType:     domain.SheetYellow,
		SheetNumber:   number,
		PolicyNumber:  "POL-" + vehicle,
		Holder:        "Rakoto",
		VehicleID:     vehicle,
		EffectiveDate: effective,
		ExpiryDate:    expiry,
	}
}

func TestIssue_Success(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 2})

	cert, err := f.svc.Issue(context.Background(), f.agent, request(1001, "1234 tba", day(2025, 1, 1), day(2025, 12, 31)))
	require.NoError(t, err)

	assert.Equal(t, f.agencyID, cert.AgencyID, "агентство берется из профиля сотрудника")
	assert.Equal(t, f.agent.UserID, cert.CreatorID)
	assert.Equal(t, "1234TBA", cert.VehicleID)
	assert.Equal(t, "Analakely", cert.AgencyName)
	assert.Equal(t, 1, f.stock(t, f.agencyID).Yellow)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CertificatesIssued.WithLabelValues("JAUNE")))
}

func TestIssue_CoverageBoundary(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 3})
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, f.agent, request(1, "1234TBA", day(2024, 7, 1), day(2025, 6, 30)))
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, f.agent, request(2, "1234TBA", day(2025, 6, 30), day(2026, 6, 29)))
	var conflict *domain.CoverageConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, day(2025, 6, 30).Equal(conflict.BlockingExpiry))
	assert.Equal(t, 2, f.stock(t, f.agencyID).Yellow, "отказ не списывает бланк")

	_, err = f.svc.Issue(ctx, f.agent, request(3, "1234TBA", day(2025, 7, 1), day(2026, 6, 30)))
	require.NoError(t, err)
	assert.Equal(t, 1, f.stock(t, f.agencyID).Yellow)
}

func TestIssue_CoverageAcrossAgencies(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 3})
	ctx := context.Background()

	req := request(10, "5555TAB", day(2025, 1, 1), day(2025, 12, 31))
	req.AgencyID = f.otherID
	_, err := f.svc.Issue(ctx, f.admin, req)
	require.NoError(t, err)

	_, err = f.svc.Issue(ctx, f.agent, request(11, "5555TAB", day(2025, 6, 1), day(2026, 5, 31)))
	assert.ErrorIs(t, err, domain.ErrCoverageConflict)
}

func TestIssue_StockExhausted(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 0, Red: 4})

	_, err := f.svc.Issue(context.Background(), f.agent, request(1, "1234TBA", day(2025, 1, 1), day(2025, 12, 31)))

	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.ErrorIs(t, err, domain.ErrStockExhausted)
	assert.Equal(t, "Analakely", stockErr.AgencyName)
	assert.Equal(t, domain.SheetYellow, stockErr.SheetType)

	page, err := f.svc.List(context.Background(), f.admin, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, domain.Stock{Red: 4}, f.stock(t, f.agencyID))
}

func TestIssue_DuplicateSheetNumberRollsBackStock(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 5})
	ctx := context.Background()

	_, err := f.svc.Issue(ctx, f.agent, request(42, "1111TAA", day(2025, 1, 1), day(2025, 12, 31)))
	require.NoError(t, err)
	require.Equal(t, 4, f.stock(t, f.agencyID).Yellow)

	_, err = f.svc.Issue(ctx, f.agent, request(42, "2222TAA", day(2025, 1, 1), day(2025, 12, 31)))
	assert.ErrorIs(t, err, domain.ErrDuplicateSheetNumber)
	assert.Equal(t, 4, f.stock(t, f.agencyID).Yellow, "списание откатывается вместе со вставкой")
}

func TestIssue_ConcurrentSameSheetNumber(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 10})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vehicle := "CAR" + string(rune('A'+i))
			_, err := f.svc.Issue(ctx, f.agent, request(777, vehicle, day(2025, 1, 1), day(2025, 12, 31)))
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrDuplicateSheetNumber)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 9, f.stock(t, f.agencyID).Yellow)
}

func TestIssue_Authorization(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 5})
	ctx := context.Background()

	t.Run("чужое агентство", func(t *testing.T) {
		req := request(1, "1234TBA", day(2025, 1, 1), day(2025, 12, 31))
		req.AgencyID = f.otherID
		_, err := f.svc.Issue(ctx, f.agent, req)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("сотрудник без агентства", func(t *testing.T) {
		orphan := domain.Principal{UserID: uuid.New(), Role: domain.RoleUser}
		_, err := f.svc.Issue(ctx, orphan, request(2, "1234TBA", day(2025, 1, 1), day(2025, 12, 31)))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("администратор без агентства в запросе", func(t *testing.T) {
		_, err := f.svc.Issue(ctx, f.admin, request(3, "1234TBA", day(2025, 1, 1), day(2025, 12, 31)))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("неизвестное агентство", func(t *testing.T) {
		req := request(4, "1234TBA", day(2025, 1, 1), day(2025, 12, 31))
		req.AgencyID = uuid.New()
		_, err := f.svc.Issue(ctx, f.admin, req)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestList_ScopeAndPagination(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 20})
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		vehicle := "OWN" + string(rune('A'+i))
		_, err := f.svc.Issue(ctx, f.agent, request(int64(100+i), vehicle, day(2025, 1, 1), day(2025, 1, 10+i)))
		require.NoError(t, err)
	}
	foreign := request(500, "FOREIGN", day(2025, 1, 1), day(2025, 12, 31))
	foreign.AgencyID = f.otherID
	_, err := f.svc.Issue(ctx, f.admin, foreign)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, f.agent, ListQuery{Page: 2, Limit: 5, SortBy: domain.SortSheetNumber})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 5)
	assert.Equal(t, int64(105), page.Items[0].SheetNumber)

	page, err = f.svc.List(ctx, f.admin, ListQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)
	assert.Equal(t, MaxPageSize, page.Limit)

	// Явный фильтр по чужому агентству не расширяет видимость сотрудника
	page, err = f.svc.List(ctx, f.agent, ListQuery{AgencyID: &f.otherID})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
}

func TestList_StatusFilter(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 5})
	ctx := context.Background()

	expiries := []time.Time{day(2024, 12, 31), day(2025, 1, 15), day(2025, 6, 1)}
	for i, expiry := range expiries {
		_, err := f.svc.Issue(ctx, f.agent, request(int64(i+1), "V"+string(rune('A'+i)), expiry.AddDate(-1, 0, 0), expiry))
		require.NoError(t, err)
	}

	count := func(status domain.CertificateStatus) int {
		page, err := f.svc.List(ctx, f.agent, ListQuery{Status: status})
		require.NoError(t, err)
		return page.Total
	}

	assert.Equal(t, 1, count(domain.StatusExpired))
	assert.Equal(t, 1, count(domain.StatusExpiringSoon))
	assert.Equal(t, 2, count(domain.StatusActive))
	assert.Equal(t, 3, count(""))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 5})
	ctx := context.Background()

	first, err := f.svc.Issue(ctx, f.agent, request(1, "AAA", day(2024, 1, 1), day(2024, 12, 31)))
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, f.agent, request(2, "BBB", day(2025, 1, 1), day(2025, 12, 31)))
	require.NoError(t, err)

	update := UpdateRequest{
		PolicyNumber:  "POL-NEW",
		Holder:        "Rasoa",
		VehicleID:     "BBB",
		EffectiveDate: day(2025, 1, 1),
		ExpiryDate:    day(2025, 12, 31),
	}

	t.Run("без смены авто и даты покрытие не перепроверяется", func(t *testing.T) {
		updated, err := f.svc.Update(ctx, f.agent, second.ID, update)
		require.NoError(t, err)
		assert.Equal(t, "Rasoa", updated.Holder)
		assert.Equal(t, int64(2), updated.SheetNumber)
	})

	t.Run("перенос на застрахованный автомобиль", func(t *testing.T) {
		req := update
		req.VehicleID = "BBB"
		req.EffectiveDate = day(2025, 6, 1)
		_, err := f.svc.Update(ctx, f.agent, first.ID, req)
		assert.ErrorIs(t, err, domain.ErrCoverageConflict)
	})

	t.Run("сдвиг собственной даты не конфликтует сам с собой", func(t *testing.T) {
		req := update
		req.EffectiveDate = day(2025, 2, 1)
		_, err := f.svc.Update(ctx, f.agent, second.ID, req)
		assert.NoError(t, err)
	})

	t.Run("чужой аттестат", func(t *testing.T) {
		agencyID := f.otherID
		stranger := domain.Principal{UserID: uuid.New(), Role: domain.RoleUser, AgencyID: &agencyID}
		_, err := f.svc.Update(ctx, stranger, second.ID, update)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestDelete_DoesNotRestoreStock(t *testing.T) {
	invalidator := new(MockInvalidator)
	f := newFixture(t, domain.Stock{Yellow: 1}, WithInvalidator(invalidator))
	ctx := context.Background()

	cert, err := f.svc.Issue(ctx, f.agent, request(9, "DEL", day(2025, 1, 1), day(2025, 12, 31)))
	require.NoError(t, err)

	invalidator.On("Invalidate", mock.Anything, []uuid.UUID{cert.ID}).Return().Once()

	require.NoError(t, f.svc.Delete(ctx, f.agent, cert.ID))
	assert.Equal(t, 0, f.stock(t, f.agencyID).Yellow)

	_, err = f.svc.Get(ctx, f.admin, cert.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	invalidator.AssertExpectations(t)
}

func TestVerifyAndForPrint(t *testing.T) {
	f := newFixture(t, domain.Stock{Yellow: 3})
	ctx := context.Background()

	a, err := f.svc.Issue(ctx, f.agent, request(20, "PRNA", day(2025, 1, 1), day(2025, 1, 20)))
	require.NoError(t, err)
	b, err := f.svc.Issue(ctx, f.agent, request(10, "PRNB", day(2025, 1, 1), day(2025, 12, 31)))
	require.NoError(t, err)

	v, err := f.svc.Verify(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpiringSoon, v.Status)
	assert.Equal(t, "2025-01-20", v.ExpiryDate)
	assert.Equal(t, "Analakely", v.AgencyName)

	certs, err := f.svc.ForPrint(ctx, f.agent, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, int64(10), certs[0].SheetNumber, "печать в порядке номеров бланков")

	_, err = f.svc.ForPrint(ctx, f.agent, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.svc.ForPrint(ctx, f.agent, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
