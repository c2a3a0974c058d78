package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/frontandrew/attestation/internal/repository"
	"github.com/frontandrew/attestation/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgency(t *testing.T, store *memory.Store, stock domain.Stock) uuid.UUID {
	t.Helper()
	a := &domain.Agency{Name: "Agence " + uuid.NewString()[:8], Stock: stock}
	require.NoError(t, store.Repositories().Agencies.Create(context.Background(), a))
	return a.ID
}

var admin = domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin}

func TestIncrementDecrement_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agencyID := newAgency(t, store, domain.Stock{Yellow: 4})
	agencies := store.Repositories().Agencies

	stock, err := Increment(ctx, agencies, agencyID, domain.SheetYellow, 6)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Yellow)

	stock, err = Decrement(ctx, agencies, agencyID, domain.SheetYellow, 6)
	require.NoError(t, err)
	assert.Equal(t, domain.Stock{Yellow: 4}, stock)
}

func TestDecrement_Insufficient(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agencyID := newAgency(t, store, domain.Stock{Red: 2})
	agencies := store.Repositories().Agencies

	_, err := Decrement(ctx, agencies, agencyID, domain.SheetRed, 3)

	var stockErr *domain.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)

	current, err := agencies.GetStock(ctx, agencyID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Red, "счетчик не меняется при отказе")
}

func TestMovement_InvalidArguments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agencyID := newAgency(t, store, domain.Stock{})
	agencies := store.Repositories().Agencies

	tests := []struct {
		name      string
		sheetType domain.SheetType
		amount    int
	}{
		{"ноль", domain.SheetGreen, 0},
		{"отрицательное", domain.SheetGreen, -5},
		{"неизвестный тип", "BLEU", 1},
		{"больше предела счетчика", domain.SheetGreen, domain.MaxStock + 1},
		{"переполнение int", domain.SheetGreen, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Increment(ctx, agencies, agencyID, tt.sheetType, tt.amount)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			_, err = Decrement(ctx, agencies, agencyID, tt.sheetType, tt.amount)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}

	_, err := Increment(ctx, agencies, uuid.New(), domain.SheetGreen, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIncrement_CounterCeiling(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agencyID := newAgency(t, store, domain.Stock{Yellow: 10})
	agencies := store.Repositories().Agencies

	_, err := Increment(ctx, agencies, agencyID, domain.SheetYellow, domain.MaxStock)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)

	stock, err := agencies.GetStock(ctx, agencyID)
	require.NoError(t, err)
	assert.Equal(t, 10, stock.Yellow)

	stock, err = Increment(ctx, agencies, agencyID, domain.SheetYellow, domain.MaxStock-10)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxStock, stock.Yellow)
}

func TestDecrement_ConcurrentNeverNegative(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agencyID := newAgency(t, store, domain.Stock{Green: 10})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.RunInTx(ctx, func(repos repository.Repositories) error {
				_, err := Decrement(ctx, repos.Agencies, agencyID, domain.SheetGreen, 1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	stock, err := store.Repositories().Agencies.GetStock(ctx, agencyID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Green)
}

func TestService_Authorization(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	agencyID := newAgency(t, store, domain.Stock{Yellow: 1})
	otherID := newAgency(t, store, domain.Stock{Yellow: 7})
	svc := NewService(store, nil, logger.NewNoop())

	agent := domain.Principal{UserID: uuid.New(), Role: domain.RoleUser, AgencyID: &agencyID}

	t.Run("сотрудник не пополняет остатки", func(t *testing.T) {
		_, err := svc.Increment(ctx, agent, StockMovement{AgencyID: agencyID, SheetType: domain.SheetYellow, Amount: 5})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("сотрудник видит только свое агентство", func(t *testing.T) {
		agencies, err := svc.Stocks(ctx, agent)
		require.NoError(t, err)
		require.Len(t, agencies, 1)
		assert.Equal(t, agencyID, agencies[0].ID)

		_, err = svc.GetStock(ctx, agent, otherID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("администратор пополняет и списывает", func(t *testing.T) {
		stock, err := svc.Increment(ctx, admin, StockMovement{AgencyID: otherID, SheetType: domain.SheetYellow, Amount: 3})
		require.NoError(t, err)
		assert.Equal(t, 10, stock.Yellow)

		_, err = svc.Decrement(ctx, admin, StockMovement{AgencyID: otherID, SheetType: domain.SheetYellow, Amount: 11})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		stock, err = svc.GetStock(ctx, admin, otherID)
		require.NoError(t, err)
		assert.Equal(t, 10, stock.Yellow)
	})
}
