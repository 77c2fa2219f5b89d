package services

import (
	"context"
	"errors"
	"testing"

	"checkout-service/internal/domain"
	"checkout-service/internal/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCartSnapshotter_Snapshot(t *testing.T) {
	tests := []struct {
		name        string
		setupMocks  func(*mocks.MockCartRepository, *mocks.MockProductRepository)
		expectedErr error
		expectedMsg string
		expectedLen int
	}{
		{
			name: "prices every line from the catalog",
			setupMocks: func(carts *mocks.MockCartRepository, products *mocks.MockProductRepository) {
				carts.On("GetItems", mock.Anything, TestUserID).Return([]domain.CartItem{
					{ProductID: 1, Quantity: 2},
					{ProductID: 2, Quantity: 1},
				}, nil)
				products.On("GetProduct", mock.Anything, uint64(1)).Return(&domain.Product{ID: 1, Name: "Mug", Price: decimal.RequireFromString("9.50")}, nil)
				products.On("GetProduct", mock.Anything, uint64(2)).Return(&domain.Product{ID: 2, Name: "Lamp", Price: decimal.RequireFromString("40.00")}, nil)
			},
			expectedLen: 2,
		},
		{
			name: "empty cart",
			setupMocks: func(carts *mocks.MockCartRepository, products *mocks.MockProductRepository) {
				carts.On("GetItems", mock.Anything, TestUserID).Return([]domain.CartItem{}, nil)
			},
			expectedErr: domain.ErrEmptyCart,
		},
		{
			name: "non-positive quantity",
			setupMocks: func(carts *mocks.MockCartRepository, products *mocks.MockProductRepository) {
				carts.On("GetItems", mock.Anything, TestUserID).Return([]domain.CartItem{{ProductID: 1, Quantity: 0}}, nil)
			},
			expectedErr: domain.ErrInvalidInput,
		},
		{
			name: "catalog failure",
			setupMocks: func(carts *mocks.MockCartRepository, products *mocks.MockProductRepository) {
				carts.On("GetItems", mock.Anything, TestUserID).Return([]domain.CartItem{{ProductID: 1, Quantity: 1}}, nil)
				products.On("GetProduct", mock.Anything, uint64(1)).Return(nil, errors.New("connection refused"))
			},
			expectedMsg: "price product 1: connection refused",
		},
		{
			name: "cart read failure",
			setupMocks: func(carts *mocks.MockCartRepository, products *mocks.MockProductRepository) {
				carts.On("GetItems", mock.Anything, TestUserID).Return(nil, errors.New("database error"))
			},
			expectedMsg: "load cart: database error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &mocks.MockCartRepository{}
			products := &mocks.MockProductRepository{}
			tt.setupMocks(carts, products)
			clock := newFakeClock()

			snap, err := NewCartSnapshotter(carts, products, clock).Snapshot(context.Background(), TestUserID)

			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, snap)
			case tt.expectedMsg != "":
				assert.EqualError(t, err, tt.expectedMsg)
				assert.Nil(t, snap)
			default:
				require.NoError(t, err)
				require.Len(t, snap.Items, tt.expectedLen)
				assert.Equal(t, uint64(1), snap.Items[0].ProductID)
				assert.Equal(t, "Mug", snap.Items[0].Name)
				assert.True(t, snap.Items[1].UnitPrice.Equal(decimal.RequireFromString("40.00")))
				assert.Equal(t, clock.Now(), snap.CapturedAt)
			}
			products.AssertExpectations(t)
		})
	}
}

func TestStockLedger_RejectsNonPositiveQuantities(t *testing.T) {
	ledger := NewStockLedger(&mocks.MockProductRepository{})

	assert.ErrorIs(t, ledger.Reserve(context.Background(), 1, 0), domain.ErrInvalidInput)
	assert.ErrorIs(t, ledger.Release(context.Background(), 1, -2), domain.ErrInvalidInput)
}

func TestStockLedger_ReleaseLinesContinuesPastFailures(t *testing.T) {
	products := &mocks.MockProductRepository{}
	products.On("IncrementStock", mock.Anything, uint64(1), int64(2)).Return(domain.ErrNotFound)
	products.On("IncrementStock", mock.Anything, uint64(2), int64(1)).Return(nil)

	err := NewStockLedger(products).ReleaseLines(context.Background(), "JW-1", []domain.LineItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	products.AssertExpectations(t)
}

func TestOrderNumberGenerator_Next(t *testing.T) {
	g := NewOrderNumberGenerator(newFakeClock(), 9998)

	assert.Equal(t, "JW-20260102103000-9999", g.Next())
	assert.Equal(t, "JW-20260102103000-0000", g.Next())
	assert.Equal(t, "JW-20260102103000-0001", g.Next())
}
