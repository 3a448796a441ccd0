// Package mocks contains testify mocks of the exchange collaborators.
package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

// ExchangeClient is a mock of the exchange client capability set.
type ExchangeClient struct {
	mock.Mock
}

// NewExchangeClient creates a mock and registers expectation checks on cleanup.
func NewExchangeClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *ExchangeClient {
	m := &ExchangeClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ExchangeClient) GetTickerPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *ExchangeClient) PlaceLimitOrder(ctx context.Context, pair domain.Pair, side domain.Side, price, size decimal.Decimal) (*domain.Fill, error) {
	args := m.Called(ctx, pair, side, price, size)
	var fill *domain.Fill
	if v := args.Get(0); v != nil {
		fill = v.(*domain.Fill)
	}
	return fill, args.Error(1)
}

func (m *ExchangeClient) ListAccountBalances(ctx context.Context, accountType string) ([]domain.Balance, error) {
	args := m.Called(ctx, accountType)
	var balances []domain.Balance
	if v := args.Get(0); v != nil {
		balances = v.([]domain.Balance)
	}
	return balances, args.Error(1)
}
