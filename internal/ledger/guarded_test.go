package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"brick/internal/ledger"
	"brick/internal/ledger/mocks"
	"brick/pkg/domain"
	"brick/pkg/platform/circuit"
)

const (
	usdc  = domain.Asset("USDC")
	alice = domain.Principal("alice")
	bob   = domain.Principal("bob")
)

func TestGuardedOpensOnOutages(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockLedger(ctrl)
	g := ledger.NewGuarded(inner, circuit.New("ledger", circuit.WithFailureThreshold(2)))
	ctx := context.Background()

	outage := errors.New("connection reset")
	inner.EXPECT().Transfer(gomock.Any(), usdc, alice, bob, uint64(10)).Return(ledger.Receipt{}, outage).Times(2)

	_, err := g.Transfer(ctx, usdc, alice, bob, 10)
	assert.ErrorIs(t, err, outage)
	_, err = g.Transfer(ctx, usdc, alice, bob, 10)
	assert.ErrorIs(t, err, outage)

	// Open: the inner ledger is not called again.
	_, err = g.Transfer(ctx, usdc, alice, bob, 10)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
	_, err = g.BalanceOf(ctx, usdc, alice)
	assert.ErrorIs(t, err, ledger.ErrUnavailable)
}

func TestGuardedIgnoresBusinessRejections(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockLedger(ctrl)
	breaker := circuit.New("ledger", circuit.WithFailureThreshold(1))
	g := ledger.NewGuarded(inner, breaker)

	inner.EXPECT().Transfer(gomock.Any(), usdc, alice, bob, uint64(10)).Return(ledger.Receipt{}, ledger.ErrInsufficientFunds)
	inner.EXPECT().BalanceOf(gomock.Any(), usdc, alice).Return(uint64(5), nil)

	_, err := g.Transfer(context.Background(), usdc, alice, bob, 10)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.False(t, breaker.IsOpen())

	bal, err := g.BalanceOf(context.Background(), usdc, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), bal)
}
