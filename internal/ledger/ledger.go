package ledger

import (
	"context"
	"time"

	"brick/pkg/domain"
)

// Ledger moves payment assets. Escrow holds are plain transfers into the
// reserved escrow principals and releases are transfers out of them.
type Ledger interface {
	Transfer(ctx context.Context, asset domain.Asset, from, to domain.Principal, amount uint64) (Receipt, error)
	BalanceOf(ctx context.Context, asset domain.Asset, principal domain.Principal) (uint64, error)
}

// Receipt acknowledges one settled transfer.
type Receipt struct {
	Sequence  uint64           `json:"sequence"`
	Asset     domain.Asset     `json:"asset"`
	From      domain.Principal `json:"from"`
	To        domain.Principal `json:"to"`
	Amount    uint64           `json:"amount"`
	SettledAt time.Time        `json:"settled_at"`
}
