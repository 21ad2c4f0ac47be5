package token

import (
	"time"

	"brick/pkg/domain"
)

// Token is the fungible ownership token of one property.
type Token struct {
	PropertyID  domain.PropertyID `json:"property_id"`
	Symbol      string            `json:"symbol"`
	TotalSupply uint64            `json:"total_supply"`
	IssuedBy    domain.Principal  `json:"issued_by"`
	IssuedAt    time.Time         `json:"issued_at"`
}

// Holding is one non-zero balance.
type Holding struct {
	Holder  domain.Principal `json:"holder"`
	Balance uint64           `json:"balance"`
}

type balanceKey struct {
	PropertyID domain.PropertyID `json:"property_id"`
	Holder     domain.Principal  `json:"holder"`
}

// tally is maintained alongside balances so the supply check never scans.
type tally struct {
	Sum     uint64 `json:"sum"`
	Holders uint64 `json:"holders"`
}
