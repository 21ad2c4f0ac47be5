package property

import (
	"time"

	"brick/pkg/domain"
)

// Status is the closed set of lifecycle states a property moves through.
type Status string

const (
	StatusNotRegistered Status = "not_registered"
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusDelisted      Status = "delisted"
	StatusRedemption    Status = "redemption"
	StatusFrozen        Status = "frozen"
)

func (s Status) String() string { return string(s) }

// Op names one lifecycle operation.
type Op string

const (
	OpRegister     Op = "register"
	OpApprove      Op = "approve"
	OpReject       Op = "reject"
	OpDelist       Op = "delist"
	OpFreeze       Op = "freeze"
	OpUnfreeze     Op = "unfreeze"
	OpToRedemption Op = "set_to_redemption"
	OpReinstate    Op = "reinstate_from_redemption"
)

// Move is the source and target status of an operation.
type Move struct {
	From Status
	To   Status
}

// operations is the only place allowed moves are defined. Each operation
// pins its source, so Approved is re-entered only through the operation
// that names the status it leaves.
var operations = map[Op]Move{
	OpRegister:     {StatusNotRegistered, StatusPending},
	OpApprove:      {StatusPending, StatusApproved},
	OpReject:       {StatusPending, StatusRejected},
	OpDelist:       {StatusApproved, StatusDelisted},
	OpFreeze:       {StatusApproved, StatusFrozen},
	OpUnfreeze:     {StatusFrozen, StatusApproved},
	OpToRedemption: {StatusApproved, StatusRedemption},
	OpReinstate:    {StatusRedemption, StatusApproved},
}

// MoveOf returns the move op performs.
func MoveOf(op Op) (Move, bool) {
	m, ok := operations[op]
	return m, ok
}

// CanTransition reports whether some operation moves from -> to.
func CanTransition(from, to Status) bool {
	for _, m := range operations {
		if m.From == from && m.To == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no operation leaves s.
func (s Status) IsTerminal() bool {
	for _, m := range operations {
		if m.From == s {
			return false
		}
	}
	return true
}

// Tradable statuses allow orders and holder transfers.
func (s Status) Tradable() bool { return s == StatusApproved }

// Redeemable statuses accept redemption requests.
func (s Status) Redeemable() bool { return s == StatusApproved || s == StatusRedemption }

// Property is a registered real-estate asset. ID is immutable and never reused.
type Property struct {
	ID           domain.PropertyID `json:"id"`
	Country      string            `json:"country"`
	MetadataURI  string            `json:"metadata_uri"`
	Status       Status            `json:"status"`
	RegisteredBy domain.Principal  `json:"registered_by"`
	RegisteredAt time.Time         `json:"registered_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// StatusChange is one step of a property's lifecycle walk.
type StatusChange struct {
	From Status           `json:"from"`
	To   Status           `json:"to"`
	Op   Op               `json:"op"`
	By   domain.Principal `json:"by"`
	At   time.Time        `json:"at"`
}
