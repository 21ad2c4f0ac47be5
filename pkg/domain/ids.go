// Package domain holds the typed identifiers shared by every settlement
// component. Typed ids keep a property id from being passed where an order id
// is expected and give trust-boundary parsing a single home.
package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "brick/pkg/domain-errors"
)

const (
	maxPrincipalLen  = 128
	maxPropertyIDLen = 64
	maxAssetLen      = 16

	// ReservedPrincipalPrefix marks component-owned custody accounts. External
	// identities can never resolve to one of these.
	ReservedPrincipalPrefix = "escrow:"
)

// Principal is a caller identity as resolved by the identity provider.
type Principal string

// PropertyID is the caller supplied, immutable property identifier.
type PropertyID string

// Asset is a payment asset ticker (e.g. USDC).
type Asset string

// OrderID, RedemptionID and DistributionID are monotonic and never reused.
type (
	OrderID        uint64
	RedemptionID   uint64
	DistributionID uint64
)

// Custody accounts owned by the marketplace and settlement components.
const (
	EscrowMarketplace Principal = "escrow:marketplace"
	EscrowRedemption  Principal = "escrow:redemption"
	EscrowRewards     Principal = "escrow:rewards"
)

func (p Principal) String() string  { return string(p) }
func (p Principal) IsZero() bool    { return p == "" }
func (p PropertyID) String() string { return string(p) }
func (a Asset) String() string      { return string(a) }

func (id OrderID) String() string        { return strconv.FormatUint(uint64(id), 10) }
func (id RedemptionID) String() string   { return strconv.FormatUint(uint64(id), 10) }
func (id DistributionID) String() string { return strconv.FormatUint(uint64(id), 10) }

// IsReserved reports whether p names a component custody account.
func (p Principal) IsReserved() bool {
	return strings.HasPrefix(string(p), ReservedPrincipalPrefix)
}

// ParsePrincipal validates an external identity. Reserved custody principals
// are rejected so no caller can act as an escrow account.
func ParsePrincipal(s string) (Principal, error) {
	if err := checkToken(s, maxPrincipalLen, "principal"); err != nil {
		return "", err
	}
	p := Principal(s)
	if p.IsReserved() {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "principal uses a reserved prefix")
	}
	return p, nil
}

// ParsePropertyID accepts 1-64 characters of [A-Za-z0-9._-].
func ParsePropertyID(s string) (PropertyID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "property id is required")
	}
	if len(s) > maxPropertyIDLen {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "property id is too long")
	}
	for _, r := range s {
		if !isIDRune(r) {
			return "", dErrors.New(dErrors.CodeInvalidArgument, "property id contains invalid characters")
		}
	}
	return PropertyID(s), nil
}

// ParseAsset accepts an upper-case alphanumeric ticker.
func ParseAsset(s string) (Asset, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "asset is required")
	}
	if len(s) > maxAssetLen {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "asset ticker is too long")
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return "", dErrors.New(dErrors.CodeInvalidArgument, "asset ticker must be upper-case alphanumeric")
		}
	}
	return Asset(s), nil
}

// ParseOrderID parses a decimal, non-zero order id.
func ParseOrderID(s string) (OrderID, error) {
	v, err := parseSeq(s, "order id")
	return OrderID(v), err
}

// ParseRedemptionID parses a decimal, non-zero redemption id.
func ParseRedemptionID(s string) (RedemptionID, error) {
	v, err := parseSeq(s, "redemption id")
	return RedemptionID(v), err
}

// ParseDistributionID parses a decimal, non-zero distribution id.
func ParseDistributionID(s string) (DistributionID, error) {
	v, err := parseSeq(s, "distribution id")
	return DistributionID(v), err
}

func parseSeq(s, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidArgument, "invalid "+what)
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidArgument, what+" must be positive")
	}
	return v, nil
}

func checkToken(s string, maxLen int, what string) error {
	if strings.TrimSpace(s) == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, what+" is required")
	}
	if len(s) > maxLen {
		return dErrors.New(dErrors.CodeInvalidArgument, what+" is too long")
	}
	if !utf8.ValidString(s) {
		return dErrors.New(dErrors.CodeInvalidArgument, what+" must be valid UTF-8")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return dErrors.New(dErrors.CodeInvalidArgument, what+" contains invalid characters")
		}
	}
	return nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}
