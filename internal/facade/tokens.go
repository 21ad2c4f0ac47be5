package facade

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"brick/internal/token"
	"brick/pkg/domain"
)

// IssueToken mints the full supply of a property's token to holder.
func (f *Facade) IssueToken(ctx context.Context, propertyID domain.PropertyID, symbol string, supply uint64, holder domain.Principal) (*token.Token, error) {
	return call(ctx, f, "issue_token", func(ctx context.Context, caller domain.Principal) (*token.Token, error) {
		return f.Tokens.Issue(ctx, caller, propertyID, symbol, supply, holder)
	}, propertyAttr(propertyID), attribute.String("brick.symbol", symbol))
}

// TransferTokens moves the caller's own tokens.
func (f *Facade) TransferTokens(ctx context.Context, to domain.Principal, propertyID domain.PropertyID, amount uint64) error {
	return exec(ctx, f, "transfer_tokens", func(ctx context.Context, caller domain.Principal) error {
		return f.Tokens.TransferAsHolder(ctx, caller, to, propertyID, amount)
	}, propertyAttr(propertyID))
}

func (f *Facade) GetToken(ctx context.Context, propertyID domain.PropertyID) (*token.Token, error) {
	return f.Tokens.GetToken(ctx, propertyID)
}

func (f *Facade) TokenBalance(ctx context.Context, propertyID domain.PropertyID, holder domain.Principal) uint64 {
	return f.Tokens.BalanceOf(ctx, propertyID, holder)
}

func (f *Facade) TotalSupply(ctx context.Context, propertyID domain.PropertyID) uint64 {
	return f.Tokens.TotalSupply(ctx, propertyID)
}

func (f *Facade) TokenHolders(ctx context.Context, propertyID domain.PropertyID) []token.Holding {
	return f.Tokens.Holders(ctx, propertyID)
}

// PaymentBalance reads the payment ledger.
func (f *Facade) PaymentBalance(ctx context.Context, asset domain.Asset, principal domain.Principal) (uint64, error) {
	return f.Payments.BalanceOf(ctx, asset, principal)
}
