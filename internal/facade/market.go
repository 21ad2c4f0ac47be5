package facade

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"brick/internal/market"
	"brick/pkg/domain"
)

func (f *Facade) CreateOrder(ctx context.Context, propertyID domain.PropertyID, amount, unitPrice uint64, asset domain.Asset) (*market.Order, error) {
	o, err := call(ctx, f, "create_order", func(ctx context.Context, seller domain.Principal) (*market.Order, error) {
		return f.Market.CreateOrder(ctx, seller, propertyID, amount, unitPrice, asset)
	}, propertyAttr(propertyID), attribute.String("brick.asset", string(asset)))
	if err == nil {
		f.metrics.IncrementOrdersCreated()
	}
	return o, err
}

// FulfillOrder buys the whole order for the caller.
func (f *Facade) FulfillOrder(ctx context.Context, id domain.OrderID) (*market.Fill, error) {
	fill, err := call(ctx, f, "fulfill_order", func(ctx context.Context, buyer domain.Principal) (*market.Fill, error) {
		return f.Market.FulfillOrder(ctx, buyer, id)
	}, orderAttr(id))
	if err == nil {
		f.metrics.RecordFill(string(fill.Order.PaymentAsset), fill.Quote.Total, fill.Quote.Fee)
	}
	return fill, err
}

func (f *Facade) CancelOrder(ctx context.Context, id domain.OrderID) (*market.Order, error) {
	o, err := call(ctx, f, "cancel_order", func(ctx context.Context, caller domain.Principal) (*market.Order, error) {
		return f.Market.CancelOrder(ctx, caller, id)
	}, orderAttr(id))
	if err == nil {
		f.metrics.IncrementOrdersCancelled()
	}
	return o, err
}

func (f *Facade) UpdatePrice(ctx context.Context, id domain.OrderID, newPrice uint64) (*market.Order, error) {
	return call(ctx, f, "update_price", func(ctx context.Context, caller domain.Principal) (*market.Order, error) {
		return f.Market.UpdatePrice(ctx, caller, id, newPrice)
	}, orderAttr(id))
}

func (f *Facade) SetMarketFeeRate(ctx context.Context, rate domain.BasisPoints) error {
	return exec(ctx, f, "set_market_fee_rate", func(ctx context.Context, caller domain.Principal) error {
		return f.Market.SetFeeRate(ctx, caller, rate)
	})
}

func (f *Facade) SetMarketFeeCollector(ctx context.Context, collector domain.Principal) error {
	return exec(ctx, f, "set_market_fee_collector", func(ctx context.Context, caller domain.Principal) error {
		return f.Market.SetFeeCollector(ctx, caller, collector)
	})
}

func (f *Facade) AddSupportedAsset(ctx context.Context, asset domain.Asset) error {
	return exec(ctx, f, "add_supported_asset", func(ctx context.Context, caller domain.Principal) error {
		return f.Market.AddSupportedAsset(ctx, caller, asset)
	}, attribute.String("brick.asset", string(asset)))
}

func (f *Facade) RemoveSupportedAsset(ctx context.Context, asset domain.Asset) error {
	return exec(ctx, f, "remove_supported_asset", func(ctx context.Context, caller domain.Principal) error {
		return f.Market.RemoveSupportedAsset(ctx, caller, asset)
	}, attribute.String("brick.asset", string(asset)))
}

func (f *Facade) GetOrder(ctx context.Context, id domain.OrderID) (*market.Order, error) {
	return f.Market.GetOrder(ctx, id)
}

func (f *Facade) GetActiveOrderCount(ctx context.Context) uint64 {
	return f.Market.GetActiveOrderCount(ctx)
}

func (f *Facade) GetUserOrders(ctx context.Context, seller domain.Principal) []market.Order {
	return f.Market.GetUserOrders(ctx, seller)
}

func (f *Facade) ListActiveOrders(ctx context.Context, propertyID domain.PropertyID, offset, limit int) ([]market.Order, error) {
	return f.Market.ListActiveOrders(ctx, propertyID, offset, limit)
}

// QuoteOrder prices a fill of an active order at the current fee rate.
func (f *Facade) QuoteOrder(ctx context.Context, id domain.OrderID) (*market.Quote, error) {
	return f.Market.Quote(ctx, id)
}

func (f *Facade) MarketConfig(ctx context.Context) market.Config {
	return f.Market.Config(ctx)
}
