package market

import (
	"time"

	"brick/pkg/domain"
)

type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderCancelled OrderStatus = "cancelled"
)

// MaxFeeRate caps the marketplace fee at 10%.
const MaxFeeRate domain.BasisPoints = 1_000

// Order is a sell order. While Active its tokens sit in the marketplace escrow.
type Order struct {
	ID           domain.OrderID    `json:"id"`
	Seller       domain.Principal  `json:"seller"`
	PropertyID   domain.PropertyID `json:"property_id"`
	Amount       uint64            `json:"amount"`
	UnitPrice    uint64            `json:"unit_price"`
	PaymentAsset domain.Asset      `json:"payment_asset"`
	Status       OrderStatus       `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Buyer        domain.Principal  `json:"buyer,omitempty"`
	FeeAmount    uint64            `json:"fee_amount,omitempty"`
}

// TotalPrice is Amount * UnitPrice; creation and repricing guarantee it fits.
func (o Order) TotalPrice() uint64 {
	return o.Amount * o.UnitPrice
}

// Quote is what a fill would settle at the current fee rate.
type Quote struct {
	OrderID        domain.OrderID     `json:"order_id"`
	Total          uint64             `json:"total"`
	Fee            uint64             `json:"fee"`
	SellerProceeds uint64             `json:"seller_proceeds"`
	FeeRate        domain.BasisPoints `json:"fee_rate"`
}

// Fill is the result of a fulfilled order.
type Fill struct {
	Order Order `json:"order"`
	Quote Quote `json:"quote"`
}

// Config is the marketplace fee and asset configuration.
type Config struct {
	FeeRate         domain.BasisPoints `json:"fee_rate"`
	FeeCollector    domain.Principal   `json:"fee_collector"`
	SupportedAssets []domain.Asset     `json:"supported_assets"`
}

func (c Config) supports(asset domain.Asset) bool {
	for _, a := range c.SupportedAssets {
		if a == asset {
			return true
		}
	}
	return false
}

func quote(o Order, cfg Config) Quote {
	total := o.TotalPrice()
	fee := domain.FeeOf(total, cfg.FeeRate)
	return Quote{
		OrderID:        o.ID,
		Total:          total,
		Fee:            fee,
		SellerProceeds: total - fee,
		FeeRate:        cfg.FeeRate,
	}
}
