package market

import (
	"context"
	"slices"

	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
)

func (m *Marketplace) GetOrder(ctx context.Context, id domain.OrderID) (*Order, error) {
	var out Order
	err := m.store.View(ctx, func(context.Context) error {
		o, ok := m.orders.Get(id)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "order not found").WithEntity(id)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActiveOrderCount reads the maintained counter.
func (m *Marketplace) GetActiveOrderCount(ctx context.Context) uint64 {
	var n uint64
	_ = m.store.View(ctx, func(context.Context) error {
		n = m.active.Get()
		return nil
	})
	return n
}

// GetUserOrders returns every order the seller created, oldest first.
func (m *Marketplace) GetUserOrders(ctx context.Context, seller domain.Principal) []Order {
	var out []Order
	_ = m.store.View(ctx, func(context.Context) error {
		ids, _ := m.bySeller.Get(seller)
		out = make([]Order, 0, len(ids))
		for _, id := range ids {
			o, _ := m.orders.Get(id)
			out = append(out, o)
		}
		return nil
	})
	return out
}

// ListActiveOrders pages over active orders by ascending id. An empty
// propertyID lists every property.
func (m *Marketplace) ListActiveOrders(ctx context.Context, propertyID domain.PropertyID, offset, limit int) ([]Order, error) {
	if offset < 0 || limit < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "offset and limit must be non-negative")
	}
	out := []Order{}
	_ = m.store.View(ctx, func(context.Context) error {
		var ids []domain.OrderID
		m.activeSet.Range(func(id domain.OrderID, pid domain.PropertyID) bool {
			if propertyID == "" || pid == propertyID {
				ids = append(ids, id)
			}
			return true
		})
		slices.Sort(ids)
		if offset >= len(ids) {
			return nil
		}
		end := len(ids)
		if limit < end-offset {
			end = offset + limit
		}
		for _, id := range ids[offset:end] {
			o, _ := m.orders.Get(id)
			out = append(out, o)
		}
		return nil
	})
	return out, nil
}

// Quote prices a fill of an active order without settling it.
func (m *Marketplace) Quote(ctx context.Context, id domain.OrderID) (*Quote, error) {
	var q Quote
	err := m.store.View(ctx, func(context.Context) error {
		o, err := m.activeOrder(id)
		if err != nil {
			return err
		}
		q = quote(o, m.config.Get())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}
