package facade

import (
	"context"

	"brick/internal/property"
	"brick/pkg/domain"
)

type propertyMove func(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*property.Property, error)

func (f *Facade) moveProperty(ctx context.Context, op string, id domain.PropertyID, move propertyMove) (*property.Property, error) {
	return call(ctx, f, op, func(ctx context.Context, caller domain.Principal) (*property.Property, error) {
		return move(ctx, caller, id)
	}, propertyAttr(id))
}

func (f *Facade) RegisterProperty(ctx context.Context, id domain.PropertyID, country, metadataURI string) (*property.Property, error) {
	return call(ctx, f, "register_property", func(ctx context.Context, caller domain.Principal) (*property.Property, error) {
		return f.Properties.RegisterProperty(ctx, caller, id, country, metadataURI)
	}, propertyAttr(id))
}

func (f *Facade) ApproveProperty(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "approve_property", id, f.Properties.ApproveProperty)
}

func (f *Facade) RejectProperty(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "reject_property", id, f.Properties.RejectProperty)
}

func (f *Facade) DelistProperty(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "delist_property", id, f.Properties.DelistProperty)
}

func (f *Facade) FreezeProperty(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "freeze_property", id, f.Properties.FreezeProperty)
}

func (f *Facade) UnfreezeProperty(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "unfreeze_property", id, f.Properties.UnfreezeProperty)
}

func (f *Facade) SetPropertyToRedemption(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "set_property_to_redemption", id, f.Properties.SetPropertyToRedemption)
}

func (f *Facade) ReinstateFromRedemption(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.moveProperty(ctx, "reinstate_from_redemption", id, f.Properties.ReinstateFromRedemption)
}

func (f *Facade) UpdateMetadataURI(ctx context.Context, id domain.PropertyID, uri string) (*property.Property, error) {
	return call(ctx, f, "update_metadata_uri", func(ctx context.Context, caller domain.Principal) (*property.Property, error) {
		return f.Properties.UpdateMetadataURI(ctx, caller, id, uri)
	}, propertyAttr(id))
}

func (f *Facade) GetProperty(ctx context.Context, id domain.PropertyID) (*property.Property, error) {
	return f.Properties.GetProperty(ctx, id)
}

func (f *Facade) GetAllPropertyIDs(ctx context.Context) []domain.PropertyID {
	return f.Properties.GetAllPropertyIDs(ctx)
}

// ListProperties pages registration order; an offset past the end yields an
// empty slice.
func (f *Facade) ListProperties(ctx context.Context, offset, limit int) ([]property.Property, error) {
	return f.Properties.ListProperties(ctx, offset, limit)
}

func (f *Facade) PropertyCount(ctx context.Context) int {
	return f.Properties.PropertyCount(ctx)
}

func (f *Facade) PropertyHistory(ctx context.Context, id domain.PropertyID) ([]property.StatusChange, error) {
	return f.Properties.History(ctx, id)
}
