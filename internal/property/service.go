package property

import (
	"context"
	"log/slog"
	"strings"

	"brick/internal/roles"
	"brick/internal/state"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
	"brick/pkg/requestcontext"
)

const maxCountryLen = 64

// Registry owns property records and their status history.
type Registry struct {
	store      *state.Store
	authority  *roles.Authority
	properties *state.Map[domain.PropertyID, Property]
	history    *state.Map[domain.PropertyID, []StatusChange]
	order      *state.Map[uint64, domain.PropertyID]
	audit      *audit.Recorder
	logger     *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithAudit(rec *audit.Recorder) Option {
	return func(r *Registry) {
		r.audit = rec
	}
}

func New(store *state.Store, authority *roles.Authority, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		authority:  authority,
		properties: state.NewMap[domain.PropertyID, Property](store, "properties"),
		history:    state.NewMap[domain.PropertyID, []StatusChange](store, "property_history"),
		order:      state.NewMap[uint64, domain.PropertyID](store, "property_order"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProperty creates a Pending record. Ids of rejected or delisted
// properties stay taken.
func (r *Registry) RegisterProperty(ctx context.Context, caller domain.Principal, id domain.PropertyID, country, metadataURI string) (*Property, error) {
	country = strings.TrimSpace(country)
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "property id is required")
	}
	if country == "" || len(country) > maxCountryLen {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "country is required").WithEntity(id)
	}

	var out Property
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.authority.Authorize(ctx, caller, roles.Operator); err != nil {
			return err
		}
		if r.properties.Has(id) {
			return dErrors.New(dErrors.CodeDuplicateProperty, "property already registered").WithEntity(id)
		}
		now := requestcontext.Now(ctx)
		out = Property{
			ID:           id,
			Country:      country,
			MetadataURI:  metadataURI,
			Status:       StatusNotRegistered,
			RegisteredBy: caller,
			RegisteredAt: now,
		}
		r.order.Put(ctx, uint64(r.order.Len()), id)
		if err := r.transition(ctx, caller, &out, OpRegister); err != nil {
			return err
		}
		r.audit.Record(ctx, audit.EventPropertyRegistered, audit.Event{
			Actor:      caller,
			EntityType: "property",
			EntityID:   string(id),
			PropertyID: id,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Registry) ApproveProperty(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpApprove)
}

func (r *Registry) RejectProperty(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpReject)
}

func (r *Registry) DelistProperty(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpDelist)
}

func (r *Registry) FreezeProperty(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpFreeze)
}

// UnfreezeProperty returns a frozen property to Approved.
func (r *Registry) UnfreezeProperty(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpUnfreeze)
}

func (r *Registry) SetPropertyToRedemption(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpToRedemption)
}

// ReinstateFromRedemption ends a redemption window.
func (r *Registry) ReinstateFromRedemption(ctx context.Context, caller domain.Principal, id domain.PropertyID) (*Property, error) {
	return r.apply(ctx, caller, id, OpReinstate)
}

// UpdateMetadataURI replaces the metadata pointer while the property is
// Pending or Approved. Status is untouched.
func (r *Registry) UpdateMetadataURI(ctx context.Context, caller domain.Principal, id domain.PropertyID, uri string) (*Property, error) {
	var out Property
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.authority.Authorize(ctx, caller, roles.SuperAdmin); err != nil {
			return err
		}
		p, err := r.load(id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending && p.Status != StatusApproved {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "metadata is fixed while %s", p.Status).WithEntity(id)
		}
		p.MetadataURI = uri
		p.UpdatedAt = requestcontext.Now(ctx)
		r.properties.Put(ctx, id, p)
		r.audit.Record(ctx, audit.EventPropertyMetadataSet, audit.Event{
			Actor:      caller,
			EntityType: "property",
			EntityID:   string(id),
			PropertyID: id,
		})
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// apply runs one lifecycle operation under the SUPER_ADMIN check.
func (r *Registry) apply(ctx context.Context, caller domain.Principal, id domain.PropertyID, op Op) (*Property, error) {
	var out Property
	err := r.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.authority.Authorize(ctx, caller, roles.SuperAdmin); err != nil {
			return err
		}
		p, err := r.load(id)
		if err != nil {
			return err
		}
		if err := r.transition(ctx, caller, &p, op); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// transition is the single mutator for Status. Callers hold a unit of work.
func (r *Registry) transition(ctx context.Context, by domain.Principal, p *Property, op Op) error {
	m, ok := MoveOf(op)
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidArgument, "unknown property operation %q", op).WithEntity(p.ID)
	}
	from := p.Status
	if from != m.From {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot %s property in status %s", op, from).WithEntity(p.ID)
	}
	to := m.To
	now := requestcontext.Now(ctx)
	p.Status = to
	p.UpdatedAt = now
	r.properties.Put(ctx, p.ID, *p)

	trail, _ := r.history.Get(p.ID)
	next := make([]StatusChange, len(trail), len(trail)+1)
	copy(next, trail)
	r.history.Put(ctx, p.ID, append(next, StatusChange{From: from, To: to, Op: op, By: by, At: now}))

	if from != StatusNotRegistered {
		r.audit.Record(ctx, audit.EventPropertyTransition, audit.Event{
			Actor:      by,
			EntityType: "property",
			EntityID:   string(p.ID),
			PropertyID: p.ID,
			Reason:     string(op) + ": " + string(from) + "->" + string(to),
		})
	}
	r.logger.InfoContext(ctx, "property status changed",
		"property_id", p.ID,
		"op", op,
		"from", from,
		"to", to,
		"by", by,
	)
	return nil
}

func (r *Registry) load(id domain.PropertyID) (Property, error) {
	p, ok := r.properties.Get(id)
	if !ok {
		return Property{}, dErrors.New(dErrors.CodeNotFound, "property not found").WithEntity(id)
	}
	return p, nil
}

// GetProperty returns a copy of the record.
func (r *Registry) GetProperty(ctx context.Context, id domain.PropertyID) (*Property, error) {
	var out Property
	err := r.store.View(ctx, func(context.Context) error {
		p, err := r.load(id)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the current status, StatusNotRegistered for unknown ids.
func (r *Registry) Status(ctx context.Context, id domain.PropertyID) Status {
	status := StatusNotRegistered
	_ = r.store.View(ctx, func(context.Context) error {
		if p, ok := r.properties.Get(id); ok {
			status = p.Status
		}
		return nil
	})
	return status
}

func (r *Registry) IsTradable(ctx context.Context, id domain.PropertyID) bool {
	return r.Status(ctx, id).Tradable()
}

func (r *Registry) IsRedeemable(ctx context.Context, id domain.PropertyID) bool {
	return r.Status(ctx, id).Redeemable()
}

// GetAllPropertyIDs lists ids in registration order.
func (r *Registry) GetAllPropertyIDs(ctx context.Context) []domain.PropertyID {
	var ids []domain.PropertyID
	_ = r.store.View(ctx, func(context.Context) error {
		ids = r.idRange(0, uint64(r.order.Len()))
		return nil
	})
	return ids
}

// ListProperties pages over registration order. The end is clamped to the
// number of properties; an offset past the end yields an empty slice.
func (r *Registry) ListProperties(ctx context.Context, offset, limit int) ([]Property, error) {
	if offset < 0 || limit < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "offset and limit must be non-negative")
	}
	out := []Property{}
	_ = r.store.View(ctx, func(context.Context) error {
		total := r.order.Len()
		if offset >= total {
			return nil
		}
		end := offset + limit
		if end > total || end < offset {
			end = total
		}
		for _, id := range r.idRange(uint64(offset), uint64(end)) {
			p, _ := r.properties.Get(id)
			out = append(out, p)
		}
		return nil
	})
	return out, nil
}

func (r *Registry) idRange(from, to uint64) []domain.PropertyID {
	ids := make([]domain.PropertyID, 0, to-from)
	for i := from; i < to; i++ {
		id, _ := r.order.Get(i)
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) PropertyCount(ctx context.Context) int {
	var n int
	_ = r.store.View(ctx, func(context.Context) error {
		n = r.order.Len()
		return nil
	})
	return n
}

// History returns the status walk of a property, oldest first.
func (r *Registry) History(ctx context.Context, id domain.PropertyID) ([]StatusChange, error) {
	var out []StatusChange
	err := r.store.View(ctx, func(context.Context) error {
		if !r.properties.Has(id) {
			return dErrors.New(dErrors.CodeNotFound, "property not found").WithEntity(id)
		}
		trail, _ := r.history.Get(id)
		out = append([]StatusChange(nil), trail...)
		return nil
	})
	return out, err
}
