package roles

import (
	"context"
	"log/slog"
	"sort"

	"brick/internal/state"
	"brick/pkg/domain"
	dErrors "brick/pkg/domain-errors"
	audit "brick/pkg/platform/audit"
	"brick/pkg/requestcontext"
)

// Authority owns the role table. Every mutator elsewhere in the engine calls
// Authorize before touching state.
type Authority struct {
	store  *state.Store
	grants *state.Map[memberKey, Grant]
	counts *state.Map[Role, uint64]
	audit  *audit.Recorder
	logger *slog.Logger
}

type Option func(*Authority)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) {
		a.logger = logger
	}
}

func WithAudit(r *audit.Recorder) Option {
	return func(a *Authority) {
		a.audit = r
	}
}

// New registers the role tables on store.
func New(store *state.Store, opts ...Option) *Authority {
	a := &Authority{
		store:  store,
		grants: state.NewMap[memberKey, Grant](store, "role_grants"),
		counts: state.NewMap[Role, uint64](store, "role_member_counts"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Bootstrap grants DefaultAdmin to admin while the admin role is still empty.
// Once bootstrapped the admin role never becomes empty again.
func (a *Authority) Bootstrap(ctx context.Context, admin domain.Principal) error {
	if admin.IsZero() || admin.IsReserved() {
		return dErrors.New(dErrors.CodeInvalidArgument, "bootstrap admin must be an external principal")
	}
	return a.store.RunInTx(ctx, func(ctx context.Context) error {
		if n, _ := a.counts.Get(DefaultAdmin); n > 0 {
			return dErrors.New(dErrors.CodeInvalidTransition, "roles already bootstrapped")
		}
		a.add(ctx, DefaultAdmin, admin, admin)
		a.audit.Record(ctx, audit.EventBootstrapped, audit.Event{
			Actor:      admin,
			Subject:    admin,
			EntityType: "role",
			EntityID:   string(DefaultAdmin),
		})
		a.logger.InfoContext(ctx, "roles bootstrapped", "admin", admin)
		return nil
	})
}

// Bootstrapped reports whether an admin exists.
func (a *Authority) Bootstrapped(ctx context.Context) bool {
	var n uint64
	_ = a.store.View(ctx, func(context.Context) error {
		n, _ = a.counts.Get(DefaultAdmin)
		return nil
	})
	return n > 0
}

// GrantRole adds principal to role. Granting an existing membership is a no-op.
func (a *Authority) GrantRole(ctx context.Context, caller domain.Principal, role Role, principal domain.Principal) error {
	if err := validate(role, principal); err != nil {
		return err
	}
	return a.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := a.Authorize(ctx, caller, AdminRoleOf(role)); err != nil {
			return err
		}
		if a.grants.Has(memberKey{Role: role, Principal: principal}) {
			return nil
		}
		a.add(ctx, role, principal, caller)
		a.audit.Record(ctx, audit.EventRoleGranted, audit.Event{
			Actor:      caller,
			Subject:    principal,
			EntityType: "role",
			EntityID:   string(role),
		})
		return nil
	})
}

// RevokeRole removes principal from role. Revoking a non-member is a no-op.
func (a *Authority) RevokeRole(ctx context.Context, caller domain.Principal, role Role, principal domain.Principal) error {
	if err := validate(role, principal); err != nil {
		return err
	}
	return a.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := a.Authorize(ctx, caller, AdminRoleOf(role)); err != nil {
			return err
		}
		return a.remove(ctx, caller, role, principal)
	})
}

// RenounceRole lets caller drop one of its own roles.
func (a *Authority) RenounceRole(ctx context.Context, caller domain.Principal, role Role) error {
	if err := validate(role, caller); err != nil {
		return err
	}
	return a.store.RunInTx(ctx, func(ctx context.Context) error {
		return a.remove(ctx, caller, role, caller)
	})
}

// HasRole reports membership.
func (a *Authority) HasRole(ctx context.Context, role Role, principal domain.Principal) bool {
	var ok bool
	_ = a.store.View(ctx, func(context.Context) error {
		ok = a.grants.Has(memberKey{Role: role, Principal: principal})
		return nil
	})
	return ok
}

// Members lists the principals holding role, sorted.
func (a *Authority) Members(ctx context.Context, role Role) []domain.Principal {
	var out []domain.Principal
	_ = a.store.View(ctx, func(context.Context) error {
		a.grants.Range(func(k memberKey, _ Grant) bool {
			if k.Role == role {
				out = append(out, k.Principal)
			}
			return true
		})
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Authorize passes when principal holds any of required. It is the single
// capability check used by every mutator and never has side effects.
func (a *Authority) Authorize(ctx context.Context, principal domain.Principal, required ...Role) error {
	if principal.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	var allowed bool
	_ = a.store.View(ctx, func(context.Context) error {
		for _, r := range required {
			if a.grants.Has(memberKey{Role: r, Principal: principal}) {
				allowed = true
				return nil
			}
		}
		return nil
	})
	if !allowed {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller lacks role %v", required).WithEntity(principal)
	}
	return nil
}

func (a *Authority) add(ctx context.Context, role Role, principal, by domain.Principal) {
	a.grants.Put(ctx, memberKey{Role: role, Principal: principal}, Grant{
		Role:      role,
		Principal: principal,
		GrantedBy: by,
		GrantedAt: requestcontext.Now(ctx),
	})
	n, _ := a.counts.Get(role)
	a.counts.Put(ctx, role, n+1)
}

func (a *Authority) remove(ctx context.Context, caller domain.Principal, role Role, principal domain.Principal) error {
	key := memberKey{Role: role, Principal: principal}
	if !a.grants.Has(key) {
		return nil
	}
	n, _ := a.counts.Get(role)
	if role == DefaultAdmin && n <= 1 {
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot remove the last admin").WithEntity(principal)
	}
	a.grants.Delete(ctx, key)
	a.counts.Put(ctx, role, n-1)
	a.audit.Record(ctx, audit.EventRoleRevoked, audit.Event{
		Actor:      caller,
		Subject:    principal,
		EntityType: "role",
		EntityID:   string(role),
	})
	return nil
}

func validate(role Role, principal domain.Principal) error {
	if !role.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidArgument, "unknown role %q", role)
	}
	if principal.IsZero() || principal.IsReserved() {
		return dErrors.New(dErrors.CodeInvalidArgument, "role members must be external principals")
	}
	return nil
}
