package facade

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"brick/internal/roles"
	"brick/pkg/domain"
)

func (f *Facade) GrantRole(ctx context.Context, role roles.Role, principal domain.Principal) error {
	return exec(ctx, f, "grant_role", func(ctx context.Context, caller domain.Principal) error {
		return f.Roles.GrantRole(ctx, caller, role, principal)
	}, attribute.String("brick.role", string(role)))
}

func (f *Facade) RevokeRole(ctx context.Context, role roles.Role, principal domain.Principal) error {
	return exec(ctx, f, "revoke_role", func(ctx context.Context, caller domain.Principal) error {
		return f.Roles.RevokeRole(ctx, caller, role, principal)
	}, attribute.String("brick.role", string(role)))
}

func (f *Facade) RenounceRole(ctx context.Context, role roles.Role) error {
	return exec(ctx, f, "renounce_role", func(ctx context.Context, caller domain.Principal) error {
		return f.Roles.RenounceRole(ctx, caller, role)
	}, attribute.String("brick.role", string(role)))
}

func (f *Facade) HasRole(ctx context.Context, role roles.Role, principal domain.Principal) bool {
	return f.Roles.HasRole(ctx, role, principal)
}

func (f *Facade) RoleMembers(ctx context.Context, role roles.Role) []domain.Principal {
	return f.Roles.Members(ctx, role)
}
