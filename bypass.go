package groupaccess

import "context"

// BypassPermission grants unconditional access to every entity and operation,
// and exempts its holder from search filtering.
const BypassPermission = "bypass group access checks"

// PermissionBypass is the allowed special case that honors BypassPermission.
// It applies to every entity type.
type PermissionBypass struct{}

func NewPermissionBypass() *PermissionBypass { return &PermissionBypass{} }

func (b *PermissionBypass) ID() string                    { return "permission_bypass" }
func (b *PermissionBypass) Label() string                 { return "Permission bypass" }
func (b *PermissionBypass) Kind() SpecialCaseKind         { return CaseAllowed }
func (b *PermissionBypass) EntityTypes() []string         { return nil }
func (b *PermissionBypass) ExcludedEntityTypes() []string { return nil }

func (b *PermissionBypass) Evaluate(_ context.Context, _ *Entity, _ Operation, principal *Principal) (bool, error) {
	return principal.HasPermission(BypassPermission), nil
}
