package permissions

import "sort"

// Role is a closed enumeration of privilege tiers. Adding a role requires
// extending rolePermissions below; an unknown role always evaluates to deny.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOrgOwner   Role = "org_owner"
	RoleOrgAdmin   Role = "org_admin"
	RoleOrgManager Role = "org_manager"
	RoleOrgUser    Role = "org_user"
	RoleOrgViewer  Role = "org_viewer"
)

// Wildcard grants every permission.
const Wildcard = "*"

// Actions
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionUse    = "use"
)

// Resources
const (
	ResourceOrganization = "organization"
	ResourceUsers        = "users"
	ResourceBilling      = "billing"
	ResourceSettings     = "settings"
	ResourceAI           = "ai"
	ResourceAutomations  = "automations"
	ResourceCampaigns    = "campaigns"
	ResourceAudiences    = "audiences"
	ResourceIntegrations = "integrations"
	ResourceAnalytics    = "analytics"
	ResourceLogs         = "logs"
)

// Key builds the canonical "<resource>.<action>" permission string.
func Key(resource, action string) string {
	return resource + "." + action
}

func all(resource string) []string {
	return []string{
		Key(resource, ActionCreate),
		Key(resource, ActionRead),
		Key(resource, ActionUpdate),
		Key(resource, ActionDelete),
		Key(resource, ActionUse),
	}
}

func set(groups ...[]string) map[string]bool {
	s := make(map[string]bool)
	for _, g := range groups {
		for _, p := range g {
			s[p] = true
		}
	}
	return s
}

// rolePermissions is the static role → permission-set table. super_admin and
// org_owner are handled before the lookup in Evaluate; their entries exist so
// Expand produces the wildcard for token claims.
var rolePermissions = map[Role]map[string]bool{
	RoleSuperAdmin: {Wildcard: true},
	RoleOrgOwner:   {Wildcard: true},

	RoleOrgAdmin: set(
		[]string{Key(ResourceOrganization, ActionRead), Key(ResourceOrganization, ActionUpdate)},
		all(ResourceUsers),
		[]string{Key(ResourceBilling, ActionRead)},
		all(ResourceSettings),
		all(ResourceAI),
		all(ResourceAutomations),
		all(ResourceCampaigns),
		all(ResourceAudiences),
		all(ResourceIntegrations),
		[]string{Key(ResourceAnalytics, ActionRead), Key(ResourceLogs, ActionRead)},
	),

	RoleOrgManager: set(
		[]string{Key(ResourceOrganization, ActionRead)},
		[]string{Key(ResourceUsers, ActionRead), Key(ResourceUsers, ActionCreate), Key(ResourceUsers, ActionUpdate)},
		[]string{Key(ResourceSettings, ActionRead), Key(ResourceSettings, ActionUpdate)},
		all(ResourceAI),
		all(ResourceAutomations),
		all(ResourceCampaigns),
		all(ResourceAudiences),
		[]string{Key(ResourceIntegrations, ActionRead), Key(ResourceIntegrations, ActionCreate)},
		[]string{Key(ResourceAnalytics, ActionRead)},
	),

	RoleOrgUser: set(
		[]string{Key(ResourceOrganization, ActionRead)},
		[]string{Key(ResourceUsers, ActionRead), Key(ResourceUsers, ActionUpdate)},
		[]string{Key(ResourceSettings, ActionRead)},
		[]string{Key(ResourceAI, ActionUse)},
		[]string{
			Key(ResourceAutomations, ActionCreate), Key(ResourceAutomations, ActionRead),
			Key(ResourceAutomations, ActionUpdate), Key(ResourceAutomations, ActionDelete),
		},
		[]string{
			Key(ResourceCampaigns, ActionCreate), Key(ResourceCampaigns, ActionRead),
			Key(ResourceCampaigns, ActionUpdate),
		},
		[]string{
			Key(ResourceAudiences, ActionCreate), Key(ResourceAudiences, ActionRead),
			Key(ResourceAudiences, ActionUpdate),
		},
		[]string{Key(ResourceIntegrations, ActionRead)},
	),

	RoleOrgViewer: set(
		[]string{Key(ResourceOrganization, ActionRead)},
		[]string{Key(ResourceUsers, ActionRead)},
		[]string{Key(ResourceSettings, ActionRead)},
		[]string{Key(ResourceAutomations, ActionRead)},
		[]string{Key(ResourceCampaigns, ActionRead)},
		[]string{Key(ResourceAudiences, ActionRead)},
		[]string{Key(ResourceIntegrations, ActionRead)},
	),
}

// hierarchy, highest privilege first.
var hierarchy = []Role{
	RoleSuperAdmin,
	RoleOrgOwner,
	RoleOrgAdmin,
	RoleOrgManager,
	RoleOrgUser,
	RoleOrgViewer,
}

// Evaluate decides whether role may perform action on resource. Unknown roles
// deny; there is no implicit allow.
func Evaluate(role Role, action, resource string) bool {
	if role == RoleSuperAdmin || role == RoleOrgOwner {
		return true
	}

	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}

	return perms[Key(resource, action)] || perms[Wildcard]
}

// Expand returns the sorted flat permission list for a role, suitable for
// embedding in token claims. Unknown roles expand to nothing.
func Expand(role Role) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Effective merges a role's permission list with per-membership overrides.
// Only overrides set to true grant; false or absent entries defer to the role.
func Effective(role Role, overrides map[string]bool) []string {
	base := Expand(role)
	seen := make(map[string]bool, len(base))
	for _, p := range base {
		seen[p] = true
	}

	out := base
	extra := make([]string, 0, len(overrides))
	for p, granted := range overrides {
		if granted && !seen[p] {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Valid reports whether role is one of the known tiers.
func Valid(role Role) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Hierarchy returns all roles, highest privilege first.
func Hierarchy() []Role {
	out := make([]Role, len(hierarchy))
	copy(out, hierarchy)
	return out
}

// Higher reports whether a outranks b. Unknown roles never outrank anything.
func Higher(a, b Role) bool {
	ai, bi := rank(a), rank(b)
	return ai != -1 && bi != -1 && ai < bi
}

func rank(r Role) int {
	for i, h := range hierarchy {
		if h == r {
			return i
		}
	}
	return -1
}

// IsAdminRole reports whether role may perform organization administration.
func IsAdminRole(role Role) bool {
	switch role {
	case RoleSuperAdmin, RoleOrgOwner, RoleOrgAdmin:
		return true
	}
	return false
}

// CanManageUsers reports whether role may create or modify memberships.
func CanManageUsers(role Role) bool {
	return IsAdminRole(role) || role == RoleOrgManager
}

// Capabilities is a coarse summary used by clients to toggle UI affordances.
type Capabilities struct {
	CanManageOrg        bool   `json:"can_manage_org"`
	CanManageUsers      bool   `json:"can_manage_users"`
	CanAccessBilling    bool   `json:"can_access_billing"`
	CanUseAI            bool   `json:"can_use_ai"`
	CanCreateAutomation bool   `json:"can_create_automation"`
	CanViewAnalytics    bool   `json:"can_view_analytics"`
	Level               string `json:"level"` // admin, manager, user, viewer
}

func RoleCapabilities(role Role) Capabilities {
	level := "viewer"
	switch {
	case IsAdminRole(role):
		level = "admin"
	case role == RoleOrgManager:
		level = "manager"
	case role == RoleOrgUser:
		level = "user"
	}

	return Capabilities{
		CanManageOrg:        Evaluate(role, ActionUpdate, ResourceOrganization),
		CanManageUsers:      CanManageUsers(role),
		CanAccessBilling:    Evaluate(role, ActionRead, ResourceBilling),
		CanUseAI:            Evaluate(role, ActionUse, ResourceAI),
		CanCreateAutomation: Evaluate(role, ActionCreate, ResourceAutomations),
		CanViewAnalytics:    Evaluate(role, ActionRead, ResourceAnalytics),
		Level:               level,
	}
}
