package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const TenantKey contextKey = "tenant"

// OrgHeader and friends are the caller-facing tenant selection conventions,
// checked in this order. A conflicting pair is resolved by precedence, never
// merged.
const (
	OrgHeader     = "X-Organization-Id"
	OrgQueryParam = "org_id"
	OrgBodyField  = "organizationId"
	OrgURLParam   = "orgID"
)

// peekBodyLimit caps how much of the body the binder reads looking for an
// organization id. The body is restored afterwards for the handler.
const peekBodyLimit = 1 << 20

// errInvalidOrgSelector marks an explicit organization selector that is not
// a UUID.
var errInvalidOrgSelector = errors.New("invalid organization selector")

// TenantContext is the read-only authorization context bound to a request
// once an organization has been resolved and access re-validated.
type TenantContext struct {
	Organization models.Organization
	Membership   models.Membership
	UserID       uuid.UUID
	Role         permissions.Role
}

// HasPermission checks the bound membership against the role table plus the
// per-membership override map. Deny-by-default for unknown roles.
func (tc *TenantContext) HasPermission(action, resource string) bool {
	if permissions.Evaluate(tc.Role, action, resource) {
		return true
	}
	key := permissions.Key(resource, action)
	return tc.Membership.Permissions[key] || tc.Membership.Permissions[permissions.Wildcard]
}

// Tenant resolves the request's active organization and binds a TenantContext.
// Resolution precedence: header, query parameter, body field, URL parameter,
// then the user's earliest-joined active membership. An explicitly requested
// organization the user has no active membership in fails the request; the
// caller-supplied id is never trusted without a fresh membership check. When
// nothing resolves the request continues unbound and RequireTenant decides.
func Tenant(orgs *organizations.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == uuid.Nil {
				writeError(w, http.StatusUnauthorized, dto.CodeAuthRequired, "authentication required")
				return
			}

			orgID, explicit, err := resolveOrgID(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, dto.CodeValidationFailed, "invalid organization id")
				return
			}

			if !explicit {
				memberships, err := orgs.ListMemberships(r.Context(), userID)
				if err != nil {
					writeError(w, http.StatusInternalServerError, dto.CodeInternalError, "membership lookup failed")
					return
				}
				if len(memberships) == 0 {
					next.ServeHTTP(w, r)
					return
				}
				orgID = memberships[0].OrganizationID
			}

			uo, err := orgs.SwitchContext(r.Context(), userID, orgID)
			if errors.Is(err, organizations.ErrMembershipNotFound) || errors.Is(err, organizations.ErrOrganizationNotFound) {
				writeError(w, http.StatusForbidden, dto.CodeOrgContextRequired, "no access to the requested organization")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, dto.CodeInternalError, "membership lookup failed")
				return
			}

			tc := &TenantContext{
				Organization: uo.Organization,
				Membership:   uo.Membership,
				UserID:       userID,
				Role:         permissions.Role(uo.Membership.Role),
			}

			ctx := context.WithValue(r.Context(), TenantKey, tc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests that reached the handler without a bound
// organization. The 403 here is deliberately distinct from a 401: the caller
// is authenticated but has no tenant context.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTenant(r.Context()) == nil {
			writeError(w, http.StatusForbidden, dto.CodeOrgContextRequired, "organization context required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only the listed roles through.
func RequireRole(roles ...permissions.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := GetTenant(r.Context())
			if tc == nil {
				writeError(w, http.StatusForbidden, dto.CodeOrgContextRequired, "organization context required")
				return
			}

			for _, role := range roles {
				if tc.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, dto.CodeRoleDenied, "role not permitted")
		})
	}
}

// RequirePermission gates a route on "<resource>.<action>".
func RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := GetTenant(r.Context())
			if tc == nil {
				writeError(w, http.StatusForbidden, dto.CodeOrgContextRequired, "organization context required")
				return
			}

			if !tc.HasPermission(action, resource) {
				writeError(w, http.StatusForbidden, dto.CodePermissionDenied, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetTenant(ctx context.Context) *TenantContext {
	if tc, ok := ctx.Value(TenantKey).(*TenantContext); ok {
		return tc
	}
	return nil
}

// GetOrganizationID returns the bound organization id, or uuid.Nil when the
// request carries no tenant context.
func GetOrganizationID(ctx context.Context) uuid.UUID {
	if tc := GetTenant(ctx); tc != nil {
		return tc.Organization.ID
	}
	return uuid.Nil
}

// resolveOrgID walks the selector precedence chain. An explicitly supplied
// selector that does not parse as a UUID is an error, never a silent fall
// back to another tenant.
func resolveOrgID(r *http.Request) (uuid.UUID, bool, error) {
	if v := r.Header.Get(OrgHeader); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, true, errInvalidOrgSelector
		}
		return id, true, nil
	}

	if v := r.URL.Query().Get(OrgQueryParam); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, true, errInvalidOrgSelector
		}
		return id, true, nil
	}

	if raw, ok := orgIDFromBody(r); ok {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, true, errInvalidOrgSelector
		}
		return id, true, nil
	}

	if v := chi.URLParam(r, OrgURLParam); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, true, errInvalidOrgSelector
		}
		return id, true, nil
	}

	return uuid.Nil, false, nil
}

// orgIDFromBody peeks at a JSON body for an organizationId field and puts the
// bytes back so the handler can decode the body normally. The raw value is
// returned unvalidated; the caller decides what a non-UUID means.
func orgIDFromBody(r *http.Request) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false
	}
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		return "", false
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, peekBodyLimit))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return "", false
	}

	var body struct {
		OrganizationID string `json:"organizationId"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.OrganizationID == "" {
		return "", false
	}
	return body.OrganizationID, true
}
