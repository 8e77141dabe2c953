package dto

// Error codes returned alongside HTTP statuses so clients can tell apart
// failure modes that share a status (e.g. the 403 variants).
const (
	CodeAuthRequired        = "AUTH_REQUIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeOrgContextRequired  = "ORGANIZATION_CONTEXT_REQUIRED"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeRoleDenied          = "ROLE_DENIED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeInternalError       = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PerPage    int         `json:"per_page"`
	TotalPages int         `json:"total_pages"`
}

type PaginationParams struct {
	Page    int
	PerPage int
}

func (p *PaginationParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	if p.PerPage > 100 {
		p.PerPage = 100
	}
}

func (p *PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}
