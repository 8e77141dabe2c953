package dto

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	OrgName  string `json:"org_name,omitempty"`
	OrgType  string `json:"org_type,omitempty"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 8 {
		errors["password"] = "Password must be at least 8 characters"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.OrgType != "" {
		validTypes := map[string]bool{
			"marketing": true, "support": true, "trading": true, "enterprise": true,
		}
		if !validTypes[r.OrgType] {
			errors["org_type"] = "Invalid organization type"
		}
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type RefreshRequest struct {
	RefreshToken   string `json:"refresh_token"`
	OrganizationID string `json:"organizationId,omitempty"`
}

func (r RefreshRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.RefreshToken == "" {
		errors["refresh_token"] = "Refresh token is required"
	}

	return errors
}

type AuthResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	User         UserDTO          `json:"user"`
	Organization *OrganizationDTO `json:"organization,omitempty"`
}

type UserDTO struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive bool   `json:"is_active"`
}

type OrganizationDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	Type             string `json:"type"`
	SubscriptionPlan string `json:"subscription_plan"`
	Role             string `json:"role,omitempty"`
}
