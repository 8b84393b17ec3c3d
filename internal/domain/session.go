package domain

// Identity is the signed-in user as reported by the backend on OTP verification.
type Identity struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

const RoleAdmin = "Admin"

// SessionState is the authentication state of the current process. The zero
// value is the anonymous session.
type SessionState struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	AccessToken     string    `json:"access_token,omitempty"`
	Identity        *Identity `json:"identity,omitempty"`
}

func (s SessionState) Anonymous() bool {
	return !s.IsAuthenticated || s.AccessToken == ""
}

func (s SessionState) IsAdmin() bool {
	return s.Identity != nil && s.Identity.Role == RoleAdmin
}
