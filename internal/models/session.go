package models

// Role is the permission tier of a logged-in user. Viewer is read-only;
// Editor and Admin may mutate device records.
type Role string

const (
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleAdmin  Role = "Admin"
)

// CanMutate reports whether the role is allowed to create, edit, or
// delete devices.
func (r Role) CanMutate() bool {
	return r == RoleEditor || r == RoleAdmin
}

// User is the cached profile of the logged-in account.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
}

// Session is the durable client-side auth state. The tokens are opaque
// strings; expiry is enforced server-side via 401.
type Session struct {
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	User            *User  `json:"user,omitempty"`
}

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest is the payload for POST /auth/refresh.
type RefreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
