package domain

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=15"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally names a refresh token to revoke with the session.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	ResetSecret string `json:"reset_secret" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// UpdateProfileRequest is a partial update: only keys present in the JSON body
// are applied. An explicit empty (or null) addresses list clears addresses.
type UpdateProfileRequest struct {
	Name      Optional[string]    `json:"name"`
	Phone     Optional[string]    `json:"phone"`
	Addresses Optional[[]Address] `json:"addresses"`
}

// Patch converts the request into a repository-level profile patch.
func (r UpdateProfileRequest) Patch() ProfilePatch {
	return ProfilePatch{
		DisplayName: r.Name,
		Phone:       r.Phone,
		Addresses:   r.Addresses,
	}
}

// AdminUpdateRequest carries the account-level fields an admin may change.
type AdminUpdateRequest struct {
	Role     Optional[Role] `json:"role"`
	Verified Optional[bool] `json:"verified"`
	Active   Optional[bool] `json:"active"`
}
