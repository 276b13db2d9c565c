package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse keeps the user raw; its shape varies between backends.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   float64        `json:"expires_in"`
	User        map[string]any `json:"user,omitempty"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email                string `json:"email"`
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// LoginResult is what a provider hands back after a login.
type LoginResult struct {
	Auth Auth
	User map[string]any
}
