package model

import "time"

// Auth is what a successful login produces. Only AuthToken is persisted.
type Auth struct {
	AuthToken    string    `json:"auth_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    time.Time `json:"expires_in"`
}

type Address struct {
	AddressLine string `json:"addressLine"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostCode    string `json:"postCode"`
}

type SocialNetworks struct {
	LinkedIn  string `json:"linkedIn"`
	Facebook  string `json:"facebook"`
	Twitter   string `json:"twitter"`
	Instagram string `json:"instagram"`
}

type User struct {
	ID             int64           `json:"id"`
	Username       string          `json:"username"`
	Password       string          `json:"password,omitempty"`
	Fullname       string          `json:"fullname"`
	Firstname      string          `json:"firstname"`
	Lastname       string          `json:"lastname"`
	Email          string          `json:"email"`
	Pic            string          `json:"pic"`
	Roles          []string        `json:"roles"`
	Occupation     string          `json:"occupation"`
	CompanyName    string          `json:"companyName"`
	Phone          string          `json:"phone"`
	Address        *Address        `json:"address,omitempty"`
	SocialNetworks *SocialNetworks `json:"socialNetworks,omitempty"`
}

// Session pairs the bearer token with the profile it authenticates.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Claims is a decoded, unverified token payload.
type Claims map[string]any

// Exp returns the exp claim in seconds when it is numeric.
func (c Claims) Exp() (float64, bool) {
	switch v := c["exp"].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
