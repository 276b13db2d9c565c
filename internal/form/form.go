// Package form validates user input before it reaches the auth API.
package form

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f Login) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Password, validation.Required),
	)
}

type Register struct {
	Fullname             string `json:"fullname"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (f Register) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Fullname, validation.Required),
		validation.Field(&f.Email, validation.Required, is.Email, validation.Length(3, 320)),
		validation.Field(&f.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&f.PasswordConfirmation,
			validation.Required,
			validation.By(equals(f.Password)),
		),
	)
}

type ForgotPassword struct {
	Email string `json:"email"`
}

func (f ForgotPassword) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email, validation.Length(3, 320)),
	)
}

type ResetPassword struct {
	Email                string `json:"email"`
	Token                string `json:"token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (f ResetPassword) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, is.Email, validation.Length(3, 320)),
		validation.Field(&f.Token, validation.Required),
		validation.Field(&f.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&f.PasswordConfirmation,
			validation.Required,
			validation.Length(8, 100),
			validation.By(equals(f.Password)),
		),
	)
}

// VerifyEmail confirms a sign-up with the code the SSO service emailed.
type VerifyEmail struct {
	Session string `json:"session"`
	Code    string `json:"code"`
}

func (f VerifyEmail) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Session, validation.Required),
		validation.Field(&f.Code, validation.Required, is.Digit),
	)
}

var ErrMismatch = errors.New("values must match")

func equals(want string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != want {
			return ErrMismatch
		}
		return nil
	}
}
