package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// User is an authenticated account. All product records are scoped by ID.
type User struct {
	ID                   string    `bson:"_id" json:"uid"`
	Email                string    `bson:"email" json:"email"`
	PasswordHash         string    `bson:"passwordHash" json:"-"`
	Phone                string    `bson:"phone,omitempty" json:"phone,omitempty"`
	NotificationsEnabled bool      `bson:"notificationsEnabled" json:"notificationsEnabled"`
	CreatedAt            time.Time `bson:"createdAt" json:"createdAt"`
}

// AuthEvent is delivered on every sign-in and sign-out. User is nil on sign-out.
type AuthEvent struct {
	UserID string
	User   *User
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NotificationPermission is the body of the permission request endpoint.
type NotificationPermission struct {
	Enabled bool   `json:"enabled"`
	Phone   string `json:"phone" validate:"omitempty,e164"`
}

var authMessages = map[string]string{
	"email":           "enter a valid email address",
	"password":        "password must be at least 6 characters",
	"confirmPassword": "passwords do not match",
	"phone":           "phone must be in international format, e.g. +224622350064",
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize trims and lower-cases the email.
func (in RegisterInput) Normalize() RegisterInput {
	in.Email = NormalizeEmail(in.Email)
	return in
}

// Validate checks the sign-up form.
func (in RegisterInput) Validate() error {
	return validateForm(in)
}

// Validate checks the sign-in form.
func (in LoginInput) Validate() error {
	return validateForm(in)
}

// Validate checks the permission request.
func (in NotificationPermission) Validate() error {
	return validateForm(in)
}

func validateForm(form any) error {
	err := inputValidate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), authMessages[fe.Field()])
	}
	return verr
}
