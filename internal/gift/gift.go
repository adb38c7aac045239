// Package gift defines the registry's domain types: gifts as stored remotely,
// the visitor profile collected at identification and the in-memory
// selection a visitor builds before confirming.
package gift

import (
	"errors"
	"regexp"
	"strings"
)

// Gift is a registry item as stored in the remote collection.
type Gift struct {
	ID            string
	Name          string
	Image         string
	Purchased     bool
	PurchaserName string
}

// Selected is the (id, name) pair carried from selection to confirmation.
type Selected struct {
	ID   string
	Name string
}

// Profile holds the visitor's contact details for one session.
type Profile struct {
	Name  string
	Email string
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Field validation messages shown next to the login inputs.
const (
	MsgNameRequired  = "Please enter your name"
	MsgEmailRequired = "Please enter your email"
	MsgEmailInvalid  = "Please enter a valid email"
)

// ProfileError reports per-field validation failures. Empty fields are valid.
type ProfileError struct {
	Name  string
	Email string
}

func (e *ProfileError) Error() string {
	var parts []string
	if e.Name != "" {
		parts = append(parts, "name: "+e.Name)
	}
	if e.Email != "" {
		parts = append(parts, "email: "+e.Email)
	}
	return "invalid profile: " + strings.Join(parts, "; ")
}

// NewProfile validates and trims the visitor's name and email.
func NewProfile(name, email string) (Profile, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	var perr ProfileError
	if name == "" {
		perr.Name = MsgNameRequired
	}
	switch {
	case email == "":
		perr.Email = MsgEmailRequired
	case !emailPattern.MatchString(email):
		perr.Email = MsgEmailInvalid
	}
	if perr.Name != "" || perr.Email != "" {
		return Profile{}, &perr
	}
	return Profile{Name: name, Email: email}, nil
}

// IsZero reports whether no profile has been captured.
func (p Profile) IsZero() bool {
	return p.Name == "" && p.Email == ""
}

// ErrEmptySelection is returned when finalizing a selection with no gifts.
var ErrEmptySelection = errors.New("select at least one gift")
