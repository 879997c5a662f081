package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
)

// AlumniProfile extends a User with alumni contact details. A User has at most one.
type AlumniProfile struct {
	UserID         string    `json:"user_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	EmailAddress   string    `json:"email_address"`
	MobileNumber   string    `json:"mobile_number"` // encrypted at rest
	Program        string    `json:"program"`
	GraduationYear int       `json:"graduation_year"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InactiveUser is a User whose last login is at or before a cutoff, with its profile if any.
type InactiveUser struct {
	User    User
	Profile *AlumniProfile
}

// Recipient returns the profile email, empty when the user has no profile or no email.
func (iu InactiveUser) Recipient() string {
	if iu.Profile == nil {
		return ""
	}
	return iu.Profile.EmailAddress
}

type UpdateProfile struct {
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	EmailAddress   string `json:"email_address" validate:"omitempty,email"`
	MobileNumber   string `json:"mobile_number" validate:"omitempty,mobile"`
	Program        string `json:"program"`
	GraduationYear int    `json:"graduation_year" validate:"omitempty,gradyear"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FirstName = core.CleanString(up.FirstName)
	up.LastName = core.CleanString(up.LastName)
	up.EmailAddress = core.CleanString(up.EmailAddress, true /* lower */)
	up.MobileNumber = core.CleanString(up.MobileNumber)
	up.Program = core.CleanString(up.Program)
	return validate.Struct(up)
}
