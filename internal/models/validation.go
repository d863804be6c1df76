package models

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

var errPasswordLength = errors.New("must be between 6 and 72 bytes, surrounding spaces excluded")

// passwordRule checks the trimmed byte length, matching what gets hashed.
func passwordRule(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return errors.New("must be a string")
	}
	n := len(strings.TrimSpace(s))
	if n < minPasswordLen || n > maxPasswordLen {
		return errPasswordLength
	}
	return nil
}

var roleRule = validation.In(RoleAdmin, RoleUser).Error("must be one of: admin, user")

// Validate checks a draft before it reaches the store.
func (d UserDraft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&d.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&d.Password, validation.Required, validation.By(passwordRule)),
		validation.Field(&d.Role, roleRule),
	)
}

// Validate checks the fields present in a patch.
func (p UserPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(3, 254), is.Email),
		validation.Field(&p.Password, validation.NilOrNotEmpty, validation.By(passwordRule)),
		validation.Field(&p.Role, validation.NilOrNotEmpty, roleRule),
	)
}
