package services

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials covers both an unknown identifier and a wrong
// password. The two cases are deliberately indistinguishable so callers
// cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ConflictError reports which unique fields a registration collided on.
type ConflictError struct {
	Email       string
	Mobile      string
	EmailTaken  bool
	MobileTaken bool
}

func (e *ConflictError) Error() string {
	switch {
	case e.EmailTaken && e.MobileTaken:
		return fmt.Sprintf("Email '%s' and mobile number '%s' already exist", e.Email, e.Mobile)
	case e.EmailTaken:
		return fmt.Sprintf("Email '%s' already exists", e.Email)
	default:
		return fmt.Sprintf("Mobile number '%s' already exists", e.Mobile)
	}
}
