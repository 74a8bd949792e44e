// Package pin holds the 4-digit PIN rules and the PIN entry dialog state
// machine used for both first-run creation and verification.
package pin

import "errors"

// Length is the fixed number of digits in a PIN.
const Length = 4

var (
	ErrInvalidPIN = errors.New("pin: must be exactly 4 digits")
	ErrIncomplete = errors.New("pin: input is not 4 digits")
	ErrClosed     = errors.New("pin: dialog is not open")
)

// Validate reports whether s is a well-formed PIN.
func Validate(s string) error {
	if len(s) != Length {
		return ErrInvalidPIN
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(rune(s[i])) {
			return ErrInvalidPIN
		}
	}
	return nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
