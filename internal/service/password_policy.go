package service

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// PasswordPolicy is the configurable rule set applied to new passwords.
type PasswordPolicy struct {
	MinLength        int  `yaml:"min_length"`
	RequireUppercase bool `yaml:"require_uppercase"`
	RequireLowercase bool `yaml:"require_lowercase"`
	RequireNumber    bool `yaml:"require_number"`
	RequireSpecial   bool `yaml:"require_special"`
	// MinStrengthScore is a zxcvbn score from 0 to 4. Zero disables the check.
	MinStrengthScore int `yaml:"min_strength_score"`
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}
}

// Violations lists every rule the password breaks, in a stable order.
func (p PasswordPolicy) Violations(password string, userInputs ...string) []string {
	var violations []string
	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("Password must be at least %d characters long", p.MinLength))
	}
	if len(password) > maxPasswordBytes {
		violations = append(violations, fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if p.RequireUppercase && !upper {
		violations = append(violations, "Password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !lower {
		violations = append(violations, "Password must contain at least one lowercase letter")
	}
	if p.RequireNumber && !digit {
		violations = append(violations, "Password must contain at least one number")
	}
	if p.RequireSpecial && !special {
		violations = append(violations, "Password must contain at least one special character")
	}

	if p.MinStrengthScore > 0 && password != "" {
		if zxcvbn.PasswordStrength(password, userInputs).Score < p.MinStrengthScore {
			violations = append(violations, "Password is too easy to guess")
		}
	}
	return violations
}

func (p PasswordPolicy) Validate(password string, userInputs ...string) error {
	violations := p.Violations(password, userInputs...)
	if len(violations) == 0 {
		return nil
	}
	return newValidationError("Password does not meet requirements", violations...)
}

func (p PasswordPolicy) isZero() bool {
	return p == PasswordPolicy{}
}
