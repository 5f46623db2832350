package password

import (
	"fmt"

	"github.com/go-identity-api/internal/domain"
	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	defaultMinLength = 8
	// bcrypt ignores everything after 72 bytes.
	maxBytes = 72
)

// Policy is the password strength policy applied at registration and on every
// password set.
type Policy struct {
	MinLength int
	// Strict requires at least one ASCII upper, lower, digit and symbol. Any
	// other character, accented letters included, counts as a symbol.
	Strict bool
	// MinScore is the minimum zxcvbn score (0-4); 0 disables the check.
	MinScore int
}

// Validate returns an error wrapping domain.ErrValidation describing the first
// violated rule. userInputs (email, name) are penalised by the strength estimator.
func (p Policy) Validate(pw string, userInputs ...string) error {
	minLen := p.MinLength
	if minLen < defaultMinLength {
		minLen = defaultMinLength
	}
	if len([]rune(pw)) < minLen {
		return fmt.Errorf("password must be at least %d characters long: %w", minLen, domain.ErrValidation)
	}
	if len(pw) > maxBytes {
		return fmt.Errorf("password must be at most %d bytes long: %w", maxBytes, domain.ErrValidation)
	}
	if p.Strict {
		var upper, lower, digit, symbol bool
		for _, r := range pw {
			switch {
			case 'A' <= r && r <= 'Z':
				upper = true
			case 'a' <= r && r <= 'z':
				lower = true
			case '0' <= r && r <= '9':
				digit = true
			default:
				symbol = true
			}
		}
		switch {
		case !upper:
			return fmt.Errorf("password must contain at least one uppercase letter: %w", domain.ErrValidation)
		case !lower:
			return fmt.Errorf("password must contain at least one lowercase letter: %w", domain.ErrValidation)
		case !digit:
			return fmt.Errorf("password must contain at least one digit: %w", domain.ErrValidation)
		case !symbol:
			return fmt.Errorf("password must contain at least one special character: %w", domain.ErrValidation)
		}
	}
	if p.MinScore > 0 {
		if s := zxcvbn.PasswordStrength(pw, userInputs); s.Score < p.MinScore {
			return fmt.Errorf("password is too easy to guess: %w", domain.ErrValidation)
		}
	}
	return nil
}
