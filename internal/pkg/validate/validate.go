package validate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	// Report JSON names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Struct validates the given struct using its validate tags.
// Returns an error wrapping domain.ErrValidation or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrValidation)
	}
	return nil
}

// Addresses validates each address of a profile update.
func Addresses(addrs []domain.Address) error {
	for i := range addrs {
		if err := Struct(&addrs[i]); err != nil {
			return fmt.Errorf("addresses[%d]: %w", i, err)
		}
	}
	return nil
}

// Var validates a single value against tag, reporting it under field.
func Var(field string, value interface{}, tag string) error {
	if err := v.Var(value, tag); err != nil {
		if _, ok := err.(validator.ValidationErrors); !ok {
			return err
		}
		return fmt.Errorf("field '%s' failed '%s': %w", field, tag, domain.ErrValidation)
	}
	return nil
}
