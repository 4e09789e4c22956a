// Package address performs the structural recipient address check used
// before a message is composed.
package address

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Tag is the validator tag that applies IsValid to a string field.
const Tag = "mailbox"

// notSpaceOrAt matches anything except '@' and whitespace, including the
// Unicode space separators, line/paragraph separators and BOM.
const notSpaceOrAt = `[^\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}@]`

var pattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)

// IsValid reports whether addr has the shape local@domain.tld with no
// whitespace and exactly one '@'. Domains are not resolved.
func IsValid(addr string) bool {
	return pattern.MatchString(addr)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns a shared validator with the mailbox tag registered.
// The returned value is safe for concurrent use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		if err := v.RegisterValidation(Tag, func(fl validator.FieldLevel) bool {
			return IsValid(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}
