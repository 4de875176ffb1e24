package errors

import (
	"regexp"
	"unicode"
)

// refDesRegex matches reference designators such as R1, LED3, J10 or U1A.
var refDesRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidateReference validates a component reference designator.
//
// The validation rules are intentionally conservative:
//   - No empty references
//   - Maximum length of 64 characters
//   - Must start with a letter, then letters, digits or underscores
//
// Dots are rejected because "REF.PIN" is the endpoint notation.
func ValidateReference(ref string) error {
	if ref == "" {
		return New(ErrCodeInvalidInput, "component reference cannot be empty")
	}
	if len(ref) > 64 {
		return New(ErrCodeInvalidInput, "component reference too long (max 64 characters): %q", ref).About(ref)
	}
	if !refDesRegex.MatchString(ref) {
		return New(ErrCodeInvalidInput, "invalid component reference: %q", ref).About(ref)
	}
	return nil
}

// ValidateNetName validates a net name.
// Net names are free-form (e.g. "+3V3", "LED_ANODE", "/usb/D+") but must be
// non-empty, reasonably short, and free of control characters and whitespace.
func ValidateNetName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "net name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "net name too long (max 128 characters)").About(name)
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "net name contains invalid characters: %q", name).About(name)
		}
	}
	return nil
}
