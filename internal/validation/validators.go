package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/viziersvault/vault-session/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	actionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("tier", validateTier); err != nil {
		panic(fmt.Sprintf("failed to register tier validator: %v", err))
	}
	if err := Validate.RegisterValidation("action_name", validateActionName); err != nil {
		panic(fmt.Sprintf("failed to register action_name validator: %v", err))
	}
}

// validateTier validates that a string is a valid Tier enum value
func validateTier(fl validator.FieldLevel) bool {
	return models.Tier(fl.Field().String()).IsValid()
}

// validateActionName validates the syntactic shape of an action name. Whether
// the action exists in the quota table is decided at admission time.
func validateActionName(fl validator.FieldLevel) bool {
	return actionNamePattern.MatchString(fl.Field().String())
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
