package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/profilehub/profiles"
)

var validate = validator.New()

type profileInput struct {
	Username string `validate:"required,max=64"`
	Website  string `validate:"omitempty,url,max=255"`
}

// NormalizeProfile trims the user editable fields. Profiles are normalized
// before validation and stored in that form.
func NormalizeProfile(profile profiles.Profile) profiles.Profile {
	profile.Username = strings.TrimSpace(profile.Username)
	profile.Website = strings.TrimSpace(profile.Website)
	return profile
}

// ValidateProfile checks the user editable fields of a normalized profile.
func ValidateProfile(profile profiles.Profile) error {
	input := profileInput{
		Username: profile.Username,
		Website:  profile.Website,
	}
	if err := validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return &profiles.ValidationError{
				Field:   strings.ToLower(fe.Field()),
				Message: fmt.Sprintf("failed on '%s' validation", fe.Tag()),
			}
		}
		return fmt.Errorf("validate profile: %w", err)
	}
	return nil
}
