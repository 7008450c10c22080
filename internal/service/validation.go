package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/unclebandit/notification-engine/internal/errors"
)

var validate = validator.New()

func validateEmails(field string, addrs []string) ([]string, error) {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if err := validate.Var(a, "required,email"); err != nil {
			return nil, appErrors.NewValidation(field, fmt.Sprintf("invalid email address %q", a))
		}
		key := strings.ToLower(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out, nil
}

func validateBrandColor(color string) error {
	if color == "" {
		return nil
	}
	if err := validate.Var(color, "hexcolor"); err != nil {
		return appErrors.NewValidation("brandColor", fmt.Sprintf("invalid hex color %q", color))
	}
	return nil
}

func validateLogoURL(u string) error {
	if u == "" {
		return nil
	}
	if err := validate.Var(u, "http_url"); err != nil {
		return appErrors.NewValidation("logoUrl", fmt.Sprintf("invalid URL %q", u))
	}
	return nil
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(field, s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, appErrors.NewValidation(field, fmt.Sprintf("expected HH:MM, got %q", s))
	}
	return t.Hour()*60 + t.Minute(), nil
}
