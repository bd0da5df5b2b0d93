// Package classify assigns a display category to a message from its
// subject, sender address and preview text.
package classify

import (
	"regexp"
	"strings"

	"github.com/nhle/tempmail/internal/model"
)

type rule struct {
	category model.Category
	pattern  *regexp.Regexp
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		category: model.CategoryVerification,
		pattern: regexp.MustCompile(
			`code|verify|verification|otp|confirm|activation|pin\b|passcode|one-time|doğrulama|kod|şifre`,
		),
	},
	{
		category: model.CategorySecurity,
		pattern: regexp.MustCompile(
			`security|alert|reset password|password reset|suspicious|login attempt|new login|sign-in|güvenlik|giriş`,
		),
	},
	{
		category: model.CategoryNewsletter,
		pattern: regexp.MustCompile(
			`newsletter|bülten|weekly|digest|unsubscribe|\d+% off|\bsale\b|\bdeals?\b|promo|fırsat|indirim`,
		),
	},
}

// Classify returns the first category whose keywords appear in the
// lowercased concatenation of subject, from and intro, or Other.
func Classify(subject, from, intro string) model.Category {
	text := strings.ToLower(subject + " " + from + " " + intro)
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.category
		}
	}
	return model.CategoryOther
}
