package nlp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mshogin/assistant/internal/domain/models"
)

// addressPattern is the standard address shape used across the extractor
// and the validator.
var addressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var fullAddressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// commonDomains are well-known mail domains used for typo suggestions.
// An exact match is always accepted; a domain within edit distance 2 of
// one of these is flagged with the corrected address as a suggestion.
var commonDomains = []string{
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"icloud.com",
	"aol.com",
	"protonmail.com",
	"live.com",
	"mail.com",
	"msn.com",
}

// AddressChecker validates email addresses and proposes corrections for
// plausible typos. It is a pure function of its input.
type AddressChecker struct{}

// NewAddressChecker creates an AddressChecker.
func NewAddressChecker() *AddressChecker {
	return &AddressChecker{}
}

// Validate checks the address syntactically, then against common mail
// domains for likely typos. A failed validation carries a human-readable
// reason and, when one can be inferred, a suggested correction.
func (c *AddressChecker) Validate(address string) models.AddressValidation {
	trimmed := strings.TrimSpace(address)

	if trimmed == "" {
		return models.AddressValidation{Valid: false, ErrorMessage: "The address is empty."}
	}

	if strings.Count(trimmed, "@") != 1 {
		return models.AddressValidation{
			Valid:        false,
			ErrorMessage: "An email address needs exactly one '@' separator.",
		}
	}

	parts := strings.SplitN(trimmed, "@", 2)
	local, domain := parts[0], parts[1]

	if local == "" {
		return models.AddressValidation{
			Valid:        false,
			ErrorMessage: "The part before '@' is missing.",
		}
	}

	if !strings.Contains(domain, ".") {
		validation := models.AddressValidation{
			Valid:        false,
			ErrorMessage: "The domain is missing an extension (like .com).",
		}
		if domainLabelPattern.MatchString(domain) {
			validation.SuggestedCorrection = fmt.Sprintf("%s@%s.com", local, domain)
		}
		return validation
	}

	if !fullAddressPattern.MatchString(trimmed) {
		return models.AddressValidation{
			Valid:        false,
			ErrorMessage: "The address contains characters that are not allowed.",
		}
	}

	// Known mail domains: accept exact matches, flag near misses.
	lowerDomain := strings.ToLower(domain)
	for _, known := range commonDomains {
		if lowerDomain == known {
			return models.AddressValidation{Valid: true}
		}
	}
	for _, known := range commonDomains {
		if levenshtein.ComputeDistance(lowerDomain, known) <= 2 {
			return models.AddressValidation{
				Valid:               false,
				ErrorMessage:        fmt.Sprintf("The domain '%s' looks like a typo.", domain),
				SuggestedCorrection: fmt.Sprintf("%s@%s", local, known),
			}
		}
	}

	return models.AddressValidation{Valid: true}
}

var domainLabelPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)

// LooksLikeAddress reports whether the text is address-shaped enough to
// route through validation: the meeting flow validates anything with an
// '@' or a dot rather than treating it as a plain name.
func LooksLikeAddress(text string) bool {
	return strings.Contains(text, "@") || strings.Contains(text, ".")
}

// FindAddresses returns every email address in the message, in order of
// appearance.
func FindAddresses(message string) []string {
	return addressPattern.FindAllString(message, -1)
}
