// Package referral builds links to the treatment locator for a US ZIP code.
package referral

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidZip is returned for anything other than exactly five digits.
var ErrInvalidZip = errors.New("zip code must be exactly five digits")

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// Service resolves ZIP codes against a locator base URL.
type Service struct {
	base *url.URL
}

// NewService parses baseURL once.
func NewService(baseURL string) (*Service, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse referral base url %q", baseURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("referral base url %q must be absolute", baseURL)
	}
	return &Service{base: base}, nil
}

// Lookup returns the locator URL for zip. Surrounding spaces are ignored.
func (s *Service) Lookup(zip string) (string, error) {
	zip = strings.TrimSpace(zip)
	if !zipPattern.MatchString(zip) {
		return "", ErrInvalidZip
	}

	u := *s.base
	query := u.Query()
	query.Set("zipcode", zip)
	u.RawQuery = query.Encode()
	return u.String(), nil
}
