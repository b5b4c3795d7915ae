package domain

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// TokenLength is the length of the random part of a qrId.
	TokenLength = 8

	// MaxTargetURLLength matches the target_url column width.
	MaxTargetURLLength = 500
)

var (
	qrIDPattern   = regexp.MustCompile(`^([A-Z]{2,10}-)?[A-Z0-9]{8}$`)
	prefixPattern = regexp.MustCompile(`^[A-Z]{2,10}$`)
)

// ValidQrID reports whether s has the public identifier shape.
func ValidQrID(s string) bool {
	return qrIDPattern.MatchString(s)
}

// NormalizePrefix trims and uppercases a prefix. An empty result means "no prefix".
func NormalizePrefix(prefix string) (string, error) {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	if p == "" {
		return "", nil
	}
	if !prefixPattern.MatchString(p) {
		return "", ErrInvalidPrefix
	}
	return p, nil
}

// ValidateTargetURL accepts absolute http(s) URLs only.
func ValidateTargetURL(raw string) error {
	if raw == "" || len(raw) > MaxTargetURLLength {
		return ErrInvalidTargetURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidTargetURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidTargetURL
	}
	return nil
}
