package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for configuration failures. Callers distinguish them with
// errors.Is; the wrapped message carries the offending value.
var (
	ErrInvalidName     = errors.New("invalid agent name")
	ErrInvalidPlatform = errors.New("invalid platform")
	ErrDuplicateAgent  = errors.New("agent already exists")
)

// Supported platform identifiers.
const (
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformYouTube   = "youtube"
	PlatformLinkedIn  = "linkedin"
)

// SupportedPlatforms lists the platforms credentials may be stored for, in
// canonical order.
var SupportedPlatforms = []string{
	PlatformInstagram,
	PlatformTikTok,
	PlatformYouTube,
	PlatformLinkedIn,
}

// Agent names double as storage keys, so the charset is restricted to
// characters that are safe in a filename on every platform we care about.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9 ._-]+$`)

// ValidateName checks that name is usable as an agent identifier: 1-100
// characters from [A-Za-z0-9 ._-], with no leading or trailing dot or space.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > 100 {
		return fmt.Errorf("%w: name exceeds 100 characters", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9 ._-]", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, " ") ||
		strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return fmt.Errorf("%w: %q starts or ends with a dot or space", ErrInvalidName, name)
	}
	return nil
}

// NormalizePlatform maps a platform name to its canonical stored form.
func NormalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// ValidatePlatform checks that platform names one of the supported platforms.
// Comparison is case-insensitive; store and look up the normalized form.
func ValidatePlatform(platform string) error {
	if platform == "" {
		return fmt.Errorf("%w: platform is empty", ErrInvalidPlatform)
	}
	p := NormalizePlatform(platform)
	for _, s := range SupportedPlatforms {
		if p == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (supported: %s)", ErrInvalidPlatform, platform, strings.Join(SupportedPlatforms, ", "))
}

var unsafeChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f ]`)
var underscoreRuns = regexp.MustCompile(`_+`)

// SanitizeFilename maps an agent name to a filesystem-safe storage key.
// For names that pass ValidateName this is nearly the identity (spaces
// become underscores); for arbitrary input it replaces unsafe characters
// with underscores, collapses runs, and strips edge dots and spaces.
// Distinct names can sanitize to the same key; the registry's policy for
// that case is last writer wins.
func SanitizeFilename(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, ". ")
	if s == "" {
		return "untitled"
	}
	return s
}
