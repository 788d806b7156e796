package hyperscape

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical platform identifiers understood by the search endpoint
const (
	PlatformUplay = "uplay"
	PlatformXbox  = "xbl"
	PlatformPSN   = "psn"
)

// DefaultPlatform is assumed when a user gives no platform
const DefaultPlatform = PlatformUplay

// ErrUnknownPlatform is returned for aliases that map to no platform
var ErrUnknownPlatform = errors.New("unknown platform")

var platformAliases = map[string]string{
	"uplay": PlatformUplay,
	"pc":    PlatformUplay,
	"xbox":  PlatformXbox,
	"xbl":   PlatformXbox,
	"psn":   PlatformPSN,
	"ps":    PlatformPSN,
	"ps4":   PlatformPSN,
	"ps5":   PlatformPSN,
}

// NormalizePlatform maps a user supplied alias ("pc", "xbox", "ps5", ...) to
// its canonical platform identifier.
func NormalizePlatform(alias string) (string, error) {
	if p, ok := platformAliases[strings.ToLower(strings.TrimSpace(alias))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, alias)
}
