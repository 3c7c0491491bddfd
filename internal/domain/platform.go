package domain

import (
	"fmt"
	"strings"
)

// Platform identifies an external marketing platform a tenant can connect.
// The set is closed: values outside it are rejected by ParsePlatform.
type Platform string

const (
	PlatformShopify   Platform = "SHOPIFY"
	PlatformGoogleAds Platform = "GOOGLE_ADS"
	PlatformFacebook  Platform = "FACEBOOK"
	PlatformInstagram Platform = "INSTAGRAM"
)

// Platforms lists every recognized platform.
var Platforms = []Platform{
	PlatformShopify,
	PlatformGoogleAds,
	PlatformFacebook,
	PlatformInstagram,
}

// ParsePlatform converts raw input into a Platform.
// Matching is exact (after trimming surrounding whitespace).
func ParsePlatform(raw string) (Platform, error) {
	candidate := Platform(strings.TrimSpace(raw))
	for _, p := range Platforms {
		if candidate == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlatform, raw)
}

// SupportsSubAccounts reports whether the platform exposes several candidate
// accounts behind one connection, among which one is selected as primary.
func (p Platform) SupportsSubAccounts() bool {
	return p == PlatformInstagram || p == PlatformGoogleAds
}

func (p Platform) String() string {
	return string(p)
}
