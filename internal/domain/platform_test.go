package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	for _, p := range Platforms {
		got, err := ParsePlatform(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParsePlatform("  INSTAGRAM ")
	require.NoError(t, err)
	assert.Equal(t, PlatformInstagram, got)
}

func TestParsePlatform_RejectsUnknown(t *testing.T) {
	for _, raw := range []string{"TIKTOK", "", "shopify", "GOOGLE ADS"} {
		_, err := ParsePlatform(raw)
		assert.ErrorIs(t, err, ErrInvalidPlatform, raw)
		assert.Equal(t, KindState, KindOf(err))
	}
}

func TestPlatform_SupportsSubAccounts(t *testing.T) {
	assert.True(t, PlatformInstagram.SupportsSubAccounts())
	assert.True(t, PlatformGoogleAds.SupportsSubAccounts())
	assert.False(t, PlatformShopify.SupportsSubAccounts())
	assert.False(t, PlatformFacebook.SupportsSubAccounts())
}
