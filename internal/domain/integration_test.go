package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnection_Validate(t *testing.T) {
	connected := &Connection{
		TenantID:    "t1",
		Platform:    PlatformInstagram,
		Status:      StatusConnected,
		Credentials: Credentials{AccessToken: "tok"},
		CandidateSubAccounts: []SubAccount{
			{ID: "ig-1", DisplayName: "brand"},
			{ID: "ig-2", DisplayName: "outlet"},
		},
		PrimarySubAccountID: "ig-2",
	}
	assert.NoError(t, connected.Validate())

	noCreds := connected.Clone()
	noCreds.Credentials = Credentials{}
	assert.ErrorIs(t, noCreds.Validate(), ErrValidation)

	danglingPrimary := connected.Clone()
	danglingPrimary.PrimarySubAccountID = "ig-9"
	assert.ErrorIs(t, danglingPrimary.Validate(), ErrUnknownSubAccount)

	shopify := &Connection{
		TenantID:             "t1",
		Platform:             PlatformShopify,
		Status:               StatusConnected,
		Credentials:          Credentials{AccessToken: "tok"},
		CandidateSubAccounts: []SubAccount{{ID: "x"}},
	}
	assert.ErrorIs(t, shopify.Validate(), ErrUnsupportedOperation)
}

func TestConnection_PrimaryAccessors(t *testing.T) {
	c := &Connection{
		Platform:             PlatformGoogleAds,
		Status:               StatusConnected,
		CandidateSubAccounts: []SubAccount{{ID: "123-456-7890", DisplayName: "Main"}},
	}
	_, ok := c.PrimarySubAccount()
	assert.False(t, ok)
	assert.False(t, c.ImplicitlyPrimary())

	c.PrimarySubAccountID = "123-456-7890"
	sa, ok := c.PrimarySubAccount()
	assert.True(t, ok)
	assert.Equal(t, "Main", sa.DisplayName)

	shop := &Connection{Platform: PlatformShopify, Status: StatusConnected}
	assert.True(t, shop.ImplicitlyPrimary())
}

func TestConnection_CloneIsDeep(t *testing.T) {
	exp := time.Now()
	c := &Connection{
		Credentials:          Credentials{AccessToken: "a", ExpiresAt: &exp, Scopes: []string{"s"}},
		CandidateSubAccounts: []SubAccount{{ID: "1"}},
	}
	clone := c.Clone()
	clone.CandidateSubAccounts[0].ID = "2"
	clone.Credentials.Scopes[0] = "x"
	*clone.Credentials.ExpiresAt = exp.Add(time.Hour)

	assert.Equal(t, "1", c.CandidateSubAccounts[0].ID)
	assert.Equal(t, "s", c.Credentials.Scopes[0])
	assert.Equal(t, exp, *c.Credentials.ExpiresAt)
}
