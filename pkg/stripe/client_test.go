package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{WebhookSecret: "whsec"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_123"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_123", WebhookSecret: "whsec", Env: "test"}, nil)
	assert.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec", Env: "staging"}, nil)
	assert.ErrorIs(t, err, errInvalidStripeEnv)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{
		APIKey:        "sk_test_123",
		WebhookSecret: " whsec_abc ",
		Currency:      "EUR",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "test", client.Environment())
	assert.Equal(t, "whsec_abc", client.SigningSecret())
	assert.Equal(t, "eur", client.Currency())
	assert.Equal(t, 15*time.Second, client.Timeout())
	assert.NotNil(t, client.API())
}

func TestNilClientAccessors(t *testing.T) {
	var client *Client
	assert.Nil(t, client.API())
	assert.Empty(t, client.SigningSecret())
	assert.Equal(t, "usd", client.Currency())
	assert.Equal(t, defaultTimeout, client.Timeout())
}
