package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/auth"
)

func TestSignAndParse(t *testing.T) {
	raw, err := auth.Sign("secret", domain.Actor{UID: "driver-1", Admin: true}, time.Hour)
	require.NoError(t, err)

	claims, err := auth.Parse("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UID: "driver-1", Admin: true}, claims.Actor())
	assert.False(t, claims.IssuedAt().IsZero())
}

func TestParse_Rejects(t *testing.T) {
	raw, err := auth.Sign("secret", domain.Actor{UID: "driver-1"}, time.Hour)
	require.NoError(t, err)

	_, err = auth.Parse("other-secret", raw)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := auth.Sign("secret", domain.Actor{UID: "driver-1"}, -time.Minute)
	require.NoError(t, err)
	_, err = auth.Parse("secret", expired)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = auth.Parse("secret", "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestSignAndParse_Device(t *testing.T) {
	raw, err := auth.Sign("secret", domain.Actor{UID: "driver-1", Device: "pixel-7"}, time.Hour)
	require.NoError(t, err)

	claims, err := auth.Parse("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, "pixel-7", claims.Device)
	assert.Equal(t, "driver-1/pixel-7", claims.Actor().DeviceKey())
}
