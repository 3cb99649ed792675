package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/autoserver-2025.net/internal/config"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret", TTL: time.Minute})

	token, err := svc.GenerateToken(ctx, domain.AuthPayload{Username: "ada", Role: domain.RoleOperator})
	require.NoError(t, err)

	payload, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.AuthPayload{Username: "ada", Role: domain.RoleOperator}, payload)

	other := NewJWTService(&config.JwtConfig{Secret: "other", TTL: time.Minute})
	_, err = other.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.VerifyToken(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret", TTL: time.Minute})
	issued := time.Now()
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken(ctx, domain.AuthPayload{Username: "ada", Role: domain.RoleObserver})
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.VerifyToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	ctx := context.Background()
	svc := NewJWTService(&config.JwtConfig{Secret: "s3cret"})

	hash, err := svc.EncryptPassword(ctx, "pa55")
	require.NoError(t, err)
	assert.NotEqual(t, "pa55", hash)

	ok, err := svc.VerifyPassword(ctx, hash, "pa55")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyPassword(ctx, hash, "wrong")
	assert.Error(t, err)
	assert.False(t, ok)
}
