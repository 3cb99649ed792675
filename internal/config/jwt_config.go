package config

import "time"

type JwtConfig struct {
	Secret string
	TTL    time.Duration
}

func NewJwtConfig() *JwtConfig {
	return &JwtConfig{
		Secret: getEnv("JWT_SECRET", ""),
		TTL:    time.Duration(getIntEnv("JWT_TTL_MIN", 60)) * time.Minute,
	}
}

// Enabled reports whether access control is switched on
func (c *JwtConfig) Enabled() bool {
	return c.Secret != ""
}
