package config

import "os"

type AppConfig struct {
	DebugMode      bool
	LogLevel       string
	ServerConfig   *ServerConfig
	InputConfig    *InputConfig
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
	JwtConfig      *JwtConfig
	AuditConfig    *AuditConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServerConfig:   NewServerConfig(),
		InputConfig:    NewInputConfig(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
		JwtConfig:      NewJwtConfig(),
		AuditConfig:    NewAuditConfig(),
	}
}
