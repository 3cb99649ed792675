package config

type ServerConfig struct {
	Prefix     string
	TCPAddress string
	HTTPPort   int
}

func NewServerConfig() *ServerConfig {
	return &ServerConfig{
		Prefix:     getEnv("SERVER_PREFIX", "AUTOSERVER"),
		TCPAddress: getEnv("TCP_ADDRESS", ":9000"),
		HTTPPort:   getIntEnv("HTTP_PORT", 8082),
	}
}
