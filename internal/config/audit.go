package config

import "time"

type AuditConfig struct {
	// Retention is how long job events are kept. Zero keeps them forever.
	Retention     time.Duration
	PruneInterval time.Duration
}

func NewAuditConfig() *AuditConfig {
	return &AuditConfig{
		Retention:     time.Duration(getIntEnv("AUDIT_RETENTION_HOURS", 0)) * time.Hour,
		PruneInterval: time.Duration(getIntEnv("AUDIT_PRUNE_INTERVAL_MIN", 60)) * time.Minute,
	}
}

// Enabled reports whether old events are pruned
func (c *AuditConfig) Enabled() bool {
	return c.Retention > 0 && c.PruneInterval > 0
}
