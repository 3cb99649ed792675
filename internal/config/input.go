package config

import "time"

type InputConfig struct {
	// ReplyTimeout bounds how long a procedure waits for user input. Zero waits
	// until a reply arrives or the job is halted.
	ReplyTimeout time.Duration
}

func NewInputConfig() *InputConfig {
	return &InputConfig{
		ReplyTimeout: time.Duration(getIntEnv("INPUT_TIMEOUT_SEC", 0)) * time.Second,
	}
}
