package domain

import (
	"encoding/json"
	"time"
)

// JobEvent is an audited update of a job
type JobEvent struct {
	ID        string          `db:"id" json:"id"`
	JobPrefix string          `db:"job_prefix" json:"jobPrefix"`
	Kind      string          `db:"kind" json:"kind"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

type JobEventTable struct {
	ID        string
	JobPrefix string
	Kind      string
	Payload   string
	CreatedAt string
}

func GetJobEventTable() JobEventTable {
	return JobEventTable{
		ID:        "id",
		JobPrefix: "job_prefix",
		Kind:      "kind",
		Payload:   "payload",
		CreatedAt: "created_at",
	}
}

func (t JobEventTable) GetTableName() string {
	return "job_events"
}
