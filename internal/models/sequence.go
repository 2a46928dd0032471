package models

import "time"

// SequenceSingletonID is the fixed key of the one certificate_sequence row.
const SequenceSingletonID = "singleton"

// SequenceCounter is the shared monotonically increasing counter backing
// certificate numbers. CurrentValue holds the last issued number; issuing
// increments and returns the new value in one atomic statement.
type SequenceCounter struct {
	ID           string    `db:"id" json:"id"`
	CurrentValue int64     `db:"current_value" json:"current_value"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
