package model

import (
	"encoding/json"
	"strings"
)

// StatementStatus is the processing state the service reports for one uploaded statement.
type StatementStatus int

const (
	// StatusCompleted covers every reported state that is neither failed nor processing.
	StatusCompleted StatementStatus = iota
	StatusProcessing
	StatusFailed
)

func (s StatementStatus) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusFailed:
		return "failed"
	default:
		return "completed"
	}
}

// ParseStatementStatus decodes the wire value. Unknown values imply success.
func ParseStatementStatus(raw string) StatementStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "processing":
		return StatusProcessing
	case "failed":
		return StatusFailed
	default:
		return StatusCompleted
	}
}

func (s *StatementStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatementStatus(raw)
	return nil
}

func (s StatementStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// StatementProgress is one entry of the progress array returned with every read.
type StatementProgress struct {
	StatementID string          `json:"statement_id"`
	Status      StatementStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
}
