// Package queue provides background snapshot re-polling over asynq.
package queue

import (
	"encoding/json"
	"fmt"
)

// TypeRefreshSnapshots re-polls statistics for known competitor videos so
// velocity anchors keep accumulating between dashboard visits.
const TypeRefreshSnapshots = "discovery:refresh"

// RefreshPayload is the refresh task payload. With VideoIDs set the task
// targets those videos (still subject to the staleness rule); empty, it
// sweeps the stalest registry records up to Limit.
type RefreshPayload struct {
	VideoIDs []string `json:"video_ids,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Source   string   `json:"source"`
}

// Marshal serializes the payload to JSON.
func (p *RefreshPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalRefreshPayload deserializes JSON to a payload.
func UnmarshalRefreshPayload(data []byte) (*RefreshPayload, error) {
	var payload RefreshPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh payload: %w", err)
	}
	return &payload, nil
}
