package models

// SessionStatus is the snapshot served by GET /session.
type SessionStatus struct {
	State       string `json:"state"`
	Backend     string `json:"backend"`
	NextTurn    int64  `json:"next_turn"`
	BufferBytes int    `json:"buffer_bytes"`
	Clients     int    `json:"clients"`
}
