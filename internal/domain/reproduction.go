package domain

// CustomEvent is an application-specific event emitted by the attack's own
// contracts during the local reproduction. Args are rendered as strings and
// are for display only.
type CustomEvent struct {
	Name    string            `json:"name"`
	Address string            `json:"address,omitempty"`
	Args    map[string]string `json:"args"`
}

// Reproduction is the output of running the exploit fixture against a
// simulated ledger.
type Reproduction struct {
	TxHash       string        `json:"txHash"`
	Logs         []RawLog      `json:"logs"`
	CustomEvents []CustomEvent `json:"customEvents,omitempty"`
}
