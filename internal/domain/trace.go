package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TraceSchemaVersion is bumped whenever TraceResult changes shape.
// Cached traces with a different version are treated as unreadable.
const TraceSchemaVersion = 1

// RawLog is an undecoded event log as hex strings, exactly as the source
// reported it. Both the trace source and the local receipt are converted to
// this form before extraction.
type RawLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// TraceLog is one log entry of a trace. Name is the provider's decoded event
// name, when it has one.
type TraceLog struct {
	Name string `json:"name,omitempty"`
	Raw  RawLog `json:"raw"`
}

// CallNode is a single frame of the call tree.
type CallNode struct {
	Type         string   `json:"type"`
	CallType     string   `json:"callType,omitempty"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	Value        string   `json:"value,omitempty"`
	Gas          Quantity `json:"gas"`
	GasUsed      Quantity `json:"gasUsed"`
	Method       string   `json:"method,omitempty"`
	Input        string   `json:"input,omitempty"`
	Output       string   `json:"output,omitempty"`
	TraceAddress []int    `json:"traceAddress"`
	Error        string   `json:"error,omitempty"`
}

// Depth returns the nesting depth of the frame (0 for the root call).
func (n CallNode) Depth() int {
	return len(n.TraceAddress)
}

// AssetInfo describes the asset involved in an AssetChange.
type AssetInfo struct {
	Standard        string `json:"standard,omitempty"`
	Type            string `json:"type,omitempty"`
	ContractAddress string `json:"contractAddress"`
	Symbol          string `json:"symbol,omitempty"`
	Name            string `json:"name,omitempty"`
	Decimals        *int   `json:"decimals,omitempty"`
}

// AssetChange is a balance movement reported by the trace source.
// Only its asset metadata is consumed; amounts are re-derived from logs.
type AssetChange struct {
	AssetInfo AssetInfo `json:"assetInfo"`
	Type      string    `json:"type"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	RawAmount string    `json:"rawAmount,omitempty"`
	Amount    string    `json:"amount,omitempty"`
}

// TraceResult is the typed boundary schema for a fetched transaction trace.
// Fetched once per run and immutable afterwards.
type TraceResult struct {
	Logs         []TraceLog    `json:"logs"`
	Trace        []CallNode    `json:"trace"`
	AssetChanges []AssetChange `json:"assetChanges,omitempty"`
}

// RawLogs returns the raw log records in trace order.
func (t *TraceResult) RawLogs() []RawLog {
	if t == nil {
		return nil
	}
	logs := make([]RawLog, len(t.Logs))
	for i, l := range t.Logs {
		logs[i] = l.Raw
	}
	return logs
}

// Quantity is an unsigned integer that decodes from either a JSON number or a
// hex/decimal string. Trace providers are not consistent about which they emit.
type Quantity uint64

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*q = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}

	var (
		v   uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	*q = Quantity(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(q), 10)), nil
}
