package domain

// TraceRecord is a cached trace as held by a storage backend.
// Payload is the versioned JSON envelope written by the trace cache.
type TraceRecord struct {
	Network   string // PK part 1
	TxHash    string // PK part 2, lower-case 0x-prefixed
	Payload   []byte
	FetchedAt int64 // Unix ms
}

// ReportRecord is an archived comparison report.
type ReportRecord struct {
	ReportID       string // PK
	Network        string
	TxHash         string
	LocalTxHash    string
	AlignmentScore int
	GeneratedAt    int64  // Unix ms
	Payload        []byte // codec-encoded report JSON
	CreatedAt      int64  // set by the store
}

// TransferRecord is a TransferEvent archived under a report.
type TransferRecord struct {
	TransferID string // PK, SHA256(report_id|origin|position)
	ReportID   string
	Position   int // index within its origin's list
	TransferEvent
}
