package ledger

// Row identifies one message in the status ledger
type Row struct {
	MailID       string
	UserID       string
	Domain       string
	ReceivedTime string
}

// FailureRow is a Row plus the reason it failed
type FailureRow struct {
	Row
	ErrorMessage string
}

// Stats aggregates completion counters for a domain or user
type Stats struct {
	CompletedSuccess int `json:"completed_success"`
	CompletedFailure int `json:"completed_failure"`
	Pending          int `json:"pending"`
	Total            int `json:"total"`
}

// Store defines the status ledger operations used by the pipeline.
// Writers upsert by mail_id; each batch of rows commits in one transaction.
type Store interface {
	// UpsertPending records rows as in-flight (is_completed=false)
	UpsertPending(rows ...Row) error

	// MarkSuccess finalizes rows as completed successfully
	MarkSuccess(rows ...Row) error

	// MarkFailure finalizes rows as completed with an error
	MarkFailure(rows ...FailureRow) error

	// DomainStats returns completion counters for one domain
	DomainStats(domain string) (*Stats, error)

	// UserStats returns completion counters for one user
	UserStats(userID string) (*Stats, error)

	// LastCompletedTime returns the max received_time among completed rows,
	// or "" when nothing has completed yet
	LastCompletedTime() (string, error)

	// Close releases the underlying connection
	Close() error
}
