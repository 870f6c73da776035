package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BatchMax is the upper bound on the number of files in one batch.
// A batch is the unit of work a single worker processes atomically.
const BatchMax = 50

// Mail represents a single parsed mail record
type Mail struct {
	MailID       string
	UserID       string
	Domain       string
	ReceivedTime string
	Subject      string
	Content      string

	// ExtraFilters carries optional filter_* properties (filter_mailbox,
	// filter_folder, plus any filter_* field present in the source record)
	// so schema-driven fields flow through without touching the core.
	ExtraFilters map[string]string
}

// Batch groups files destined for the same tenant
type Batch struct {
	Domain    string
	FilePaths []string
}

// mailRecord mirrors the on-disk JSON shape, including accepted field aliases
type mailRecord struct {
	MailID       string `json:"mail_id"`
	UserID       string `json:"user_id"`
	Domain       string `json:"domain"`
	ReceivedTime string `json:"received_time"`
	Subject      string `json:"subject"`
	MailHeader   string `json:"mail_header"`
	Content      string `json:"content"`
	MailContent  string `json:"mail_content"`
	Mailbox      string `json:"mailbox"`
	Folder       string `json:"folder"`
}

// ParseError is returned when a record cannot be turned into a Mail.
// MailID is best-effort: set when the record carried one even though
// parsing failed, so callers can still key a ledger failure row.
type ParseError struct {
	MailID string
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// ParseMail parses a raw JSON mail record, applying field aliases and
// deriving the domain from user_id when absent
func ParseMail(data []byte) (*Mail, error) {
	var rec mailRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	if rec.MailID == "" {
		return nil, &ParseError{Reason: "missing required field mail_id"}
	}
	if rec.UserID == "" {
		return nil, &ParseError{MailID: rec.MailID, Reason: "missing required field user_id"}
	}
	if rec.ReceivedTime == "" {
		return nil, &ParseError{MailID: rec.MailID, Reason: "missing required field received_time"}
	}
	if _, _, _, err := SplitYMD(rec.ReceivedTime); err != nil {
		return nil, &ParseError{MailID: rec.MailID, Reason: fmt.Sprintf("invalid received_time: %v", err)}
	}

	domain := rec.Domain
	if domain == "" {
		if at := strings.IndexByte(rec.UserID, '@'); at >= 0 && at < len(rec.UserID)-1 {
			domain = rec.UserID[at+1:]
		}
	}
	if domain == "" {
		return nil, &ParseError{MailID: rec.MailID, Reason: "cannot resolve domain from record"}
	}

	// Accepted aliases from producer variants
	subject := rec.Subject
	if subject == "" {
		subject = rec.MailHeader
	}
	content := rec.Content
	if content == "" {
		content = rec.MailContent
	}

	extra := make(map[string]string)
	if rec.Mailbox != "" {
		extra["filter_mailbox"] = rec.Mailbox
	}
	if rec.Folder != "" {
		extra["filter_folder"] = rec.Folder
	}

	// Pass any explicit filter_* fields through verbatim
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		for k, v := range raw {
			if !strings.HasPrefix(k, "filter_") {
				continue
			}
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				extra[k] = s
			}
		}
	}

	return &Mail{
		MailID:       rec.MailID,
		UserID:       rec.UserID,
		Domain:       domain,
		ReceivedTime: rec.ReceivedTime,
		Subject:      subject,
		Content:      content,
		ExtraFilters: extra,
	}, nil
}

// ExtractMailID pulls mail_id out of a possibly-invalid record, for keying
// failure rows when full parsing is not possible. Returns "" when unknown.
func ExtractMailID(data []byte) string {
	var rec struct {
		MailID string `json:"mail_id"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return ""
	}
	return rec.MailID
}

// receivedTimeLayouts are the timestamp shapes accepted for received_time
var receivedTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// SplitYMD splits an ISO-8601 timestamp into zero-padded year, month, day
func SplitYMD(receivedTime string) (year, month, day string, err error) {
	var ts time.Time
	for _, layout := range receivedTimeLayouts {
		ts, err = time.Parse(layout, receivedTime)
		if err == nil {
			return fmt.Sprintf("%04d", ts.Year()),
				fmt.Sprintf("%02d", int(ts.Month())),
				fmt.Sprintf("%02d", ts.Day()),
				nil
		}
	}
	return "", "", "", fmt.Errorf("unrecognized timestamp %q", receivedTime)
}

// Properties maps the mail to its vector-object property set. The vector
// itself is produced server-side by the collection's vectorizer module.
func (m *Mail) Properties() map[string]interface{} {
	year, month, day, _ := SplitYMD(m.ReceivedTime)
	props := map[string]interface{}{
		"filter_user_id":      m.UserID,
		"filter_year":         year,
		"filter_month":        month,
		"filter_day":          day,
		"mail_id":             m.MailID,
		"search_mail_content": m.Content,
		"search_mail_header":  m.Subject,
	}
	for k, v := range m.ExtraFilters {
		props[k] = v
	}
	return props
}

// objectIDNamespace seeds deterministic v5 UUIDs for non-UUID mail ids
var objectIDNamespace = uuid.MustParse("8f3c5a2e-4b1d-4c4a-9f6e-2d7b8a1c0e55")

// ObjectID returns the vector-object UUID for this mail. A mail_id that is
// already a UUID is used verbatim; anything else maps to a deterministic v5
// UUID so re-imports of the same mail overwrite rather than duplicate.
func (m *Mail) ObjectID() string {
	if id, err := uuid.Parse(m.MailID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(objectIDNamespace, []byte(m.MailID)).String()
}
