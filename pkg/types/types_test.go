package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMail(t *testing.T) {
	data := []byte(`{
		"mail_id": "m1",
		"user_id": "alice@example.com",
		"received_time": "2026-03-14T09:30:00",
		"subject": "Hello",
		"content": "Body text",
		"mailbox": "inbox",
		"folder": "work"
	}`)

	m, err := ParseMail(data)
	require.NoError(t, err)

	assert.Equal(t, "m1", m.MailID)
	assert.Equal(t, "alice@example.com", m.UserID)
	assert.Equal(t, "example.com", m.Domain)
	assert.Equal(t, "Hello", m.Subject)
	assert.Equal(t, "Body text", m.Content)
	assert.Equal(t, "inbox", m.ExtraFilters["filter_mailbox"])
	assert.Equal(t, "work", m.ExtraFilters["filter_folder"])
}

func TestParseMailAliases(t *testing.T) {
	data := []byte(`{
		"mail_id": "m2",
		"user_id": "bob@ex.org",
		"received_time": "2026-03-14 10:00:00",
		"mail_header": "Aliased subject",
		"mail_content": "Aliased body"
	}`)

	m, err := ParseMail(data)
	require.NoError(t, err)

	assert.Equal(t, "Aliased subject", m.Subject)
	assert.Equal(t, "Aliased body", m.Content)
}

func TestParseMailExplicitDomain(t *testing.T) {
	data := []byte(`{
		"mail_id": "m3",
		"user_id": "carol@ignored.net",
		"domain": "tenant.example",
		"received_time": "2026-01-01T00:00:00Z"
	}`)

	m, err := ParseMail(data)
	require.NoError(t, err)
	assert.Equal(t, "tenant.example", m.Domain)
}

func TestParseMailFilterPassthrough(t *testing.T) {
	data := []byte(`{
		"mail_id": "m4",
		"user_id": "d@ex.com",
		"received_time": "2026-01-02T03:04:05",
		"filter_label": "urgent"
	}`)

	m, err := ParseMail(data)
	require.NoError(t, err)
	assert.Equal(t, "urgent", m.ExtraFilters["filter_label"])
}

func TestParseMailErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		mailID string
	}{
		{
			name: "malformed JSON",
			data: `{not json`,
		},
		{
			name: "missing mail_id",
			data: `{"user_id":"a@b.c","received_time":"2026-01-01T00:00:00"}`,
		},
		{
			name:   "missing user_id",
			data:   `{"mail_id":"x1","received_time":"2026-01-01T00:00:00"}`,
			mailID: "x1",
		},
		{
			name:   "missing received_time",
			data:   `{"mail_id":"x2","user_id":"a@b.c"}`,
			mailID: "x2",
		},
		{
			name:   "bad received_time",
			data:   `{"mail_id":"x3","user_id":"a@b.c","received_time":"yesterday"}`,
			mailID: "x3",
		},
		{
			name:   "unresolvable domain",
			data:   `{"mail_id":"x4","user_id":"no-at-sign","received_time":"2026-01-01T00:00:00"}`,
			mailID: "x4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMail([]byte(tt.data))
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.mailID, perr.MailID)
		})
	}
}

func TestSplitYMD(t *testing.T) {
	year, month, day, err := SplitYMD("2026-03-05T08:15:00")
	require.NoError(t, err)
	assert.Equal(t, "2026", year)
	assert.Equal(t, "03", month)
	assert.Equal(t, "05", day)

	_, _, _, err = SplitYMD("not-a-time")
	assert.Error(t, err)
}

func TestProperties(t *testing.T) {
	m := &Mail{
		MailID:       "m1",
		UserID:       "alice@example.com",
		Domain:       "example.com",
		ReceivedTime: "2026-03-14T09:30:00",
		Subject:      "Hello",
		Content:      "Body",
		ExtraFilters: map[string]string{"filter_mailbox": "inbox"},
	}

	props := m.Properties()
	assert.Equal(t, "alice@example.com", props["filter_user_id"])
	assert.Equal(t, "2026", props["filter_year"])
	assert.Equal(t, "03", props["filter_month"])
	assert.Equal(t, "14", props["filter_day"])
	assert.Equal(t, "m1", props["mail_id"])
	assert.Equal(t, "Body", props["search_mail_content"])
	assert.Equal(t, "Hello", props["search_mail_header"])
	assert.Equal(t, "inbox", props["filter_mailbox"])
}

func TestObjectID(t *testing.T) {
	// Valid UUID passes through verbatim
	m := &Mail{MailID: "c6f9e1a2-1234-4b5c-8def-000011112222"}
	assert.Equal(t, "c6f9e1a2-1234-4b5c-8def-000011112222", m.ObjectID())

	// Non-UUID ids map deterministically
	a := &Mail{MailID: "mail00001"}
	b := &Mail{MailID: "mail00001"}
	c := &Mail{MailID: "mail00002"}
	assert.Equal(t, a.ObjectID(), b.ObjectID())
	assert.NotEqual(t, a.ObjectID(), c.ObjectID())
}

func TestExtractMailID(t *testing.T) {
	assert.Equal(t, "m9", ExtractMailID([]byte(`{"mail_id":"m9"}`)))
	assert.Equal(t, "", ExtractMailID([]byte(`{broken`)))
	assert.Equal(t, "", ExtractMailID([]byte(`{}`)))
}
