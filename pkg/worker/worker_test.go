package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailvec/mailvec/pkg/ledger"
	"github.com/mailvec/mailvec/pkg/log"
	"github.com/mailvec/mailvec/pkg/queue"
	"github.com/mailvec/mailvec/pkg/stage"
	"github.com/mailvec/mailvec/pkg/types"
	"github.com/mailvec/mailvec/pkg/vectordb"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, Output: os.Stderr})
}

// fakeSink records import calls and returns scripted outcomes
type fakeSink struct {
	tenants   []string
	imports   [][]*types.Mail
	failNext  []vectordb.ObjectFailure
	transport error
	tenantErr error
}

func (f *fakeSink) EnsureCollection(ctx context.Context) error { return nil }

func (f *fakeSink) EnsureTenant(ctx context.Context, domain string) error {
	if f.tenantErr != nil {
		return f.tenantErr
	}
	f.tenants = append(f.tenants, domain)
	return nil
}

func (f *fakeSink) ImportBatch(ctx context.Context, domain string, mails []*types.Mail) ([]vectordb.ObjectFailure, error) {
	if f.transport != nil {
		return nil, f.transport
	}
	f.imports = append(f.imports, mails)
	return f.failNext, nil
}

func (f *fakeSink) Close() error { return nil }

type fixture struct {
	stager *stage.Stager
	store  *ledger.SQLiteStore
	sink   *fakeSink
	w      *worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	stager, err := stage.New(
		filepath.Join(root, "wait"),
		filepath.Join(root, "run"),
		filepath.Join(root, "buggy"),
	)
	require.NoError(t, err)

	store, err := ledger.Open(filepath.Join(root, "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := &fakeSink{}
	return &fixture{
		stager: stager,
		store:  store,
		sink:   sink,
		w: &worker{
			name:   "worker-test",
			queue:  queue.New(1),
			stager: stager,
			ledger: store,
			sink:   sink,
			log:    log.WithWorker("worker-test"),
		},
	}
}

func (f *fixture) runFile(t *testing.T, name, content string) string {
	t.Helper()
	path := f.stager.RunPath(name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func mailJSON(mailID, userID string) string {
	return fmt.Sprintf(
		`{"mail_id":%q,"user_id":%q,"received_time":"2026-03-14T09:30:00","subject":"s","content":"c"}`,
		mailID, userID,
	)
}

func TestProcessBatchHappyPath(t *testing.T) {
	f := newFixture(t)

	paths := []string{
		f.runFile(t, "m1__domain=ex.com__.json", mailJSON("m1", "a@ex.com")),
		f.runFile(t, "m2__domain=ex.com__.json", mailJSON("m2", "a@ex.com")),
		f.runFile(t, "m3__domain=ex.com__.json", mailJSON("m3", "a@ex.com")),
	}

	f.w.processBatch(context.Background(), &types.Batch{Domain: "ex.com", FilePaths: paths})

	// One tenant ensure and one bulk import for the whole batch
	assert.Equal(t, []string{"ex.com"}, f.sink.tenants)
	require.Len(t, f.sink.imports, 1)
	assert.Len(t, f.sink.imports[0], 3)

	// Files deleted, ledger all success
	for _, p := range paths {
		assert.NoFileExists(t, p)
	}
	stats, err := f.store.DomainStats("ex.com")
	require.NoError(t, err)
	assert.Equal(t, &ledger.Stats{CompletedSuccess: 3, Total: 3}, stats)
}

func TestProcessBatchMixedParseFailure(t *testing.T) {
	f := newFixture(t)

	good1 := f.runFile(t, "m1__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))
	bad := f.runFile(t, "m2__domain=ex.com__.json", `{broken`)
	good2 := f.runFile(t, "m3__domain=ex.com__.json", mailJSON("m3", "a@ex.com"))

	f.w.processBatch(context.Background(), &types.Batch{
		Domain:    "ex.com",
		FilePaths: []string{good1, bad, good2},
	})

	// Import saw only the two parseable mails
	require.Len(t, f.sink.imports, 1)
	assert.Len(t, f.sink.imports[0], 2)

	// The malformed file moved to buggy; the others were deleted
	assert.FileExists(t, f.stager.BuggyPath("m2__domain=ex.com__.json"))
	assert.NoFileExists(t, good1)
	assert.NoFileExists(t, good2)

	stats, err := f.store.DomainStats("ex.com")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CompletedSuccess)
}

func TestProcessBatchParseFailureRowWhenIDKnown(t *testing.T) {
	f := newFixture(t)

	// Valid JSON with a mail_id but missing user_id: failure row is keyed
	bad := f.runFile(t, "x.json", `{"mail_id":"mx","received_time":"2026-01-01T00:00:00"}`)

	f.w.processBatch(context.Background(), &types.Batch{Domain: "ex.com", FilePaths: []string{bad}})

	assert.FileExists(t, f.stager.BuggyPath("x.json"))
	stats, err := f.store.UserStats("")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedFailure)
}

func TestProcessBatchDuplicateMailID(t *testing.T) {
	f := newFixture(t)

	// Two files carry the same mail_id; they collapse to one vector object
	// but each file must still reach a terminal state on its own path
	first := f.runFile(t, "m1__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))
	second := f.runFile(t, "m1-resend__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))

	f.w.processBatch(context.Background(), &types.Batch{
		Domain:    "ex.com",
		FilePaths: []string{first, second},
	})

	require.Len(t, f.sink.imports, 1)
	assert.Len(t, f.sink.imports[0], 2)

	// Neither file stays behind in run/
	assert.NoFileExists(t, first)
	assert.NoFileExists(t, second)

	// One ledger row: both files upsert the same key
	stats, err := f.store.DomainStats("ex.com")
	require.NoError(t, err)
	assert.Equal(t, &ledger.Stats{CompletedSuccess: 1, Total: 1}, stats)
}

func TestProcessBatchDuplicateMailIDRejected(t *testing.T) {
	f := newFixture(t)

	first := f.runFile(t, "m1__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))
	second := f.runFile(t, "m1-resend__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))
	f.sink.failNext = []vectordb.ObjectFailure{{MailID: "m1", Message: "vectorizer rejected input"}}

	f.w.processBatch(context.Background(), &types.Batch{
		Domain:    "ex.com",
		FilePaths: []string{first, second},
	})

	// The shared object failed, so both files land in buggy/
	assert.NoFileExists(t, first)
	assert.NoFileExists(t, second)
	assert.FileExists(t, f.stager.BuggyPath("m1__domain=ex.com__.json"))
	assert.FileExists(t, f.stager.BuggyPath("m1-resend__domain=ex.com__.json"))

	stats, err := f.store.DomainStats("ex.com")
	require.NoError(t, err)
	assert.Equal(t, &ledger.Stats{CompletedFailure: 1, Total: 1}, stats)
}

func TestProcessBatchPerObjectFailure(t *testing.T) {
	f := newFixture(t)

	ok := f.runFile(t, "m1__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))
	rejected := f.runFile(t, "m2__domain=ex.com__.json", mailJSON("m2", "a@ex.com"))
	f.sink.failNext = []vectordb.ObjectFailure{{MailID: "m2", Message: "vectorizer rejected input"}}

	f.w.processBatch(context.Background(), &types.Batch{
		Domain:    "ex.com",
		FilePaths: []string{ok, rejected},
	})

	assert.NoFileExists(t, ok)
	assert.FileExists(t, f.stager.BuggyPath("m2__domain=ex.com__.json"))

	stats, err := f.store.DomainStats("ex.com")
	require.NoError(t, err)
	assert.Equal(t, &ledger.Stats{CompletedSuccess: 1, CompletedFailure: 1, Total: 2}, stats)
}

func TestProcessBatchTransportFailure(t *testing.T) {
	f := newFixture(t)

	p1 := f.runFile(t, "m1__domain=ex.com__.json", mailJSON("m1", "a@ex.com"))
	p2 := f.runFile(t, "m2__domain=ex.com__.json", mailJSON("m2", "a@ex.com"))
	f.sink.transport = errors.New("connection refused")

	f.w.processBatch(context.Background(), &types.Batch{
		Domain:    "ex.com",
		FilePaths: []string{p1, p2},
	})

	// Whole batch terminal as failed
	assert.FileExists(t, f.stager.BuggyPath("m1__domain=ex.com__.json"))
	assert.FileExists(t, f.stager.BuggyPath("m2__domain=ex.com__.json"))

	stats, err := f.store.DomainStats("ex.com")
	require.NoError(t, err)
	assert.Equal(t, &ledger.Stats{CompletedFailure: 2, Total: 2}, stats)
}

func TestRunExitsOnPoisonPill(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	go func() {
		f.w.run(context.Background())
		close(done)
	}()

	require.NoError(t, f.w.queue.Poison(context.Background()))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit on poison pill")
	}
}

func TestPoolStartAndDrain(t *testing.T) {
	root := t.TempDir()
	stager, err := stage.New(
		filepath.Join(root, "wait"),
		filepath.Join(root, "run"),
		filepath.Join(root, "buggy"),
	)
	require.NoError(t, err)

	q := queue.New(4)
	pool := NewPool(Config{
		Count:  2,
		Queue:  q,
		Stager: stager,
		OpenLedger: func() (ledger.Store, error) {
			return ledger.Open(filepath.Join(root, "status.db"))
		},
		NewSink: func() (vectordb.Sink, error) {
			return &fakeSink{}, nil
		},
	})

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))

	for i := 0; i < 2; i++ {
		require.NoError(t, q.Poison(ctx))
	}
	assert.NoError(t, pool.Wait(5*time.Second))
}
