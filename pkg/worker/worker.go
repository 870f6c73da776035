package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mailvec/mailvec/pkg/events"
	"github.com/mailvec/mailvec/pkg/ledger"
	"github.com/mailvec/mailvec/pkg/log"
	"github.com/mailvec/mailvec/pkg/metrics"
	"github.com/mailvec/mailvec/pkg/queue"
	"github.com/mailvec/mailvec/pkg/stage"
	"github.com/mailvec/mailvec/pkg/types"
	"github.com/mailvec/mailvec/pkg/vectordb"
)

// Config holds worker pool configuration
type Config struct {
	Count  int
	Queue  *queue.Queue
	Stager *stage.Stager

	// OpenLedger and NewSink create per-worker resources. Each worker owns
	// its own ledger handle and sink client for its whole lifetime; nothing
	// is shared between workers.
	OpenLedger func() (ledger.Store, error)
	NewSink    func() (vectordb.Sink, error)

	Broker *events.Broker
}

// Pool runs Count workers consuming batches from the queue until each
// observes a poison pill
type Pool struct {
	cfg Config
	wg  sync.WaitGroup
}

// NewPool creates a worker pool
func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

// Start opens per-worker resources and launches the worker goroutines.
// A resource failure aborts startup; workers already launched are left to
// drain via poison pills pushed by the caller.
func (p *Pool) Start(ctx context.Context) error {
	for i := 1; i <= p.cfg.Count; i++ {
		name := fmt.Sprintf("worker-%d", i)

		led, err := p.cfg.OpenLedger()
		if err != nil {
			return fmt.Errorf("failed to open ledger for %s: %w", name, err)
		}
		sink, err := p.cfg.NewSink()
		if err != nil {
			led.Close()
			return fmt.Errorf("failed to create sink for %s: %w", name, err)
		}

		w := &worker{
			name:   name,
			queue:  p.cfg.Queue,
			stager: p.cfg.Stager,
			ledger: led,
			sink:   sink,
			broker: p.cfg.Broker,
			log:    log.WithWorker(name),
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}
	return nil
}

// Wait blocks until every worker has exited or the timeout elapses
func (p *Pool) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("workers did not exit within %s", timeout)
	}
}

// worker processes one batch at a time with exclusively-owned resources
type worker struct {
	name   string
	queue  *queue.Queue
	stager *stage.Stager
	ledger ledger.Store
	sink   vectordb.Sink
	broker *events.Broker
	log    zerolog.Logger
}

func (w *worker) run(ctx context.Context) {
	defer func() {
		if err := w.ledger.Close(); err != nil {
			w.log.Error().Err(err).Msg("Failed to close ledger")
		}
		if err := w.sink.Close(); err != nil {
			w.log.Error().Err(err).Msg("Failed to close sink")
		}
		w.log.Info().Msg("Worker exiting")
	}()

	w.log.Info().Msg("Worker started")
	for {
		batch, err := w.queue.Get(ctx)
		if err != nil {
			// Forced shutdown; run/ residue is reclaimed at next startup
			return
		}
		if batch == nil {
			// Poison pill
			return
		}
		w.processBatch(ctx, batch)
	}
}

// processBatch drives one batch through the ingest state machine: parse,
// import, then per-file terminal transitions. Ledger rows commit before the
// corresponding filesystem changes, so after a crash the run/ directory is
// the authoritative pending indicator.
func (w *worker) processBatch(ctx context.Context, batch *types.Batch) {
	blog := w.log.With().Str("domain", batch.Domain).Int("size", len(batch.FilePaths)).Logger()

	parsed, parseFailed := w.parseFiles(batch.FilePaths)
	w.finalizeParseFailures(parseFailed)

	if len(parsed) == 0 {
		blog.Warn().Msg("Batch had no importable mails")
		w.publish(events.EventBatchCompleted, batch.Domain, len(batch.FilePaths), 0, len(parseFailed))
		return
	}

	if err := w.sink.EnsureTenant(ctx, batch.Domain); err != nil {
		blog.Error().Err(err).Msg("Failed to ensure tenant")
		w.failWholeBatch(parsed, fmt.Sprintf("tenant: %v", err))
		w.publish(events.EventBatchFailed, batch.Domain, len(batch.FilePaths), 0, len(parsed)+len(parseFailed))
		return
	}

	mails := make([]*types.Mail, 0, len(parsed))
	for _, p := range parsed {
		mails = append(mails, p.mail)
	}

	start := time.Now()
	failures, err := w.sink.ImportBatch(ctx, batch.Domain, mails)
	metrics.ImportDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		// Connection-level failure: terminal for every object in the batch
		metrics.ImportsTotal.WithLabelValues(metrics.OutcomeTransport).Inc()
		blog.Error().Err(err).Msg("Bulk import failed")
		w.failWholeBatch(parsed, fmt.Sprintf("import: %v", err))
		w.publish(events.EventBatchFailed, batch.Domain, len(batch.FilePaths), 0, len(parsed)+len(parseFailed))
		return
	}

	failedByID := make(map[string]string, len(failures))
	for _, f := range failures {
		failedByID[f.MailID] = f.Message
	}
	if len(failures) == 0 {
		metrics.ImportsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	} else {
		metrics.ImportsTotal.WithLabelValues(metrics.OutcomePartial).Inc()
	}

	// Duplicate mail_ids collapse to one vector object, so each duplicate
	// file shares the object's outcome and transitions on its own path.
	var successRows []ledger.Row
	var failureRows []ledger.FailureRow
	var succeeded, failed []parsedMail
	for _, p := range parsed {
		row := rowFor(p.mail)
		if msg, ok := failedByID[p.mail.MailID]; ok {
			failureRows = append(failureRows, ledger.FailureRow{Row: row, ErrorMessage: msg})
			failed = append(failed, p)
		} else {
			successRows = append(successRows, row)
			succeeded = append(succeeded, p)
		}
	}

	// Ledger first. If the commit fails even after busy retries, leave the
	// files in run/ so the next startup re-ingests them.
	if err := w.ledger.MarkSuccess(successRows...); err != nil {
		blog.Error().Err(err).Msg("Failed to record success rows; leaving files in run/")
		return
	}
	if err := w.ledger.MarkFailure(failureRows...); err != nil {
		blog.Error().Err(err).Msg("Failed to record failure rows; leaving files in run/")
		return
	}

	for _, p := range succeeded {
		if err := w.stager.Delete(p.path); err != nil {
			w.log.Error().Err(err).Str("path", p.path).Msg("Failed to delete imported file")
			continue
		}
		metrics.FilesTerminal.WithLabelValues(metrics.StateSuccess).Inc()
	}
	for _, p := range failed {
		if err := w.stager.MoveToBuggy(p.path); err != nil {
			w.log.Error().Err(err).Str("path", p.path).Msg("Failed to move rejected file to buggy")
			continue
		}
		metrics.FilesTerminal.WithLabelValues(metrics.StateImportFailure).Inc()
	}

	blog.Info().Int("succeeded", len(succeeded)).Int("failed", len(failed)+len(parseFailed)).Msg("Batch completed")
	w.publish(events.EventBatchCompleted, batch.Domain, len(batch.FilePaths), len(succeeded), len(failed)+len(parseFailed))
}

// parsedMail pairs a parsed mail with the run/ file it came from
type parsedMail struct {
	mail *types.Mail
	path string
}

// parseFailure pairs a path with its best-effort failure row
type parseFailure struct {
	path string
	row  *ledger.FailureRow // nil when mail_id could not be determined
}

func (w *worker) parseFiles(paths []string) ([]parsedMail, []parseFailure) {
	var parsed []parsedMail
	var failed []parseFailure

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("Failed to read mail file")
			failed = append(failed, parseFailure{path: path})
			continue
		}

		m, err := types.ParseMail(data)
		if err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("Failed to parse mail file")
			failed = append(failed, parseFailure{path: path, row: failureRowFor(data, err)})
			continue
		}

		parsed = append(parsed, parsedMail{mail: m, path: path})
	}
	return parsed, failed
}

// failureRowFor builds a ledger failure row from a broken record when it
// still carries a usable mail_id
func failureRowFor(data []byte, parseErr error) *ledger.FailureRow {
	mailID := ""
	if perr, ok := parseErr.(*types.ParseError); ok {
		mailID = perr.MailID
	}
	if mailID == "" {
		mailID = types.ExtractMailID(data)
	}
	if mailID == "" {
		return nil
	}

	// Other required fields may be missing; key the row on what we have
	return &ledger.FailureRow{
		Row:          ledger.Row{MailID: mailID},
		ErrorMessage: fmt.Sprintf("parse: %v", parseErr),
	}
}

func (w *worker) finalizeParseFailures(failed []parseFailure) {
	var rows []ledger.FailureRow
	for _, f := range failed {
		if f.row != nil {
			rows = append(rows, *f.row)
		}
	}
	if err := w.ledger.MarkFailure(rows...); err != nil {
		w.log.Error().Err(err).Msg("Failed to record parse-failure rows")
	}

	for _, f := range failed {
		if err := w.stager.MoveToBuggy(f.path); err != nil {
			w.log.Error().Err(err).Str("path", f.path).Msg("Failed to move unparseable file to buggy")
			continue
		}
		metrics.FilesTerminal.WithLabelValues(metrics.StateParseFailure).Inc()
	}
}

// failWholeBatch finalizes every parsed mail as failed with one shared
// reason, then moves the files to buggy/
func (w *worker) failWholeBatch(parsed []parsedMail, reason string) {
	rows := make([]ledger.FailureRow, 0, len(parsed))
	for _, p := range parsed {
		rows = append(rows, ledger.FailureRow{Row: rowFor(p.mail), ErrorMessage: reason})
	}
	if err := w.ledger.MarkFailure(rows...); err != nil {
		w.log.Error().Err(err).Msg("Failed to record batch failure rows")
	}

	for _, p := range parsed {
		if err := w.stager.MoveToBuggy(p.path); err != nil {
			w.log.Error().Err(err).Str("path", p.path).Msg("Failed to move file to buggy")
			continue
		}
		metrics.FilesTerminal.WithLabelValues(metrics.StateImportFailure).Inc()
	}
}

func (w *worker) publish(t events.EventType, domain string, size, succeeded, failed int) {
	if w.broker == nil {
		return
	}
	w.broker.Publish(&events.Event{
		Type:      t,
		Domain:    domain,
		Size:      size,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

func rowFor(m *types.Mail) ledger.Row {
	return ledger.Row{
		MailID:       m.MailID,
		UserID:       m.UserID,
		Domain:       m.Domain,
		ReceivedTime: m.ReceivedTime,
	}
}
