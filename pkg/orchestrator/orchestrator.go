package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mailvec/mailvec/pkg/batcher"
	"github.com/mailvec/mailvec/pkg/config"
	"github.com/mailvec/mailvec/pkg/events"
	"github.com/mailvec/mailvec/pkg/ledger"
	"github.com/mailvec/mailvec/pkg/log"
	"github.com/mailvec/mailvec/pkg/metrics"
	"github.com/mailvec/mailvec/pkg/queue"
	"github.com/mailvec/mailvec/pkg/stage"
	"github.com/mailvec/mailvec/pkg/types"
	"github.com/mailvec/mailvec/pkg/vectordb"
	"github.com/mailvec/mailvec/pkg/worker"
)

// ShutdownDeadline bounds how long workers get to drain after the shutdown
// signal. Files still in run/ afterwards are reclaimed by the next startup.
const ShutdownDeadline = 30 * time.Second

// Orchestrator wires the stager, ledger, queue and worker pool together and
// runs the scan-batch-enqueue loop
type Orchestrator struct {
	cfg     *config.Config
	stager  *stage.Stager
	store   ledger.Store
	queue   *queue.Queue
	pool    *worker.Pool
	broker  *events.Broker
	newSink func() (vectordb.Sink, error)
	log     zerolog.Logger
}

// Option customizes orchestrator construction
type Option func(*Orchestrator)

// WithSinkFactory overrides how sinks are created. Tests inject fakes here.
func WithSinkFactory(f func() (vectordb.Sink, error)) Option {
	return func(o *Orchestrator) {
		o.newSink = f
	}
}

// New builds an orchestrator from configuration. The ledger is opened (and
// migrated) here; a failure is fatal before any worker starts.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	stager, err := stage.New(cfg.Paths.WaitDir, cfg.Paths.RunDir, cfg.Paths.BuggyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare staging directories: %w", err)
	}

	store, err := ledger.Open(cfg.Paths.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open status ledger: %w", err)
	}

	o := &Orchestrator{
		cfg:    cfg,
		stager: stager,
		store:  store,
		queue:  queue.New(cfg.Queue.MaxSize),
		broker: events.NewBroker(),
		log:    log.WithComponent("orchestrator"),
	}
	o.newSink = func() (vectordb.Sink, error) {
		return vectordb.NewWeaviateSink(cfg.Weaviate)
	}
	for _, opt := range opts {
		opt(o)
	}

	o.pool = worker.NewPool(worker.Config{
		Count:  cfg.Worker.Threads,
		Queue:  o.queue,
		Stager: stager,
		OpenLedger: func() (ledger.Store, error) {
			return ledger.Open(cfg.Paths.SQLitePath)
		},
		NewSink: o.newSink,
		Broker:  o.broker,
	})
	return o, nil
}

// Run executes startup, the main polling loop, and the shutdown protocol.
// It returns when ctx is cancelled (clean shutdown, nil error) or when
// startup fails (non-nil error, nothing started).
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.store.Close()

	// Ensure the collection exists before any worker assumes it does
	sink, err := o.newSink()
	if err != nil {
		return fmt.Errorf("failed to connect vector sink: %w", err)
	}
	if err := sink.EnsureCollection(ctx); err != nil {
		sink.Close()
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	sink.Close()

	// Recovery: every file left in run/ is pending by definition
	recovered, err := o.stager.RecoverRun()
	if err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}
	if recovered > 0 {
		o.log.Info().Int("count", recovered).Msg("Recovered files from previous run")
		metrics.FilesRecovered.Add(float64(recovered))
		o.broker.Publish(&events.Event{Type: events.EventFilesRecovered, Size: recovered})
	}

	o.broker.Start()
	eventSub := o.broker.Subscribe()
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		o.watchEvents(eventSub)
	}()

	collector := metrics.NewCollector(o.queue)
	collector.Start()

	var metricsSrv *metrics.Server
	if addr := o.cfg.Metrics.ListenAddr; addr != "" {
		metricsSrv = metrics.NewServer(addr)
		metricsSrv.Start()
		o.log.Info().Str("addr", addr).Msg("Metrics endpoint started")
	}

	// Workers get their own context so they keep draining after the main
	// loop stops; it is only cancelled if the shutdown deadline passes.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	if err := o.pool.Start(workerCtx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	o.log.Info().
		Int("workers", o.cfg.Worker.Threads).
		Int("queue_max", o.cfg.Queue.MaxSize).
		Float64("poll_interval", o.cfg.Worker.PollInterval).
		Msg("Pipeline started")

	interval := time.Duration(o.cfg.Worker.PollInterval * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			o.pollOnce(ctx)
		}
	}

	o.shutdown(cancelWorkers, collector, metricsSrv, eventSub, eventsDone)
	return nil
}

// watchEvents consumes broker events and writes the structured event trail.
// Returns when the subscription channel is closed during shutdown.
func (o *Orchestrator) watchEvents(sub events.Subscriber) {
	elog := log.WithComponent("events")
	for ev := range sub {
		var entry *zerolog.Event
		if ev.Type == events.EventBatchEnqueued {
			entry = elog.Debug()
		} else {
			entry = elog.Info()
		}
		entry.
			Str("type", string(ev.Type)).
			Str("domain", ev.Domain).
			Int("size", ev.Size).
			Int("succeeded", ev.Succeeded).
			Int("failed", ev.Failed).
			Msg("Pipeline event")
	}
}

// pollOnce performs one scan-batch-enqueue cycle
func (o *Orchestrator) pollOnce(ctx context.Context) {
	capacity := o.queue.Remaining()
	if capacity <= 0 {
		return
	}

	names, err := o.stager.ListPending(stage.DefaultScanLimit)
	if err != nil {
		o.log.Error().Err(err).Msg("Failed to scan wait directory")
		return
	}
	if len(names) == 0 {
		return
	}
	metrics.FilesScanned.Add(float64(len(names)))

	plan := batcher.Build(o.cfg.Paths.WaitDir, names, capacity)
	o.routeUnroutable(plan.Unroutable)

	for _, b := range plan.Batches {
		if ctx.Err() != nil {
			return
		}
		o.enqueueBatch(b)
	}
}

// routeUnroutable finalizes files whose domain could not be resolved: a
// failure row when the record still yields a mail_id, then straight to
// buggy/ without ever entering run/
func (o *Orchestrator) routeUnroutable(names []string) {
	for _, name := range names {
		path := o.stager.WaitPath(name)

		if data, err := os.ReadFile(path); err == nil {
			if mailID := types.ExtractMailID(data); mailID != "" {
				row := ledger.FailureRow{
					Row:          ledger.Row{MailID: mailID},
					ErrorMessage: "domain resolution failed",
				}
				if err := o.store.MarkFailure(row); err != nil {
					o.log.Error().Err(err).Str("mail_id", mailID).Msg("Failed to record unroutable file")
				}
			}
		}

		if err := o.stager.MoveToBuggy(path); err != nil {
			o.log.Error().Err(err).Str("file", name).Msg("Failed to move unroutable file to buggy")
			continue
		}
		o.log.Warn().Str("file", name).Msg("Unroutable file moved to buggy")
		metrics.FilesTerminal.WithLabelValues(metrics.StateUnroutable).Inc()
	}
}

// enqueueBatch claims the batch's files into run/, records pending rows in
// one transaction, and admits the batch to the queue
func (o *Orchestrator) enqueueBatch(b types.Batch) {
	moved := make([]string, 0, len(b.FilePaths))
	for _, name := range b.FilePaths {
		dest, err := o.stager.MoveToRun(name)
		if err != nil {
			// Fatal for this file only; the next cycle retries it
			o.log.Error().Err(err).Str("file", name).Msg("Failed to move file to run")
			continue
		}
		moved = append(moved, dest)
	}
	if len(moved) == 0 {
		return
	}

	var pending []ledger.Row
	for _, path := range moved {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		m, err := types.ParseMail(data)
		if err != nil {
			// The worker finalizes unparseable files; no pending row
			continue
		}
		pending = append(pending, ledger.Row{
			MailID:       m.MailID,
			UserID:       m.UserID,
			Domain:       m.Domain,
			ReceivedTime: m.ReceivedTime,
		})
	}
	if err := o.store.UpsertPending(pending...); err != nil {
		o.log.Error().Err(err).Str("domain", b.Domain).Msg("Failed to record pending rows")
	}

	if err := o.queue.TryPut(&types.Batch{Domain: b.Domain, FilePaths: moved}); err != nil {
		// Capacity was reserved at the top of this cycle and the orchestrator
		// is the only producer, so ErrFull means the plan overran it. Files
		// stay in run/ and are reclaimed by the next startup's recovery.
		o.log.Error().Err(err).Str("domain", b.Domain).Msg("Failed to enqueue batch")
		return
	}

	o.log.Info().Str("domain", b.Domain).Int("size", len(moved)).Msg("Enqueued batch")
	metrics.BatchesEnqueued.Inc()
	o.broker.Publish(&events.Event{
		Type:   events.EventBatchEnqueued,
		Domain: b.Domain,
		Size:   len(moved),
	})
}

// shutdown drains the pool with poison pills, bounded by ShutdownDeadline
func (o *Orchestrator) shutdown(cancelWorkers context.CancelFunc, collector *metrics.Collector, metricsSrv *metrics.Server, eventSub events.Subscriber, eventsDone chan struct{}) {
	o.log.Info().Msg("Shutdown requested; draining workers")
	o.broker.Publish(&events.Event{Type: events.EventShutdownBegun})

	pillCtx, cancelPills := context.WithTimeout(context.Background(), ShutdownDeadline)
	defer cancelPills()
	for i := 0; i < o.cfg.Worker.Threads; i++ {
		if err := o.queue.Poison(pillCtx); err != nil {
			o.log.Error().Err(err).Msg("Failed to deliver poison pill before deadline")
			break
		}
	}

	if err := o.pool.Wait(ShutdownDeadline); err != nil {
		// Force exit; run/ residue is reclaimed at next startup
		o.log.Error().Err(err).Msg("Forcing worker shutdown")
		cancelWorkers()
		o.pool.Wait(5 * time.Second)
	}

	collector.Stop()
	o.broker.Stop()
	o.broker.Unsubscribe(eventSub)
	<-eventsDone
	if metricsSrv != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Stop(stopCtx)
	}
	o.log.Info().Msg("Shutdown complete")
}
