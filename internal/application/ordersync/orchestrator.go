package ordersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
)

const tracerName = "github.com/erp/ordersync/internal/application/ordersync"

// StartSyncRequest selects the accounts of a run. Accounts named in
// OrderIDsByAccount are synced in manual mode with exactly those ids. With no
// selection every enabled account is synced.
type StartSyncRequest struct {
	AccountIDs        []uuid.UUID            `json:"account_ids,omitempty"`
	OrderIDsByAccount map[uuid.UUID][]string `json:"order_ids_by_account,omitempty"`
}

// Metrics receives run counters. Implemented by the telemetry package.
type Metrics interface {
	RecordFetched(ctx context.Context, n int)
	RecordSaved(ctx context.Context, n int)
	RecordFailed(ctx context.Context, kind integration.ErrorKind, n int)
	RecordForcedRange(ctx context.Context)
	RecordPageDuration(ctx context.Context, d time.Duration)
	RecordRun(ctx context.Context, status integration.SyncStatus, d time.Duration)
}

// Orchestrator drives a sync run across connected accounts
type Orchestrator struct {
	cfg      Config
	accounts integration.AccountRepository
	orders   integration.OrderRepository
	client   integration.MarketplaceClient

	refresher integration.CredentialRefresher
	costs     integration.CostOfGoodsLookup
	sink      integration.ProgressSink
	lease     integration.SyncLease
	archive   integration.RawPayloadArchive
	metrics   Metrics
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time

	partitioner *Partitioner
	enricher    *Enricher
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithCredentialRefresher refreshes expiring credentials before an account is synced
func WithCredentialRefresher(r integration.CredentialRefresher) Option {
	return func(o *Orchestrator) { o.refresher = r }
}

// WithCostOfGoods enables real contribution margins
func WithCostOfGoods(c integration.CostOfGoodsLookup) Option {
	return func(o *Orchestrator) { o.costs = c }
}

// WithProgressSink sets where progress events go
func WithProgressSink(s integration.ProgressSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithSyncLease prevents overlapping runs on the same account
func WithSyncLease(l integration.SyncLease) Option {
	return func(o *Orchestrator) { o.lease = l }
}

// WithRawPayloadArchive archives raw payloads when Config.ArchiveRawPayloads is set
func WithRawPayloadArchive(a integration.RawPayloadArchive) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithMetrics records run counters
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer overrides the tracer taken from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(
	cfg Config,
	accounts integration.AccountRepository,
	orders integration.OrderRepository,
	client integration.MarketplaceClient,
	logger *zap.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if accounts == nil || orders == nil || client == nil {
		return nil, fmt.Errorf("%w: accounts, orders and client are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:      cfg,
		accounts: accounts,
		orders:   orders,
		client:   client,
		metrics:  noopMetrics{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	o.partitioner = NewPartitioner(cfg.PartitionerConfig(), logger)
	o.enricher = NewEnricher(client, logger)
	return o, nil
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// run holds the state shared by every account of one StartSync call
type run struct {
	result  *integration.SyncResult
	emitter *Emitter
	budget  *RunBudget
	writer  *batchWriter
	recon   *Reconciler
}

// StartSync runs one sync. Partial failures are reported in the result; the
// error is reserved for requests that cannot start, such as an unknown account.
func (o *Orchestrator) StartSync(ctx context.Context, req StartSyncRequest) (*integration.SyncResult, error) {
	ctx, span := o.tracer.Start(ctx, "ordersync.StartSync")
	defer span.End()

	enabled, err := o.accounts.ListEnabled(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list connected accounts: %w", err)
	}
	selected, err := selectAccounts(enabled, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	startedAt := o.now()
	r := &run{
		result: integration.NewSyncResult(startedAt),
		budget: NewRunBudget(o.cfg.DetailRatePerSecond, o.cfg.DetailBurst),
		writer: &batchWriter{
			orders:      o.orders,
			concurrency: o.cfg.PersistConcurrency,
			logger:      o.logger,
		},
		recon: NewReconciler(o.costs, o.logger),
	}
	if o.cfg.ArchiveRawPayloads {
		r.writer.archive = o.archive
	}
	r.emitter = NewEmitter(context.WithoutCancel(ctx), o.sink, r.result.RunID.String(), o.cfg.EventBuffer, o.logger)
	r.emitter.now = o.now
	span.SetAttributes(
		attribute.String("sync.run_id", r.result.RunID.String()),
		attribute.Int("sync.accounts", len(selected)),
	)

	o.logger.Info("Starting order sync",
		zap.String("run_id", r.result.RunID.String()),
		zap.Int("accounts", len(selected)),
	)
	r.emitter.Emit(integration.SyncProgressEvent{
		Type:    integration.ProgressEventStart,
		Message: fmt.Sprintf("Starting sync of %d account(s)", len(selected)),
	})

	for _, account := range selected {
		summary := o.syncAccount(ctx, r, account, req.OrderIDsByAccount[account.ID])
		r.result.AddAccount(summary)
	}

	r.result.SyncedAt = o.now()
	final := integration.SyncProgressEvent{
		Type:     integration.ProgressEventComplete,
		Fetched:  r.result.Totals.Fetched,
		Expected: r.result.Totals.Expected,
		Message: fmt.Sprintf("Sync finished: %d saved, %d fetched, %d expected, %d error(s)",
			r.result.Totals.Saved, r.result.Totals.Fetched, r.result.Totals.Expected, len(r.result.Errors)),
	}
	if len(selected) > 0 && r.result.AllAccountsFailed() {
		final.Type = integration.ProgressEventError
		final.Message = fmt.Sprintf("Sync failed for every account: %d error(s)", len(r.result.Errors))
	}
	r.emitter.Emit(final)
	r.emitter.Close()

	status := r.result.Status()
	o.metrics.RecordRun(ctx, status, r.result.SyncedAt.Sub(startedAt))
	span.SetAttributes(
		attribute.String("sync.status", string(status)),
		attribute.Int("sync.saved", r.result.Totals.Saved),
		attribute.Int("sync.errors", len(r.result.Errors)),
	)

	o.logger.Info("Order sync finished",
		zap.String("run_id", r.result.RunID.String()),
		zap.String("status", string(status)),
		zap.Int("expected", r.result.Totals.Expected),
		zap.Int("fetched", r.result.Totals.Fetched),
		zap.Int("saved", r.result.Totals.Saved),
		zap.Int("errors", len(r.result.Errors)),
		zap.Int64("events_dropped", r.emitter.Dropped()),
	)
	return r.result, nil
}

// selectAccounts applies the request filter to the enabled accounts
func selectAccounts(enabled []integration.ConnectedAccount, req StartSyncRequest) ([]integration.ConnectedAccount, error) {
	wanted := make(map[uuid.UUID]bool)
	for _, id := range req.AccountIDs {
		wanted[id] = true
	}
	for id := range req.OrderIDsByAccount {
		wanted[id] = true
	}
	if len(wanted) == 0 {
		return enabled, nil
	}

	selected := make([]integration.ConnectedAccount, 0, len(wanted))
	found := make(map[uuid.UUID]bool, len(wanted))
	for _, a := range enabled {
		if wanted[a.ID] {
			selected = append(selected, a)
			found[a.ID] = true
		}
	}
	for id := range wanted {
		if !found[id] {
			return nil, fmt.Errorf("%w: %s", integration.ErrAccountNotFound, id)
		}
	}
	return selected, nil
}

// ---------------------------------------------------------------------------
// Account
// ---------------------------------------------------------------------------

// errAccountAborted wraps failures that stop the current account
type errAccountAborted struct {
	kind integration.ErrorKind
	err  error
}

func (e *errAccountAborted) Error() string { return e.err.Error() }
func (e *errAccountAborted) Unwrap() error { return e.err }

func abortAccount(kind integration.ErrorKind, err error) error {
	return &errAccountAborted{kind: kind, err: err}
}

func (o *Orchestrator) syncAccount(
	ctx context.Context,
	r *run,
	account integration.ConnectedAccount,
	manualIDs []string,
) integration.AccountSummary {
	ctx, span := o.tracer.Start(ctx, "ordersync.account",
		trace.WithAttributes(attribute.String("account.id", account.ID.String())))
	defer span.End()

	ar := newAccountRun(account, o.now())
	log := o.logger.With(
		zap.String("run_id", r.result.RunID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("seller_id", account.SellerID),
	)

	if err := ctx.Err(); err != nil {
		ar.Fail()
		o.recordError(ctx, r, integration.SyncError{AccountID: account.ID, Kind: integration.ErrorKindAccount, Message: err.Error()})
		return ar.Summary(o.now())
	}

	if o.lease != nil {
		acquired, err := o.lease.Acquire(ctx, account.ID, o.cfg.LeaseTTL)
		if err != nil || !acquired {
			if err == nil {
				err = integration.ErrSyncAlreadyInProgress
			}
			_ = ar.Transition(integration.AccountStateSkipped)
			log.Warn("Skipping account, lease not acquired", zap.Error(err))
			o.recordError(ctx, r, integration.SyncError{AccountID: account.ID, Kind: integration.ErrorKindLease, Message: err.Error()})
			o.emitAccount(r, ar, integration.ProgressEventWarning, "Account skipped: "+err.Error())
			return ar.Summary(o.now())
		}
		defer func() {
			if err := o.lease.Release(context.WithoutCancel(ctx), account.ID); err != nil {
				log.Warn("Failed to release account lease", zap.Error(err))
			}
		}()
	}

	_ = ar.Transition(integration.AccountStateFetching)
	o.emitAccount(r, ar, integration.ProgressEventProgress, "Syncing account "+account.Nickname)

	err := o.runAccount(ctx, r, ar, manualIDs, log)
	if err != nil {
		kind := integration.ErrorKindAccount
		var aborted *errAccountAborted
		if errors.As(err, &aborted) {
			kind = aborted.kind
		}
		ar.Fail()
		span.SetStatus(codes.Error, err.Error())
		log.Error("Account sync aborted", zap.String("kind", string(kind)), zap.Error(err))
		o.recordError(ctx, r, integration.SyncError{AccountID: account.ID, Kind: kind, Message: err.Error()})
		o.emitAccount(r, ar, integration.ProgressEventWarning, "Account sync aborted: "+err.Error())
	} else {
		_ = ar.Transition(integration.AccountStateCompleted)
		o.emitAccount(r, ar, integration.ProgressEventProgress,
			fmt.Sprintf("Account %s done: %d saved of %d fetched", account.Nickname, ar.Totals.Saved, ar.Totals.Fetched))
	}

	summary := ar.Summary(o.now())
	span.SetAttributes(
		attribute.String("account.state", string(summary.State)),
		attribute.Int("account.saved", summary.Totals.Saved),
	)
	log.Info("Account sync finished",
		zap.String("state", string(summary.State)),
		zap.Int("expected", summary.Totals.Expected),
		zap.Int("fetched", summary.Totals.Fetched),
		zap.Int("saved", summary.Totals.Saved),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

func (o *Orchestrator) runAccount(ctx context.Context, r *run, ar *AccountRun, manualIDs []string, log *zap.Logger) error {
	account, err := o.ensureCredential(ctx, ar.Account, log)
	if err != nil {
		return abortAccount(integration.ErrorKindAuth, err)
	}
	ar.Account = account
	cred := account.Credential()

	ctx = integration.WithRetryListener(ctx, func(n integration.RetryNotice) {
		msg := fmt.Sprintf("Upstream request retrying after %s (attempt %d)", n.Delay.Round(time.Millisecond), n.Attempt)
		if n.StatusCode != 0 {
			msg = fmt.Sprintf("Upstream returned %d, retrying after %s (attempt %d)", n.StatusCode, n.Delay.Round(time.Millisecond), n.Attempt)
		}
		o.emitAccount(r, ar, integration.ProgressEventWarning, msg)
	})

	if len(manualIDs) > 0 {
		ar.Windows = []integration.SyncWindow{{Mode: integration.SyncModeManual}}
		return o.syncManual(ctx, r, ar, cred, manualIDs)
	}

	stored, err := o.orders.CountByAccount(ctx, account.ID)
	if err != nil {
		return abortAccount(integration.ErrorKindPersist, fmt.Errorf("count stored orders: %w", err))
	}
	var oldest *time.Time
	if stored > 0 {
		if oldest, err = o.orders.OldestOrderDate(ctx, account.ID); err != nil {
			return abortAccount(integration.ErrorKindPersist, fmt.Errorf("oldest stored order: %w", err))
		}
	}

	ar.Windows = SelectWindows(o.cfg, o.now(), stored, oldest)
	for _, w := range ar.Windows {
		if err := o.syncWindow(ctx, r, ar, cred, w); err != nil {
			return err
		}
	}
	return nil
}

// ensureCredential refreshes the credential when it is about to expire
func (o *Orchestrator) ensureCredential(ctx context.Context, account integration.ConnectedAccount, log *zap.Logger) (integration.ConnectedAccount, error) {
	if !account.NeedsRefresh(o.now(), o.cfg.TokenRefreshSkew) {
		return account, nil
	}
	if o.refresher == nil {
		if account.AccessToken == "" {
			return account, fmt.Errorf("%w: no access token and no refresher", integration.ErrPlatformAuthFailed)
		}
		return account, nil
	}

	cred, err := o.refresher.Refresh(ctx, account)
	if err != nil {
		return account, fmt.Errorf("refresh credential: %w", err)
	}
	if err := o.accounts.UpdateCredentials(ctx, account.ID, *cred); err != nil {
		// The new credential is still usable for this run
		log.Warn("Failed to store refreshed credential", zap.Error(err))
	}
	log.Info("Credential refreshed", zap.Time("expires_at", cred.ExpiresAt))
	return account.WithCredential(*cred), nil
}

// ---------------------------------------------------------------------------
// Windows and ranges
// ---------------------------------------------------------------------------

func (o *Orchestrator) syncWindow(ctx context.Context, r *run, ar *AccountRun, cred integration.Credential, w integration.SyncWindow) error {
	window := w
	r.emitter.Emit(integration.SyncProgressEvent{
		Type:      integration.ProgressEventProgress,
		Message:   "Partitioning " + w.String(),
		AccountID: ar.Account.ID.String(),
		Step:      string(ar.State()),
		Window:    &window,
		Fetched:   ar.Totals.Fetched,
		Expected:  ar.Totals.Expected,
	})

	counter := RangeCounterFunc(func(ctx context.Context, from, to time.Time) (int, error) {
		page, err := o.client.SearchOrders(ctx, cred, integration.OrderSearchQuery{
			SellerID: cred.SellerID,
			From:     from,
			To:       to,
			Offset:   0,
			Limit:    1,
		})
		if err != nil {
			return 0, err
		}
		return page.Total, nil
	})

	leaves, err := o.partitioner.Partition(ctx, counter, w.From, w.To,
		WithForcedRangeObserver(func(leaf integration.DateRangeWindow) {
			o.metrics.RecordForcedRange(ctx)
			msg := fmt.Sprintf("Range %s holds %d orders, above the ceiling of %d; accepted without further split",
				leaf, leaf.ObservedCount, o.cfg.MaxResultsPerRange)
			ar.Warn(msg)
			leafCopy := leaf
			r.emitter.Emit(integration.SyncProgressEvent{
				Type:      integration.ProgressEventWarning,
				Message:   msg,
				AccountID: ar.Account.ID.String(),
				Step:      string(ar.State()),
				Window:    &window,
				Range:     &leafCopy,
			})
		}),
	)
	if err != nil {
		if stop := o.accountStopping(ctx, err); stop != nil {
			return stop
		}
		ar.Failed++
		msg := fmt.Sprintf("window %s skipped: %v", w, err)
		o.recordError(ctx, r, integration.SyncError{AccountID: ar.Account.ID, Kind: integration.ErrorKindFetch, Message: msg})
		o.emitAccount(r, ar, integration.ProgressEventWarning, msg)
		return nil
	}

	for _, leaf := range leaves {
		ar.Totals.Expected += leaf.ObservedCount
		leafCopy := leaf
		r.emitter.Emit(integration.SyncProgressEvent{
			Type:      integration.ProgressEventProgress,
			Message:   "Fetching range " + leaf.String(),
			AccountID: ar.Account.ID.String(),
			Step:      string(ar.State()),
			Window:    &window,
			Range:     &leafCopy,
			Fetched:   ar.Totals.Fetched,
			Expected:  ar.Totals.Expected,
		})

		if err := o.syncLeaf(ctx, r, ar, cred, leaf); err != nil {
			return err
		}

		r.emitter.Emit(integration.SyncProgressEvent{
			Type:      integration.ProgressEventProgress,
			Message:   "Finished range " + leaf.String(),
			AccountID: ar.Account.ID.String(),
			Step:      string(ar.State()),
			Window:    &window,
			Range:     &leafCopy,
			Fetched:   ar.Totals.Fetched,
			Expected:  ar.Totals.Expected,
		})
	}
	return nil
}

// syncLeaf pages through one leaf range until its count is exhausted or the
// page offset ceiling is reached
func (o *Orchestrator) syncLeaf(ctx context.Context, r *run, ar *AccountRun, cred integration.Credential, leaf integration.DateRangeWindow) error {
	for offset := 0; offset < leaf.ObservedCount; offset += o.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		if offset >= o.cfg.MaxPageOffset {
			unfetched := leaf.ObservedCount - offset
			msg := fmt.Sprintf("Page offset ceiling %d reached in range %s: %d order(s) left unfetched",
				o.cfg.MaxPageOffset, leaf, unfetched)
			ar.Warn(msg)
			o.logger.Warn("Page offset ceiling reached, orders left unfetched",
				zap.String("account_id", ar.Account.ID.String()),
				zap.Time("from", leaf.From),
				zap.Time("to", leaf.To),
				zap.Int("unfetched", unfetched),
			)
			o.emitAccount(r, ar, integration.ProgressEventWarning, msg)
			return nil
		}

		pageCtx, span := o.tracer.Start(ctx, "ordersync.page",
			trace.WithAttributes(attribute.Int("page.offset", offset)))
		started := o.now()

		page, err := o.client.SearchOrders(pageCtx, cred, integration.OrderSearchQuery{
			SellerID: cred.SellerID,
			From:     leaf.From,
			To:       leaf.To,
			Offset:   offset,
			Limit:    o.cfg.PageSize,
		})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.End()
			if stop := o.accountStopping(ctx, err); stop != nil {
				return stop
			}
			ar.Failed++
			msg := fmt.Sprintf("page at offset %d of range %s skipped: %v", offset, leaf, err)
			o.recordError(ctx, r, integration.SyncError{AccountID: ar.Account.ID, Kind: integration.ErrorKindFetch, Message: msg})
			o.emitAccount(r, ar, integration.ProgressEventWarning, msg)
			continue
		}
		if len(page.Results) == 0 {
			span.End()
			break
		}

		if err := o.processOrders(pageCtx, r, ar, cred, page.Results, false); err != nil {
			span.End()
			return err
		}
		o.metrics.RecordPageDuration(ctx, o.now().Sub(started))
		span.End()

		o.emitAccount(r, ar, integration.ProgressEventProgress,
			fmt.Sprintf("Page at offset %d: %d order(s)", offset, len(page.Results)))
	}
	return nil
}

// syncManual fetches an explicit list of orders, one page-sized batch at a time
func (o *Orchestrator) syncManual(ctx context.Context, r *run, ar *AccountRun, cred integration.Credential, ids []string) error {
	ar.Totals.Expected += len(ids)
	o.emitAccount(r, ar, integration.ProgressEventProgress, fmt.Sprintf("Fetching %d order(s) by id", len(ids)))

	for start := 0; start < len(ids); start += o.cfg.PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + o.cfg.PageSize
		if end > len(ids) {
			end = len(ids)
		}
		summaries := make([]integration.RawOrder, 0, end-start)
		for _, id := range ids[start:end] {
			summaries = append(summaries, integration.RawOrder{ID: id})
		}
		if err := o.processOrders(ctx, r, ar, cred, summaries, true); err != nil {
			return err
		}
		o.emitAccount(r, ar, integration.ProgressEventProgress,
			fmt.Sprintf("Fetched %d of %d order(s) by id", end, len(ids)))
	}
	return nil
}

// processOrders enriches, reconciles and persists one page of orders. In
// manual mode an order whose detail lookup failed has no data to keep and is
// reported as a fetch error instead.
func (o *Orchestrator) processOrders(
	ctx context.Context,
	r *run,
	ar *AccountRun,
	cred integration.Credential,
	summaries []integration.RawOrder,
	manual bool,
) error {
	enriched := o.enricher.Enrich(ctx, cred, summaries, r.budget)
	if err := ctx.Err(); err != nil {
		return err
	}

	syncedAt := o.now()
	records := make([]*integration.ReconciledOrderRecord, 0, len(enriched))
	for _, eo := range enriched {
		if eo.DetailErr != nil && integration.IsAuthError(eo.DetailErr) {
			return abortAccount(integration.ErrorKindAuth, eo.DetailErr)
		}
		if manual && eo.DetailErr != nil {
			ar.Failed++
			o.recordError(ctx, r, integration.SyncError{
				AccountID: ar.Account.ID,
				OrderID:   eo.Order.ID,
				Kind:      integration.ErrorKindFetch,
				Message:   eo.DetailErr.Error(),
			})
			continue
		}
		ar.Totals.Fetched++

		rec, err := r.recon.Reconcile(ctx, ar.Account.ID, eo, syncedAt)
		if err != nil {
			ar.Failed++
			o.recordError(ctx, r, integration.SyncError{
				AccountID: ar.Account.ID,
				OrderID:   eo.Order.ID,
				Kind:      integration.ErrorKindFetch,
				Message:   err.Error(),
			})
			continue
		}
		records = append(records, rec)
	}
	o.metrics.RecordFetched(ctx, len(records))

	if err := ar.Transition(integration.AccountStateSaving); err != nil {
		return err
	}
	outcome := r.writer.write(ctx, ar.Account.ID, records)
	ar.Totals.Saved += outcome.Saved
	ar.Failed += len(outcome.Failures)
	for _, f := range outcome.Failures {
		o.recordError(ctx, r, f)
	}
	o.metrics.RecordSaved(ctx, outcome.Saved)
	return ar.Transition(integration.AccountStateFetching)
}

// accountStopping returns a non nil error when err must abort the account
func (o *Orchestrator) accountStopping(ctx context.Context, err error) error {
	if integration.IsAuthError(err) {
		return abortAccount(integration.ErrorKindAuth, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}

func (o *Orchestrator) recordError(ctx context.Context, r *run, e integration.SyncError) {
	r.result.AddError(e)
	o.metrics.RecordFailed(ctx, e.Kind, 1)
}

func (o *Orchestrator) emitAccount(r *run, ar *AccountRun, typ integration.ProgressEventType, msg string) {
	r.emitter.Emit(integration.SyncProgressEvent{
		Type:      typ,
		Message:   msg,
		AccountID: ar.Account.ID.String(),
		Step:      string(ar.State()),
		Fetched:   ar.Totals.Fetched,
		Expected:  ar.Totals.Expected,
	})
}

// ---------------------------------------------------------------------------
// noopMetrics
// ---------------------------------------------------------------------------

type noopMetrics struct{}

func (noopMetrics) RecordFetched(context.Context, int)                              {}
func (noopMetrics) RecordSaved(context.Context, int)                                {}
func (noopMetrics) RecordFailed(context.Context, integration.ErrorKind, int)        {}
func (noopMetrics) RecordForcedRange(context.Context)                               {}
func (noopMetrics) RecordPageDuration(context.Context, time.Duration)               {}
func (noopMetrics) RecordRun(context.Context, integration.SyncStatus, time.Duration) {}
