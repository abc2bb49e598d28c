// Package service implements the transfer workflow engine: the five guarded
// transitions that move a family's registration between offices.
//
// Every operation follows the same shape: authorize the actor, validate
// input, apply the transition through the ledger's CompareAndTransition
// inside the store transaction, then emit a best-effort notification.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"civreg/internal/directory"
	"civreg/internal/notify"
	transfermetrics "civreg/internal/transfer/metrics"
	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/requestcontext"
)

// defaultLookupTimeout bounds directory and family-store reads so an
// unavailable upstream surfaces as a timeout instead of a hang.
const defaultLookupTimeout = 3 * time.Second

// createAttempts bounds transfer-id regeneration on the (fatal in theory,
// retried in practice) UUID collision path.
const createAttempts = 3

// Service orchestrates the transfer workflow. It holds no workflow state
// itself; everything lives in the ledger and the family store.
type Service struct {
	ledger        Ledger
	families      FamilyStore
	directory     Directory
	tx            StoreTx
	emitter       *eventEmitter
	metrics       *transfermetrics.Metrics
	tracer        trace.Tracer
	lookupTimeout time.Duration
}

type serviceConfig struct {
	tx            StoreTx
	notifier      Notifier
	metrics       *transfermetrics.Metrics
	logger        *slog.Logger
	lookupTimeout time.Duration
}

type Option func(*serviceConfig)

// WithTx sets the transactional boundary; defaults to an in-memory lock.
func WithTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

// WithNotifier sets the notification sink; absent, events are dropped.
func WithNotifier(notifier Notifier) Option {
	return func(cfg *serviceConfig) { cfg.notifier = notifier }
}

// WithMetrics attaches workflow counters.
func WithMetrics(metrics *transfermetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = metrics }
}

// WithLogger sets the logger used for emission failures.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

// WithLookupTimeout overrides the directory/family lookup bound.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(cfg *serviceConfig) { cfg.lookupTimeout = timeout }
}

func New(ledger Ledger, families FamilyStore, dir Directory, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryStoreTx()
	}
	lookupTimeout := cfg.lookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	return &Service{
		ledger:        ledger,
		families:      families,
		directory:     dir,
		tx:            tx,
		emitter:       newEventEmitter(cfg.logger, cfg.notifier),
		metrics:       cfg.metrics,
		tracer:        otel.Tracer("civreg/internal/transfer/service"),
		lookupTimeout: lookupTimeout,
	}
}

// RequestTransfer opens a transfer for the family from its current office of
// record to toOffice. The actor must be a clerk at the current office.
//
// Errors: CodeUnauthorized, CodeNotFound (unknown family), CodeSameOffice,
// CodeInvalidOffice, CodeInvalidInput, CodeActiveTransferExists,
// CodeUpstreamTimeout.
func (s *Service) RequestTransfer(ctx context.Context, familyID id.FamilyID, toOffice id.OfficeID, reason, notes string) (id.TransferID, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.RequestTransfer")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return id.TransferID{}, err
	}

	fromOffice, err := s.officeOfRecord(ctx, familyID)
	if err != nil {
		return id.TransferID{}, err
	}
	if actor.Role != id.RoleClerk || actor.Office != fromOffice {
		return id.TransferID{}, dErrors.New(dErrors.CodeUnauthorized, "only a clerk at the family's office of record may request a transfer")
	}

	if toOffice == fromOffice {
		return id.TransferID{}, dErrors.New(dErrors.CodeSameOffice, "destination office must differ from the family's current office")
	}
	if _, err := s.resolveOffice(ctx, toOffice); err != nil {
		return id.TransferID{}, err
	}

	now := requestcontext.Now(ctx)
	req, err := models.NewTransferRequest(id.NewTransferID(), familyID, fromOffice, toOffice, actor.ID, reason, notes, now)
	if err != nil {
		return id.TransferID{}, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.createWithRetry(txCtx, req); err != nil {
			return err
		}
		if err := s.families.SetPendingFlag(txCtx, familyID, true); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to flag family as transfer pending")
		}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeActiveTransferExists) {
			s.countActiveConflict()
		}
		return id.TransferID{}, err
	}

	s.count(func(m *transfermetrics.Metrics) { m.Requested.Inc() })
	s.emitter.emit(ctx, eventFor(notify.KindTransferRequested, req, actor.ID, ""))
	return req.ID, nil
}

// ApproveTransfer moves a pending transfer to approved. The actor must be a
// divisional officer for the division containing the originating office; the
// family stays at its origin until completion.
//
// Errors: CodeUnauthorized, CodeNotFound, CodeInvalidTransition,
// CodeUpstreamTimeout.
func (s *Service) ApproveTransfer(ctx context.Context, transferID id.TransferID, note string) error {
	ctx, span := s.tracer.Start(ctx, "transfer.ApproveTransfer")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	req, err := s.getTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if err := s.requireDivisionalApprover(ctx, actor, req.FromOfficeID); err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	var updated *models.TransferRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.ledger.CompareAndTransition(txCtx, transferID, models.StatusPending, func(t *models.TransferRequest) error {
			if err := t.CanApprove(); err != nil {
				return err
			}
			t.ApplyApproval(actor.ID, note, now)
			return nil
		})
		return s.translateTransitionErr(txErr)
	})
	if err != nil {
		return err
	}

	s.count(func(m *transfermetrics.Metrics) { m.Approved.Inc() })
	s.emitter.emit(ctx, eventFor(notify.KindTransferApproved, updated, actor.ID, note))
	return nil
}

// RejectTransfer moves a pending transfer to rejected with the officer's
// reason and clears the family's pending flag.
//
// Errors: CodeUnauthorized, CodeInvalidInput (missing reason), CodeNotFound,
// CodeInvalidTransition, CodeUpstreamTimeout.
func (s *Service) RejectTransfer(ctx context.Context, transferID id.TransferID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "transfer.RejectTransfer")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	req, err := s.getTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if err := s.requireDivisionalApprover(ctx, actor, req.FromOfficeID); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "a rejection reason is required")
	}
	if len(reason) > models.MaxReasonLength {
		return dErrors.New(dErrors.CodeInvalidInput, "rejection reason exceeds maximum length")
	}

	now := requestcontext.Now(ctx)
	var updated *models.TransferRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.ledger.CompareAndTransition(txCtx, transferID, models.StatusPending, func(t *models.TransferRequest) error {
			if err := t.CanReject(); err != nil {
				return err
			}
			t.ApplyRejection(actor.ID, reason, now)
			return nil
		})
		if txErr != nil {
			return s.translateTransitionErr(txErr)
		}
		if err := s.families.SetPendingFlag(txCtx, updated.FamilyID, false); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear family pending flag")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.count(func(m *transfermetrics.Metrics) { m.Rejected.Inc() })
	s.emitter.emit(ctx, eventFor(notify.KindTransferRejected, updated, actor.ID, reason))
	return nil
}

// CancelTransfer lets the original requester withdraw a transfer that is
// still pending. Approved transfers cannot be self-cancelled; they go back
// through the divisional process or complete.
//
// Errors: CodeUnauthorized (not the requester), CodeNotFound,
// CodeInvalidTransition.
func (s *Service) CancelTransfer(ctx context.Context, transferID id.TransferID, note string) error {
	ctx, span := s.tracer.Start(ctx, "transfer.CancelTransfer")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	req, err := s.getTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if actor.ID != req.RequestedBy {
		return dErrors.New(dErrors.CodeUnauthorized, "only the requesting officer may cancel a transfer")
	}

	now := requestcontext.Now(ctx)
	var updated *models.TransferRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.ledger.CompareAndTransition(txCtx, transferID, models.StatusPending, func(t *models.TransferRequest) error {
			if err := t.CanCancel(); err != nil {
				return err
			}
			t.ApplyCancellation(actor.ID, note, now)
			return nil
		})
		if txErr != nil {
			return s.translateTransitionErr(txErr)
		}
		if err := s.families.SetPendingFlag(txCtx, updated.FamilyID, false); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear family pending flag")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.count(func(m *transfermetrics.Metrics) { m.Cancelled.Inc() })
	s.emitter.emit(ctx, eventFor(notify.KindTransferCancelled, updated, actor.ID, note))
	return nil
}

// CompleteTransfer finishes an approved transfer: the receiving clerk takes
// ownership, and the family's office of record moves inside the same
// transaction as the ledger transition.
//
// Errors: CodeUnauthorized, CodeNotFound, CodeInvalidTransition.
func (s *Service) CompleteTransfer(ctx context.Context, transferID id.TransferID, note string) error {
	ctx, span := s.tracer.Start(ctx, "transfer.CompleteTransfer")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	req, err := s.getTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if actor.Role != id.RoleClerk || actor.Office != req.ToOfficeID {
		return dErrors.New(dErrors.CodeUnauthorized, "only a clerk at the receiving office may complete a transfer")
	}

	now := requestcontext.Now(ctx)
	var updated *models.TransferRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.ledger.CompareAndTransition(txCtx, transferID, models.StatusApproved, func(t *models.TransferRequest) error {
			if err := t.CanComplete(); err != nil {
				return err
			}
			t.ApplyCompletion(actor.ID, note, now)
			return nil
		})
		if txErr != nil {
			return s.translateTransitionErr(txErr)
		}
		// Same atomic unit as the transition: both commit or neither does.
		if err := s.families.SetOfficeOfRecord(txCtx, updated.FamilyID, updated.ToOfficeID, true); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to move family office of record")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.count(func(m *transfermetrics.Metrics) { m.Completed.Inc() })
	s.emitter.emit(ctx, eventFor(notify.KindTransferCompleted, updated, actor.ID, note))
	return nil
}

// GetTransfer returns one ledger row for an authenticated actor.
func (s *Service) GetTransfer(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.GetTransfer")
	defer span.End()

	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.getTransfer(ctx, transferID)
}

// ListOfficeTransfers returns the office's transfer history, most recent
// first. Clerks see their own office; divisional officers see any office in
// their division.
func (s *Service) ListOfficeTransfers(ctx context.Context, officeID id.OfficeID, filter models.ListFilter) ([]*models.TransferRequest, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.ListOfficeTransfers")
	defer span.End()

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Office != officeID {
		if err := s.requireDivisionalApprover(ctx, actor, officeID); err != nil {
			return nil, err
		}
	}

	rows, err := s.ledger.ListForOffice(ctx, officeID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transfers")
	}
	return rows, nil
}

// -----------------------------------------------------------------------------
// Internal helpers
// -----------------------------------------------------------------------------

func requireActor(ctx context.Context) (requestcontext.ActorContext, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsZero() || actor.ID == "" {
		return requestcontext.ActorContext{}, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	return actor, nil
}

// requireDivisionalApprover checks that the actor is a divisional officer
// whose division contains the given office. The binding compares division
// identifiers resolved from the directory, never display-name text.
func (s *Service) requireDivisionalApprover(ctx context.Context, actor requestcontext.ActorContext, office id.OfficeID) error {
	if actor.Role != id.RoleDivisionalOfficer {
		return dErrors.New(dErrors.CodeUnauthorized, "only a divisional officer may act on this transfer")
	}

	officeLoc, err := s.resolveOffice(ctx, office)
	if err != nil {
		return err
	}
	actorLoc, err := s.resolveOffice(ctx, actor.Office)
	if err != nil {
		return err
	}
	if officeLoc.Division.ID != actorLoc.Division.ID {
		return dErrors.New(dErrors.CodeUnauthorized, "office is outside the officer's division")
	}
	return nil
}

func (s *Service) resolveOffice(ctx context.Context, officeID id.OfficeID) (directory.Location, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	loc, err := s.directory.Resolve(lookupCtx, officeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return directory.Location{}, dErrors.New(dErrors.CodeInvalidOffice, "unknown destination office")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.countUpstreamTimeout()
			return directory.Location{}, dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "office directory lookup timed out")
		}
		return directory.Location{}, dErrors.Wrap(err, dErrors.CodeInternal, "office directory lookup failed")
	}
	return loc, nil
}

func (s *Service) officeOfRecord(ctx context.Context, familyID id.FamilyID) (id.OfficeID, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	office, err := s.families.GetOfficeOfRecord(lookupCtx, familyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "unknown family")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.countUpstreamTimeout()
			return "", dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "family record lookup timed out")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "family record lookup failed")
	}
	return office, nil
}

func (s *Service) getTransfer(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error) {
	req, err := s.ledger.Get(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown transfer request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer request")
	}
	return req, nil
}

// createWithRetry regenerates the transfer id on the UUID collision path.
// Collisions are never surfaced to the caller under normal operation.
func (s *Service) createWithRetry(ctx context.Context, req *models.TransferRequest) error {
	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		err := s.ledger.Create(ctx, req)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			req.ID = id.NewTransferID()
			lastErr = err
			continue
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeActiveTransferExists, "family already has an active transfer request")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transfer request")
	}
	return dErrors.Wrap(lastErr, dErrors.CodeInternal, "could not allocate a unique transfer id")
}

// translateTransitionErr maps store sentinels and model invariant errors to
// the workflow error taxonomy. A stale status means the caller lost a race
// or is replaying an already-processed action; both read the same way.
func (s *Service) translateTransitionErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "unknown transfer request")
	}
	if errors.Is(err, sentinel.ErrInvalidState) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		s.countTransitionRace()
		return dErrors.Wrap(err, dErrors.CodeInvalidTransition, "this request has already been processed")
	}
	if dErrors.HasCode(err, dErrors.CodeTimeout) || dErrors.HasCode(err, dErrors.CodeUpstreamTimeout) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply transition")
}

func (s *Service) count(fn func(*transfermetrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *Service) countActiveConflict() {
	if s.metrics != nil {
		s.metrics.ActiveConflicts.Inc()
	}
}

func (s *Service) countTransitionRace() {
	if s.metrics != nil {
		s.metrics.TransitionRaces.Inc()
	}
}

func (s *Service) countUpstreamTimeout() {
	if s.metrics != nil {
		s.metrics.UpstreamTimeouts.Inc()
	}
}
