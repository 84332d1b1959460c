package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/mailer"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultSendTimeout = 15 * time.Second
	defaultMaxAttempts = 10
	defaultRetryBase   = 30 * time.Second
	defaultRetryMax    = 30 * time.Minute
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond

	consumerName = "mailer"

	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultDropped   = "dropped"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedTx(tx *gorm.DB, limit, maxAttempts int, now time.Time) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error, retryAt time.Time) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type claimGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
	ClaimedAt(ctx context.Context, consumer string, eventID uuid.UUID) (time.Time, bool, error)
}

type deliveryRecorder interface {
	IncDelivery(eventType, result string)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Repository outboxRepository
	Registry   registryResolver
	Mailer     mailer.Mailer
	Guard      claimGuard
	Metrics    deliveryRecorder
}

// Service drains outbox_events and turns each event into an email.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	registry     registryResolver
	mail         mailer.Mailer
	guard        claimGuard
	metrics      deliveryRecorder
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	retryBase    time.Duration
	retryMax     time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.Mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBase := params.Config.Outbox.RetryBase
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	retryMax := params.Config.Outbox.RetryMax
	if retryMax <= 0 {
		retryMax = defaultRetryMax
	}
	retryMax = max(retryMax, retryBase)

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		registry:     params.Registry,
		mail:         params.Mailer,
		guard:        params.Guard,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		retryBase:    retryBase,
		retryMax:     retryMax,
		now:          time.Now,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	if interval <= 0 {
		interval = time.Duration(defaultPollMs) * time.Millisecond
	}
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch handles one locked batch. A row is marked published only
// after its mail went out, so a crash mid-batch re-delivers at most the
// rows whose claim was already released.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedTx(tx, s.batchSize, s.maxAttempts, s.now())
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		processed = true
		for _, event := range events {
			if err := s.handle(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (s *Service) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.handleTerminal(ctx, tx, event, err, nil)
	}
	fields := s.eventFields(event, resolved.Envelope)

	msg, ok, err := s.render(resolved)
	if err != nil {
		return s.handleTerminal(ctx, tx, event, err, fields)
	}
	if !ok {
		// nobody to notify
		s.record(event, resultDropped)
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		return nil
	}

	claimID := claimKey(event, resolved.Envelope)
	claimed, err := s.guard.Claim(ctx, consumerName, claimID)
	if err != nil {
		return s.handleRetry(ctx, tx, event, fmt.Errorf("claim event: %w", err), fields)
	}
	if !claimed {
		// a previous run sent the mail but did not get to mark the row
		if at, held, err := s.guard.ClaimedAt(ctx, consumerName, claimID); err == nil && held {
			fields["claimed_at"] = at.Format(time.RFC3339)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event already delivered")
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, defaultSendTimeout)
	sendErr := s.mail.Send(sendCtx, msg)
	cancel()
	if sendErr != nil {
		if relErr := s.guard.Release(ctx, consumerName, claimID); relErr != nil {
			s.logg.Error(s.logg.WithFields(ctx, fields), "release event claim", relErr)
		}
		return s.handleRetry(ctx, tx, event, sendErr, fields)
	}

	if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, markErr)
	}
	s.record(event, resultDelivered)
	s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered")
	return nil
}

func (s *Service) render(resolved *registry.ResolvedEvent) (mailer.Message, bool, error) {
	switch p := resolved.Payload.(type) {
	case *payloads.UserRegisteredEvent:
		msg, err := mailer.ConfirmEmail(p.Email, mailer.ConfirmData{
			Email:     p.Email,
			FirstName: p.FirstName,
			Token:     p.ConfirmToken,
			BaseURL:   s.cfg.App.PublicURL,
		})
		return msg, true, err
	case *payloads.OrderStateChangedEvent:
		if p.Email == "" {
			return mailer.Message{}, false, nil
		}
		msg, err := mailer.OrderStatus(p.Email, mailer.OrderData{
			OrderID: p.OrderID.String(),
			State:   string(p.To),
			Total:   p.Total,
		})
		return msg, true, err
	case *payloads.CatalogImportedEvent:
		if p.Email == "" {
			return mailer.Message{}, false, nil
		}
		msg, err := mailer.ImportReport(p.Email, mailer.ImportData{
			Shop:    p.ShopName,
			Created: p.Created,
			Updated: p.Updated,
			Failed:  p.Failed,
			Stale:   p.Stale,
		})
		return msg, true, err
	default:
		return mailer.Message{}, false, registry.NewNonRetryableError(fmt.Errorf("no mail template for %T", resolved.Payload))
	}
}

func (s *Service) handleRetry(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	fields["attempt_count"] = event.AttemptCount + 1

	if event.NextAttemptExhausts(s.maxAttempts) {
		fields["terminal_reason"] = "max_attempts"
		return s.handleTerminal(ctx, tx, event, fmt.Errorf("max delivery attempts reached: %w", err), fields)
	}

	retryAt := s.now().Add(retryDelay(event.AttemptCount+1, s.retryBase, s.retryMax))
	fields["next_attempt_at"] = retryAt.UTC().Format(time.RFC3339)
	ctxWithFields := s.logg.WithFields(ctx, fields)
	ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox delivery failed")
	s.record(event, resultFailed)
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err, retryAt); markErr != nil {
		return fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	if fields == nil {
		fields = s.eventFields(event, outbox.PayloadEnvelope{})
	}
	var nonRetry registry.NonRetryableError
	fields["non_retryable"] = errors.As(err, &nonRetry)
	ctxWithFields := s.logg.WithFields(ctx, fields)
	ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox event will not be retried")

	s.record(event, resultDropped)
	if markErr := s.repo.MarkTerminalTx(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) record(event models.OutboxEvent, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncDelivery(string(event.EventType), result)
}

// claimKey prefers the envelope id so a re-inserted row keeps its claim.
func claimKey(event models.OutboxEvent, envelope outbox.PayloadEnvelope) uuid.UUID {
	if id, err := uuid.Parse(envelope.EventID); err == nil {
		return id
	}
	return event.ID
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if last := event.LastErrorText(); last != "" {
		fields["last_error"] = last
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

// retryDelay is base doubled for every attempt after the first, capped at limit.
func retryDelay(attempt int, base, limit time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}
	return min(d, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
