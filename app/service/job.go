package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/backoff"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"github.com/vibast-solutions/ms-go-paylink/app/reconcile"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

// Job is one timer-driven reconciliation loop.
type Job interface {
	Name() string
	Interval() time.Duration
	RunOnce(ctx context.Context) error
}

// paymentJob is the part every payment loop shares: due selection, the loop itself and the
// status-update retry clock.
type paymentJob struct {
	Deps
	kind   entity.JobKind
	retry  config.RetryConfig
	loop   *reconcile.Loop[*entity.Payment]
	logger logrus.FieldLogger
}

func newPaymentJob(kind entity.JobKind, deps Deps, retry config.RetryConfig, process func(context.Context, *entity.Payment) error) *paymentJob {
	logger := deps.Logger
	if logger == nil {
		logger = factory.NewModuleLogger("jobs")
	}
	logger = logger.WithField("job", string(kind))
	deps.Logger = logger

	j := &paymentJob{Deps: deps, kind: kind, retry: retry, logger: logger}
	j.loop = reconcile.New(reconcile.Config[*entity.Payment]{
		Name:        string(kind),
		Concurrency: retry.Concurrency,
		Fetch:       j.fetchDue,
		Process:     process,
		Key:         func(p *entity.Payment) string { return p.ID },
		AfterRun:    j.markAbandoned,
		Logger:      logger,
		Observer:    deps.Observer,
	})
	return j
}

func (j *paymentJob) Name() string {
	return string(j.kind)
}

func (j *paymentJob) Interval() time.Duration {
	return j.retry.MinInterval
}

func (j *paymentJob) RunOnce(ctx context.Context) error {
	return j.loop.RunOnce(ctx)
}

// ProcessOne runs a single payment through the loop, skipping it when already in flight.
func (j *paymentJob) ProcessOne(ctx context.Context, payment *entity.Payment) (bool, error) {
	return j.loop.ProcessOne(ctx, payment)
}

func (j *paymentJob) fetchDue(ctx context.Context, limit int) ([]*entity.Payment, error) {
	now := j.now()
	q := repository.DueQuery{Now: now, Limit: limit}
	if cutoff, ok := backoff.GiveUpCutoff(now, j.retry.GiveUpAfterDays); ok {
		q.GiveUpCutoff = cutoff
	}
	return j.Payments.ListDue(ctx, j.kind, q)
}

func (j *paymentJob) markAbandoned(ctx context.Context) error {
	now := j.now()
	cutoff, ok := backoff.GiveUpCutoff(now, j.retry.GiveUpAfterDays)
	if !ok {
		return nil
	}
	n, err := j.Payments.MarkAbandoned(ctx, j.kind, cutoff, now)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.WithField("count", n).Warn("payments_abandoned")
	}
	return nil
}

// rearmStatusUpdate runs after every attempt, failed or not. A terminal payment gets its clock
// cleared; anything else gets the next backoff slot.
func (j *paymentJob) rearmStatusUpdate(ctx context.Context, id string, terminal func(*entity.Payment) bool) (*entity.Payment, error) {
	now := j.now()
	current, err := j.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrPaymentNotFound
	}

	var patch entity.PaymentPatch
	if terminal(current) {
		patch.ResetStatusUpdate()
	} else {
		patch.StatusUpdateAttempts = entity.Set(current.StatusUpdateAttempts + 1)
		if current.StatusUpdateStartAt == nil {
			patch.StatusUpdateStartAt = entity.Set(entity.Ptr(now))
		}
		retryAt := backoff.NextRetryAt(now, current.StatusUpdateAttempts, j.retry.MinInterval, j.retry.MaxInterval)
		patch.StatusUpdateRetryAt = entity.Set(&retryAt)
	}

	updated, err := j.Payments.Apply(ctx, id, &patch, now)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return updated, nil
}

// storeFailure keeps the text of a failed remote call on the payment and returns callErr.
func (j *paymentJob) storeFailure(ctx context.Context, id string, callErr error, patch *entity.PaymentPatch) error {
	if patch == nil {
		patch = &entity.PaymentPatch{}
	}
	patch.StatusMessage = entity.Set(errorText(callErr))
	if _, err := j.Payments.Apply(ctx, id, patch, j.now()); err != nil {
		return errors.Join(callErr, mapStoreErr(err))
	}
	return callErr
}

func (j *paymentJob) finish(ctx context.Context, callErr error, id string, terminal func(*entity.Payment) bool) (*entity.Payment, error) {
	updated, err := j.rearmStatusUpdate(ctx, id, terminal)
	if err != nil {
		return nil, errors.Join(callErr, err)
	}
	return updated, callErr
}
