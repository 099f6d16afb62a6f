package bankconnect

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// Accounts returns the accounts detected in the uploaded statements.
func (e *Entity) Accounts(ctx context.Context, q Query) ([]model.Account, error) {
	records, err := resolve(ctx, e, q, &e.accounts, model.CategoryAccounts)
	if err != nil {
		return nil, err
	}
	return narrowByAccount(records, q)
}

// FraudInfo returns the fraud signals raised against the uploaded statements.
// It is resolved through the accounts read, which always carries it.
func (e *Entity) FraudInfo(ctx context.Context, q Query) ([]model.FraudInfo, error) {
	records, err := resolve(ctx, e, q, &e.fraudInfo, model.CategoryFraudInfo)
	if err != nil {
		return nil, err
	}
	return narrowByAccount(records, q)
}

// Identity returns the account holder identity.
func (e *Entity) Identity(ctx context.Context, reload bool) (model.Identity, error) {
	return resolve(ctx, e, Query{Reload: reload}, &e.identity, model.CategoryIdentity)
}

// Transactions returns every extracted transaction.
func (e *Entity) Transactions(ctx context.Context, q Query) ([]model.Transaction, error) {
	records, err := resolve(ctx, e, q, &e.transactions, model.CategoryTransactions)
	if err != nil {
		return nil, err
	}
	return narrow(records, q)
}

// CreditRecurring returns recurring credit transaction groups.
func (e *Entity) CreditRecurring(ctx context.Context, q Query) ([]model.RecurringGroup, error) {
	records, err := resolve(ctx, e, q, &e.creditRecurring, model.CategoryCreditRecurring)
	if err != nil {
		return nil, err
	}
	return narrowByAccount(records, q)
}

// DebitRecurring returns recurring debit transaction groups.
func (e *Entity) DebitRecurring(ctx context.Context, q Query) ([]model.RecurringGroup, error) {
	records, err := resolve(ctx, e, q, &e.debitRecurring, model.CategoryDebitRecurring)
	if err != nil {
		return nil, err
	}
	return narrowByAccount(records, q)
}

// Salary returns transactions identified as salary credits.
func (e *Entity) Salary(ctx context.Context, q Query) ([]model.Transaction, error) {
	records, err := resolve(ctx, e, q, &e.salary, model.CategorySalary)
	if err != nil {
		return nil, err
	}
	return narrow(records, q)
}

// LenderTransactions returns transactions with lending institutions.
func (e *Entity) LenderTransactions(ctx context.Context, q Query) ([]model.Transaction, error) {
	records, err := resolve(ctx, e, q, &e.lenderTransactions, model.CategoryLenderTransactions)
	if err != nil {
		return nil, err
	}
	return narrow(records, q)
}

// Loaded reports whether the category is cached.
func (e *Entity) Loaded(category model.Category) bool {
	loaded, _ := e.cacheState(category)
	return loaded
}

// Version returns how many times the category cache has been populated.
func (e *Entity) Version(category model.Category) uint64 {
	_, version := e.cacheState(category)
	return version
}

type cacheState interface {
	loaded() bool
	currentVersion() uint64
}

func (e *Entity) cacheState(category model.Category) (bool, uint64) {
	var c cacheState
	switch category {
	case model.CategoryAccounts:
		c = &e.accounts
	case model.CategoryFraudInfo:
		c = &e.fraudInfo
	case model.CategoryIdentity:
		c = &e.identity
	case model.CategoryTransactions:
		c = &e.transactions
	case model.CategoryCreditRecurring:
		c = &e.creditRecurring
	case model.CategoryDebitRecurring:
		c = &e.debitRecurring
	case model.CategorySalary:
		c = &e.salary
	case model.CategoryLenderTransactions:
		c = &e.lenderTransactions
	default:
		return false, 0
	}
	return c.loaded(), c.currentVersion()
}

// resolve returns the cached value of the category or runs one poll cycle of
// the read that carries it. The cache is only overwritten on success. A reload
// whose poll times out returns the previously cached value, if any.
func resolve[T any](ctx context.Context, e *Entity, q Query, c *cell[T], category model.Category) (T, error) {
	var zero T
	op := category.String()

	if err := q.validate(op); err != nil {
		return zero, err
	}

	entityID, err := e.EntityID(ctx)
	if err != nil {
		return zero, err
	}

	if !q.Reload {
		if v, ok := c.get(); ok {
			return v, nil
		}
	}

	endpoint := model.EndpointFor(category)
	mu := &e.fetchMu[endpoint]
	mu.Lock()
	defer mu.Unlock()

	// a concurrent reader may have resolved it while we waited
	if !q.Reload {
		if v, ok := c.get(); ok {
			return v, nil
		}
	}

	env, err := e.poll(ctx, endpoint, entityID)
	if err != nil {
		// a reload that only ran out of poll time keeps serving the cached value
		if q.Reload && ctx.Err() == nil && errors.Is(err, apperror.ErrServiceTimeout) {
			if v, ok := c.get(); ok {
				e.client.logger.Warn("reload timed out, serving cached records",
					"entity_id", entityID,
					"category", op,
				)
				return v, nil
			}
		}
		return zero, err
	}
	e.store(env)

	v, ok := c.get()
	if !ok {
		return zero, apperror.New(apperror.KindServiceTimeout, op, "category not resolved after polling")
	}
	return v, nil
}

// poll reads the endpoint until the service reports a terminal state or the
// poll timeout elapses.
func (e *Entity) poll(ctx context.Context, endpoint model.Endpoint, entityID string) (env *model.Envelope, err error) {
	op := endpoint.String()
	settings := e.client.poll

	ctx, span := e.client.tracer.Start(ctx, "bankconnect.Poll", trace.WithAttributes(
		attribute.String("bankconnect.entity_id", entityID),
		attribute.String("bankconnect.endpoint", op),
	))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	deadline := start.Add(settings.Timeout)
	attempts := 0

	for time.Now().Before(deadline) {
		attempts++
		resp, fetchErr := e.client.conn.Fetch(ctx, endpoint, entityID)
		if fetchErr != nil {
			return nil, fetchErr
		}

		verdict := Classify(resp.Progress)
		e.client.metrics.ObservePoll(op, verdict.String())
		e.client.logger.Debug("poll attempt",
			"entity_id", entityID,
			"endpoint", op,
			"attempt", attempts,
			"verdict", verdict.String(),
		)

		switch verdict {
		case VerdictFailed:
			return nil, apperror.New(apperror.KindExtractionFailed, op, "")
		case VerdictNotFound:
			return nil, apperror.New(apperror.KindEntityNotFound, op, "")
		case VerdictCompleted:
			if missing := resp.Missing(); missing != 0 {
				return nil, apperror.New(apperror.KindFormatChanged, op, "response is missing "+missing.String())
			}
			span.SetAttributes(attribute.Int("bankconnect.poll_attempts", attempts))
			return resp, nil
		}

		timer := time.NewTimer(settings.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperror.Wrap(apperror.KindServiceTimeout, op, ctx.Err())
		case <-timer.C:
		}
	}

	e.client.logger.Warn("poll timed out",
		"entity_id", entityID,
		"endpoint", op,
		"attempts", attempts,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil, apperror.New(apperror.KindServiceTimeout, op, "extraction still in progress after poll timeout")
}

// store caches every category the envelope carries.
func (e *Entity) store(env *model.Envelope) {
	if env.Present.Has(model.CategoryAccounts) {
		e.accounts.set(env.Accounts)
	}
	if env.Present.Has(model.CategoryFraudInfo) {
		e.fraudInfo.set(env.FraudInfo)
	}
	if env.Present.Has(model.CategoryIdentity) {
		e.identity.set(env.Identity)
	}
	if env.Present.Has(model.CategoryTransactions) {
		e.transactions.set(env.Transactions)
	}
	if env.Present.Has(model.CategoryCreditRecurring) {
		e.creditRecurring.set(env.CreditRecurring)
	}
	if env.Present.Has(model.CategoryDebitRecurring) {
		e.debitRecurring.set(env.DebitRecurring)
	}
	if env.Present.Has(model.CategorySalary) {
		e.salary.set(env.Salary)
	}
	if env.Present.Has(model.CategoryLenderTransactions) {
		e.lenderTransactions.set(env.LenderTransactions)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
