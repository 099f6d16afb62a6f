package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// envelopeWire mirrors a read response. Pointers distinguish absent sections from empty ones.
type envelopeWire struct {
	Progress *[]model.StatementProgress `json:"progress"`
	Accounts *[]model.Account           `json:"accounts"`
	Fraud    *struct {
		FraudType *[]model.FraudInfo `json:"fraud_type"`
	} `json:"fraud"`
	Identity     json.RawMessage      `json:"identity"`
	Transactions *[]model.Transaction `json:"transactions"`
	Recurring    *struct {
		Credit *[]model.RecurringGroup `json:"credit_transactions"`
		Debit  *[]model.RecurringGroup `json:"debit_transactions"`
	} `json:"recurring_transactions"`
}

// Fetch performs one read of the endpoint for entityID.
//
// It fails with KindEntityNotFound on 404, KindServiceFailed on any other
// non-200 status or transport failure, and KindFormatChanged when a 200 body
// cannot be decoded or carries no progress list. Payload completeness is left to the caller, which knows
// whether the progress verdict requires it.
func (c *Client) Fetch(ctx context.Context, endpoint model.Endpoint, entityID string) (env *model.Envelope, err error) {
	ctx, span := c.tracer.Start(ctx, "connector.Fetch", trace.WithAttributes(
		attribute.String("bankconnect.entity_id", entityID),
		attribute.String("bankconnect.endpoint", endpoint.String()),
	))
	defer func() { endSpan(span, err) }()

	op := OpFetch + "_" + endpoint.String()
	resp, err := c.send(ctx, op, 1, getRequest(c.url("/entity/%s/%s/", url.PathEscape(entityID), endpoint.String())))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindServiceFailed, op, err)
	}

	switch resp.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, apperror.New(apperror.KindEntityNotFound, op, "")
	default:
		c.logger.Error("unexpected read response",
			"entity_id", entityID,
			"endpoint", endpoint.String(),
			"status", resp.status,
			"body", truncate(resp.body, 512),
		)
		return nil, apperror.New(apperror.KindServiceFailed, op, fmt.Sprintf("unexpected status %d", resp.status))
	}

	env, err = decodeEnvelope(endpoint, resp.body)
	if err != nil {
		c.logger.Error("read response format changed",
			"entity_id", entityID,
			"endpoint", endpoint.String(),
			"error", err,
			"body", truncate(resp.body, 512),
		)
		return nil, apperror.Wrap(apperror.KindFormatChanged, op, err)
	}
	return env, nil
}

func decodeEnvelope(endpoint model.Endpoint, body []byte) (*model.Envelope, error) {
	var wire envelopeWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	if wire.Progress == nil {
		return nil, fmt.Errorf("%s response has no progress", endpoint)
	}
	progress := *wire.Progress
	if progress == nil {
		progress = []model.StatementProgress{}
	}

	env := &model.Envelope{
		Endpoint: endpoint,
		Progress: progress,
	}

	if wire.Accounts != nil {
		env.Accounts = *wire.Accounts
		env.Present |= model.CategoryAccounts
	}
	if wire.Fraud != nil && wire.Fraud.FraudType != nil {
		env.FraudInfo = *wire.Fraud.FraudType
		env.Present |= model.CategoryFraudInfo
	}

	identity, ok, err := decodeIdentity(wire.Identity)
	if err != nil {
		return nil, err
	}
	if ok {
		env.Identity = identity
		env.Present |= model.CategoryIdentity
	}

	// salary and lender reads reuse the transactions key
	if wire.Transactions != nil {
		switch endpoint {
		case model.EndpointSalary:
			env.Salary = *wire.Transactions
			env.Present |= model.CategorySalary
		case model.EndpointLenderTransactions:
			env.LenderTransactions = *wire.Transactions
			env.Present |= model.CategoryLenderTransactions
		default:
			env.Transactions = *wire.Transactions
			env.Present |= model.CategoryTransactions
		}
	}

	if wire.Recurring != nil {
		if wire.Recurring.Credit != nil {
			env.CreditRecurring = *wire.Recurring.Credit
			env.Present |= model.CategoryCreditRecurring
		}
		if wire.Recurring.Debit != nil {
			env.DebitRecurring = *wire.Recurring.Debit
			env.Present |= model.CategoryDebitRecurring
		}
	}

	return env, nil
}

// decodeIdentity accepts either a single object or a list whose first element is used.
func decodeIdentity(raw json.RawMessage) (model.Identity, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return model.Identity{}, false, nil
	}

	if trimmed[0] == '[' {
		var list []model.Identity
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return model.Identity{}, false, fmt.Errorf("decode identity list: %w", err)
		}
		if len(list) == 0 {
			return model.Identity{}, false, nil
		}
		return list[0], true, nil
	}

	var identity model.Identity
	if err := json.Unmarshal(trimmed, &identity); err != nil {
		return model.Identity{}, false, fmt.Errorf("decode identity: %w", err)
	}
	return identity, true, nil
}
