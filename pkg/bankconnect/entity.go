package bankconnect

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/connector"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

const numEndpoints = int(model.EndpointLenderTransactions) + 1

// Entity is the client-side handle of one extraction unit.
type Entity struct {
	client *Client

	// idMu serializes identifier resolution and uploads.
	idMu     sync.Mutex
	entityID cell[string]
	linkID   cell[string]

	// fetchMu serializes poll cycles per remote read.
	fetchMu [numEndpoints]sync.Mutex

	accounts           cell[[]model.Account]
	fraudInfo          cell[[]model.FraudInfo]
	identity           cell[model.Identity]
	transactions       cell[[]model.Transaction]
	creditRecurring    cell[[]model.RecurringGroup]
	debitRecurring     cell[[]model.RecurringGroup]
	salary             cell[[]model.Transaction]
	lenderTransactions cell[[]model.Transaction]
}

func newEntity(c *Client) *Entity {
	return &Entity{client: c}
}

// EntityID returns the server-assigned id. An entity created from a link id is
// registered with the service on the first call; the result is cached.
func (e *Entity) EntityID(ctx context.Context) (string, error) {
	if id, ok := e.entityID.get(); ok {
		return id, nil
	}
	e.idMu.Lock()
	defer e.idMu.Unlock()
	return e.resolveEntityIDLocked(ctx)
}

func (e *Entity) resolveEntityIDLocked(ctx context.Context) (string, error) {
	if id, ok := e.entityID.get(); ok {
		return id, nil
	}
	linkID, ok := e.linkID.get()
	if !ok {
		return "", apperror.New(apperror.KindNotYetUploaded, "entity_id", "")
	}

	id, err := e.client.conn.CreateEntity(ctx, linkID)
	if err != nil {
		return "", err
	}
	e.entityID.set(id)
	e.client.logger.Debug("entity id resolved from link id", "link_id", linkID, "entity_id", id)
	return id, nil
}

// LinkID returns the caller-chosen correlation token, looking it up once when
// the entity was obtained by id.
func (e *Entity) LinkID(ctx context.Context) (string, error) {
	if linkID, ok := e.linkID.get(); ok {
		return linkID, nil
	}
	e.idMu.Lock()
	defer e.idMu.Unlock()

	if linkID, ok := e.linkID.get(); ok {
		return linkID, nil
	}
	entityID, ok := e.entityID.get()
	if !ok {
		return "", apperror.New(apperror.KindNotYetUploaded, "link_id", "no statement uploaded yet, upload a statement to set the link id")
	}

	linkID, err := e.client.conn.GetLinkID(ctx, entityID)
	if err != nil {
		return "", err
	}
	e.linkID.set(linkID)
	return linkID, nil
}

// UploadOptions are the optional fields of an upload.
type UploadOptions struct {
	Password string
	// BankName selects the named-bank upload. Empty lets the service detect the bank.
	BankName string
}

// UploadStatement submits a PDF statement for this entity and returns true when
// the statement was judged authentic. A successful upload fixes the entity id if
// it was not yet known and caches the identity it returned.
func (e *Entity) UploadStatement(ctx context.Context, filePath string, opts UploadOptions) (authentic bool, err error) {
	const op = "upload_statement"

	if filePath == "" {
		return false, apperror.InvalidArgument(op, "file_path cannot be blank")
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return false, apperror.InvalidArgument(op, "file_path must be of a pdf file")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to open statement: %w", err)
	}
	defer f.Close()

	ctx, span := e.client.tracer.Start(ctx, "bankconnect.UploadStatement",
		trace.WithAttributes(attribute.Bool("bankconnect.named_bank", opts.BankName != "")))
	defer func() { endSpan(span, err) }()

	e.idMu.Lock()
	defer e.idMu.Unlock()

	entityID, known := e.entityID.get()
	if !known && e.linkID.loaded() {
		entityID, err = e.resolveEntityIDLocked(ctx)
		if err != nil {
			return false, err
		}
		known = true
	}

	result, err := e.client.conn.UploadStatement(ctx, connector.UploadRequest{
		EntityID: entityID,
		FileName: filePath,
		File:     f,
		Password: opts.Password,
		BankName: opts.BankName,
	})
	if err != nil {
		return false, err
	}

	if !known {
		e.entityID.set(result.EntityID)
	}
	e.identity.set(result.Identity)

	e.client.logger.Info("statement uploaded",
		"entity_id", result.EntityID,
		"is_authentic", result.IsAuthentic,
	)
	return result.IsAuthentic, nil
}
