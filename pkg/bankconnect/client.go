// Package bankconnect is a client for the bank statement extraction service.
//
// An Entity is a lazily resolved handle on one extraction unit. Its identifiers
// and data categories are fetched on first read and cached; reads of categories
// still being extracted poll the service until a terminal state or the
// configured timeout.
//
//	client, err := bankconnect.New(cfg.BankConnect)
//	entity := client.Create("customer-42")
//	authentic, err := entity.UploadStatement(ctx, "statement.pdf", bankconnect.UploadOptions{})
//	txns, err := entity.Transactions(ctx, bankconnect.Query{})
//
// An Entity may be shared between goroutines. Concurrent reads of the same
// unresolved data perform a single remote round trip.
package bankconnect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/config"
	"github.com/FACorreiaa/bankconnect-go/pkg/connector"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

const tracerName = "github.com/FACorreiaa/bankconnect-go/pkg/bankconnect"

// Connector is the remote access layer an Entity drives.
type Connector interface {
	CreateEntity(ctx context.Context, linkID string) (string, error)
	GetLinkID(ctx context.Context, entityID string) (string, error)
	UploadStatement(ctx context.Context, req connector.UploadRequest) (*model.UploadResult, error)
	Fetch(ctx context.Context, endpoint model.Endpoint, entityID string) (*model.Envelope, error)
}

var _ Connector = (*connector.Client)(nil)

// PollSettings bounds the poll loop of category reads.
type PollSettings struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Client creates entities bound to one connector and poll policy.
type Client struct {
	conn    Connector
	poll    PollSettings
	metrics *connector.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

type options struct {
	logger         *slog.Logger
	metrics        *connector.Metrics
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
}

// Option customizes a Client.
type Option func(*options)

// WithLogger sets the logger for the client, its entities and the default connector.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records request and poll metrics.
func WithMetrics(m *connector.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithHTTPClient replaces the HTTP client of the default connector.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTracerProvider sets where poll and request spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// New creates a client backed by the HTTP connector.
func New(cfg config.BankConnectConfig, opts ...Option) (*Client, error) {
	o := collect(opts)
	conn, err := connector.NewClient(cfg,
		connector.WithLogger(o.logger),
		connector.WithMetrics(o.metrics),
		connector.WithHTTPClient(o.httpClient),
		connector.WithTracerProvider(o.tracerProvider),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}
	return newClient(conn, PollSettings{Timeout: cfg.PollTimeout, Interval: cfg.PollInterval}, o), nil
}

// NewWithConnector creates a client over a custom remote access layer.
func NewWithConnector(conn Connector, poll PollSettings, opts ...Option) *Client {
	return newClient(conn, poll, collect(opts))
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

func newClient(conn Connector, poll PollSettings, o options) *Client {
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Client{
		conn:    conn,
		poll:    poll,
		metrics: o.metrics,
		tracer:  tp.Tracer(tracerName),
		logger:  o.logger,
	}
}

// Create returns a new entity. With an empty linkID the entity id is only known
// after the first successful upload.
func (c *Client) Create(linkID string) *Entity {
	e := newEntity(c)
	if linkID != "" {
		e.linkID.set(linkID)
	}
	return e
}

// Get returns a handle on an existing entity. No request is made until data is read.
func (c *Client) Get(entityID string) (*Entity, error) {
	if entityID == "" {
		return nil, apperror.InvalidArgument("get_entity", "entity_id cannot be blank")
	}
	if !IsValidUUID4(entityID) {
		return nil, apperror.InvalidArgument("get_entity", "invalid entity_id %q", entityID)
	}
	e := newEntity(c)
	e.entityID.set(entityID)
	return e, nil
}
