package bankconnect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fixtures "github.com/FACorreiaa/bankconnect-go/internal/testutil"
	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/connector"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

const (
	testEntityID = "7d9a3c1e-5f2b-4c8d-9e0f-1a2b3c4d5e6f"
	testLinkID   = "customer-42"
)

var statementStart = time.Date(2019, 9, 1, 10, 0, 0, 0, time.UTC)

// fakeConnector implements Connector with scripted responses.
type fakeConnector struct {
	mu sync.Mutex

	createCalls atomic.Int32
	linkCalls   atomic.Int32
	uploadCalls atomic.Int32
	fetchCalls  map[model.Endpoint]int

	createErr error
	linkID    string
	linkErr   error

	lastUpload  connector.UploadRequest
	uploadBody  []byte
	uploadErr   error
	uploadReply *model.UploadResult

	// fetch scripts the n-th (1-based) read of an endpoint.
	fetch func(endpoint model.Endpoint, n int) (*model.Envelope, error)
	delay time.Duration
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{fetchCalls: make(map[model.Endpoint]int)}
}

func (f *fakeConnector) CreateEntity(_ context.Context, _ string) (string, error) {
	f.createCalls.Add(1)
	if f.createErr != nil {
		return "", f.createErr
	}
	return testEntityID, nil
}

func (f *fakeConnector) GetLinkID(_ context.Context, _ string) (string, error) {
	f.linkCalls.Add(1)
	return f.linkID, f.linkErr
}

func (f *fakeConnector) UploadStatement(_ context.Context, req connector.UploadRequest) (*model.UploadResult, error) {
	f.uploadCalls.Add(1)
	body, err := io.ReadAll(req.File)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastUpload = req
	f.uploadBody = body
	f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.uploadReply, nil
}

func (f *fakeConnector) Fetch(_ context.Context, endpoint model.Endpoint, _ string) (*model.Envelope, error) {
	f.mu.Lock()
	f.fetchCalls[endpoint]++
	n := f.fetchCalls[endpoint]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.fetch(endpoint, n)
}

func (f *fakeConnector) calls(endpoint model.Endpoint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls[endpoint]
}

func completedFetch(gen *fixtures.Generator, accountID string) func(model.Endpoint, int) (*model.Envelope, error) {
	return func(endpoint model.Endpoint, _ int) (*model.Envelope, error) {
		return gen.CompletedEnvelope(endpoint, accountID, statementStart), nil
	}
}

func newTestClient(conn Connector, opts ...Option) *Client {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewWithConnector(conn, PollSettings{Timeout: time.Second, Interval: 10 * time.Millisecond}, opts...)
}

func writePDF(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o600))
	return path
}

func TestClientGet_Validation(t *testing.T) {
	client := newTestClient(newFakeConnector())

	_, err := client.Get("")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = client.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	entity, err := client.Get(testEntityID)
	require.NoError(t, err)
	id, err := entity.EntityID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testEntityID, id)
}

func TestEntityID_ResolvedOnceFromLinkID(t *testing.T) {
	conn := newFakeConnector()
	entity := newTestClient(conn).Create(testLinkID)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := entity.EntityID(ctx)
		require.NoError(t, err)
		assert.Equal(t, testEntityID, id)
	}
	assert.Equal(t, int32(1), conn.createCalls.Load())

	linkID, err := entity.LinkID(ctx)
	require.NoError(t, err)
	assert.Equal(t, testLinkID, linkID)
	assert.Equal(t, int32(0), conn.linkCalls.Load())
}

func TestEntityID_CreateFailureIsNotCached(t *testing.T) {
	conn := newFakeConnector()
	conn.createErr = apperror.New(apperror.KindServiceTimeout, "create_entity", "")
	entity := newTestClient(conn).Create(testLinkID)

	_, err := entity.EntityID(context.Background())
	assert.ErrorIs(t, err, ErrServiceTimeout)

	conn.createErr = nil
	id, err := entity.EntityID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testEntityID, id)
	assert.Equal(t, int32(2), conn.createCalls.Load())
}

func TestEntity_NotYetUploaded(t *testing.T) {
	conn := newFakeConnector()
	entity := newTestClient(conn).Create("")
	ctx := context.Background()

	_, err := entity.EntityID(ctx)
	assert.ErrorIs(t, err, ErrNotYetUploaded)

	_, err = entity.LinkID(ctx)
	assert.ErrorIs(t, err, ErrNotYetUploaded)

	_, err = entity.Transactions(ctx, Query{})
	assert.ErrorIs(t, err, ErrNotYetUploaded)
	assert.Equal(t, int32(0), conn.createCalls.Load())
}

func TestLinkID_LookedUpOnce(t *testing.T) {
	conn := newFakeConnector()
	conn.linkID = testLinkID
	entity, err := newTestClient(conn).Get(testEntityID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		linkID, err := entity.LinkID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testLinkID, linkID)
	}
	assert.Equal(t, int32(1), conn.linkCalls.Load())
}

func TestLinkID_EntityNotFound(t *testing.T) {
	conn := newFakeConnector()
	conn.linkErr = apperror.New(apperror.KindEntityNotFound, "get_link_id", "")
	entity, err := newTestClient(conn).Get(testEntityID)
	require.NoError(t, err)

	_, err = entity.LinkID(context.Background())
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestCategories_CachedAfterFirstRead(t *testing.T) {
	gen := fixtures.NewGenerator(1)
	accountID := gen.AccountID()
	conn := newFakeConnector()
	conn.fetch = completedFetch(gen, accountID)
	entity, err := newTestClient(conn).Get(testEntityID)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := entity.Transactions(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, first, 5)

	second, err := entity.Transactions(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, conn.calls(model.EndpointTransactions))

	// the transactions read also carried accounts and fraud info
	accounts, err := entity.Accounts(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, accountID, accounts[0].AccountID)
	_, err = entity.FraudInfo(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, 0, conn.calls(model.EndpointAccounts))
	assert.True(t, entity.Loaded(model.CategoryFraudInfo))
	assert.False(t, entity.Loaded(model.CategorySalary))
}

func TestCategories_ReloadFetchesAgain(t *testing.T) {
	gen := fixtures.NewGenerator(2)
	conn := newFakeConnector()
	conn.fetch = completedFetch(gen, gen.AccountID())
	entity, err := newTestClient(conn).Get(testEntityID)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = entity.Salary(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), entity.Version(model.CategorySalary))

	_, err = entity.Salary(ctx, Query{Reload: true})
	require.NoError(t, err)
	assert.Equal(t, 2, conn.calls(model.EndpointSalary))
	assert.Equal(t, uint64(2), entity.Version(model.CategorySalary))
}

func TestCategories_ReloadFailureKeepsCache(t *testing.T) {
	gen := fixtures.NewGenerator(3)
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, n int) (*model.Envelope, error) {
		if n > 1 {
			return nil, apperror.New(apperror.KindServiceFailed, "fetch", "")
		}
		return gen.CompletedEnvelope(endpoint, accountA, statementStart), nil
	}
	entity, err := newTestClient(conn).Get(testEntityID)
	require.NoError(t, err)
	ctx := context.Background()

	want, err := entity.Identity(ctx, false)
	require.NoError(t, err)

	_, err = entity.Identity(ctx, true)
	assert.ErrorIs(t, err, ErrServiceFailed)

	got, err := entity.Identity(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCategories_ReloadTimeoutServesCache(t *testing.T) {
	gen := fixtures.NewGenerator(3)
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, n int) (*model.Envelope, error) {
		if n > 1 {
			return &model.Envelope{Endpoint: endpoint, Progress: fixtures.Processing(1)}, nil
		}
		return gen.CompletedEnvelope(endpoint, accountA, statementStart), nil
	}
	client := NewWithConnector(conn, PollSettings{Timeout: 50 * time.Millisecond, Interval: 20 * time.Millisecond},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	entity, err := client.Get(testEntityID)
	require.NoError(t, err)
	ctx := context.Background()

	want, err := entity.Transactions(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, want, 5)

	got, err := entity.Transactions(ctx, Query{Reload: true})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Greater(t, conn.calls(model.EndpointTransactions), 1)
	assert.True(t, entity.Loaded(model.CategoryTransactions))
	assert.Equal(t, uint64(1), entity.Version(model.CategoryTransactions))
}

func TestCategories_ReloadCancelledDoesNotServeCache(t *testing.T) {
	gen := fixtures.NewGenerator(3)
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, n int) (*model.Envelope, error) {
		if n > 1 {
			return &model.Envelope{Endpoint: endpoint, Progress: fixtures.Processing(1)}, nil
		}
		return gen.CompletedEnvelope(endpoint, accountA, statementStart), nil
	}
	client := NewWithConnector(conn, PollSettings{Timeout: time.Minute, Interval: time.Minute},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	entity, err := client.Get(testEntityID)
	require.NoError(t, err)

	_, err = entity.Transactions(context.Background(), Query{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = entity.Transactions(ctx, Query{Reload: true})
	assert.ErrorIs(t, err, ErrServiceTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoll_ProcessingThenCompleted(t *testing.T) {
	gen := fixtures.NewGenerator(4)
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, n int) (*model.Envelope, error) {
		if n < 3 {
			return &model.Envelope{Endpoint: endpoint, Progress: fixtures.Processing(1)}, nil
		}
		return gen.CompletedEnvelope(endpoint, accountA, statementStart), nil
	}
	reg := prometheus.NewRegistry()
	metrics := connector.NewMetrics(reg)
	entity, err := newTestClient(conn, WithMetrics(metrics)).Get(testEntityID)
	require.NoError(t, err)

	groups, err := entity.CreditRecurring(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, groups, 1)
	assert.Equal(t, 3, conn.calls(model.EndpointRecurring))
	assert.True(t, entity.Loaded(model.CategoryDebitRecurring))

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Polls().WithLabelValues("recurring_transactions", "processing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Polls().WithLabelValues("recurring_transactions", "completed")))
}

func TestPoll_Timeout(t *testing.T) {
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, _ int) (*model.Envelope, error) {
		return &model.Envelope{Endpoint: endpoint, Progress: fixtures.Processing(2)}, nil
	}
	client := NewWithConnector(conn, PollSettings{Timeout: 200 * time.Millisecond, Interval: 100 * time.Millisecond},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	entity, err := client.Get(testEntityID)
	require.NoError(t, err)

	_, err = entity.Transactions(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrServiceTimeout)
	calls := conn.calls(model.EndpointTransactions)
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 3)
	assert.False(t, entity.Loaded(model.CategoryTransactions))
}

func TestPoll_ZeroTimeoutMakesNoRequest(t *testing.T) {
	conn := newFakeConnector()
	client := NewWithConnector(conn, PollSettings{Timeout: 0, Interval: time.Second})
	entity, err := client.Get(testEntityID)
	require.NoError(t, err)

	_, err = entity.Accounts(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrServiceTimeout)
	assert.Equal(t, 0, conn.calls(model.EndpointAccounts))
}

func TestPoll_ContextCancelled(t *testing.T) {
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, _ int) (*model.Envelope, error) {
		return &model.Envelope{Endpoint: endpoint, Progress: fixtures.Processing(1)}, nil
	}
	client := NewWithConnector(conn, PollSettings{Timeout: time.Minute, Interval: time.Minute})
	entity, err := client.Get(testEntityID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = entity.Transactions(ctx, Query{})
	assert.ErrorIs(t, err, ErrServiceTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoll_TerminalStates(t *testing.T) {
	tests := []struct {
		name     string
		envelope func(model.Endpoint) *model.Envelope
		want     error
	}{
		{
			name: "failed statement",
			envelope: func(e model.Endpoint) *model.Envelope {
				return &model.Envelope{Endpoint: e, Progress: statuses(model.StatusCompleted, model.StatusFailed)}
			},
			want: ErrExtractionFailed,
		},
		{
			name: "no progress",
			envelope: func(e model.Endpoint) *model.Envelope {
				return &model.Envelope{Endpoint: e}
			},
			want: ErrEntityNotFound,
		},
		{
			name: "completed without payload",
			envelope: func(e model.Endpoint) *model.Envelope {
				return &model.Envelope{Endpoint: e, Progress: statuses(model.StatusCompleted),
					Present: model.CategoryAccounts | model.CategoryFraudInfo}
			},
			want: ErrFormatChanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConnector()
			conn.fetch = func(endpoint model.Endpoint, _ int) (*model.Envelope, error) {
				return tt.envelope(endpoint), nil
			}
			entity, err := newTestClient(conn).Get(testEntityID)
			require.NoError(t, err)

			_, err = entity.LenderTransactions(context.Background(), Query{})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, conn.calls(model.EndpointLenderTransactions))
		})
	}
}

func TestCategories_Filters(t *testing.T) {
	gen := fixtures.NewGenerator(5)
	conn := newFakeConnector()
	conn.fetch = func(endpoint model.Endpoint, _ int) (*model.Envelope, error) {
		env := gen.CompletedEnvelope(endpoint, accountA, statementStart)
		env.Transactions = append(env.Transactions, gen.Transactions(accountB, statementStart, 2)...)
		return env, nil
	}
	entity, err := newTestClient(conn).Get(testEntityID)
	require.NoError(t, err)
	ctx := context.Background()

	byAccount, err := entity.Transactions(ctx, Query{AccountID: accountB})
	require.NoError(t, err)
	assert.Len(t, byAccount, 2)

	// 2019-09-01 through 2019-09-05 for A, 09-01 and 09-02 for B
	byDate, err := entity.Transactions(ctx, Query{
		From: time.Date(2019, 9, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2019, 9, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, byDate, 3)

	all, err := entity.Transactions(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 7)
	assert.Equal(t, 1, conn.calls(model.EndpointTransactions))

	_, err = entity.Transactions(ctx, Query{AccountID: "bad"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCategories_ConcurrentReadsShareOneRoundTrip(t *testing.T) {
	gen := fixtures.NewGenerator(6)
	var genMu sync.Mutex
	conn := newFakeConnector()
	conn.delay = 30 * time.Millisecond
	conn.fetch = func(endpoint model.Endpoint, _ int) (*model.Envelope, error) {
		genMu.Lock()
		defer genMu.Unlock()
		return gen.CompletedEnvelope(endpoint, accountA, statementStart), nil
	}
	entity := newTestClient(conn).Create(testLinkID)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := entity.Transactions(context.Background(), Query{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, conn.calls(model.EndpointTransactions))
	assert.Equal(t, int32(1), conn.createCalls.Load())
}

func TestUploadStatement_Validation(t *testing.T) {
	conn := newFakeConnector()
	entity := newTestClient(conn).Create("")
	ctx := context.Background()

	_, err := entity.UploadStatement(ctx, "", UploadOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = entity.UploadStatement(ctx, "statement.png", UploadOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = entity.UploadStatement(ctx, filepath.Join(t.TempDir(), "missing.pdf"), UploadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, int32(0), conn.uploadCalls.Load())
}

func TestUploadStatement_FixesEntityID(t *testing.T) {
	gen := fixtures.NewGenerator(7)
	identity := gen.Identity(accountA)
	conn := newFakeConnector()
	conn.uploadReply = &model.UploadResult{IsAuthentic: true, EntityID: testEntityID, Identity: identity}
	entity := newTestClient(conn).Create("")
	ctx := context.Background()

	authentic, err := entity.UploadStatement(ctx, writePDF(t, "Statement.PDF"), UploadOptions{Password: "secret", BankName: "axis"})
	require.NoError(t, err)
	assert.True(t, authentic)
	assert.Empty(t, conn.lastUpload.EntityID)
	assert.Equal(t, "secret", conn.lastUpload.Password)
	assert.Equal(t, "axis", conn.lastUpload.BankName)
	assert.Equal(t, []byte("%PDF-1.4 fake"), conn.uploadBody)

	id, err := entity.EntityID(ctx)
	require.NoError(t, err)
	assert.Equal(t, testEntityID, id)

	// identity came with the upload, so no read is needed
	got, err := entity.Identity(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
	assert.Equal(t, 0, conn.calls(model.EndpointIdentity))
}

func TestUploadStatement_ResolvesLinkIDFirst(t *testing.T) {
	conn := newFakeConnector()
	conn.uploadReply = &model.UploadResult{IsAuthentic: false, EntityID: testEntityID}
	entity := newTestClient(conn).Create(testLinkID)

	authentic, err := entity.UploadStatement(context.Background(), writePDF(t, "s.pdf"), UploadOptions{})
	require.NoError(t, err)
	assert.False(t, authentic)
	assert.Equal(t, int32(1), conn.createCalls.Load())
	assert.Equal(t, testEntityID, conn.lastUpload.EntityID)
}

func TestUploadStatement_RejectionLeavesStateUntouched(t *testing.T) {
	conn := newFakeConnector()
	conn.uploadErr = apperror.New(apperror.KindPasswordIncorrect, "upload_statement", "")
	entity := newTestClient(conn).Create("")

	_, err := entity.UploadStatement(context.Background(), writePDF(t, "s.pdf"), UploadOptions{Password: "wrong"})
	assert.ErrorIs(t, err, ErrPasswordIncorrect)

	_, err = entity.EntityID(context.Background())
	assert.ErrorIs(t, err, ErrNotYetUploaded)
	assert.False(t, entity.Loaded(model.CategoryIdentity))
}
