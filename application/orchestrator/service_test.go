package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/events"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/workflow"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/persistence/memory"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) CreateGraph(ctx context.Context, graph *workflow.ConcreteGraph) (string, error) {
	args := m.Called(ctx, graph)
	return args.String(0), args.Error(1)
}

func (m *mockEngine) UpdateGraph(ctx context.Context, externalID string, graph *workflow.ConcreteGraph) error {
	args := m.Called(ctx, externalID, graph)
	return args.Error(0)
}

func (m *mockEngine) GetGraphStatus(ctx context.Context, externalID string) (ports.GraphStatus, error) {
	args := m.Called(ctx, externalID)
	return args.Get(0).(ports.GraphStatus), args.Error(1)
}

// recordingBus captures published events in order
type recordingBus struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (b *recordingBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.GetEventType()
	}
	return out
}

// transientError marks an error as retryable for the policy
type transientError struct {
	msg string
}

func (e *transientError) Error() string   { return e.msg }
func (e *transientError) Transient() bool { return true }

func fastRetry() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

type serviceFixture struct {
	service *Service
	engine  *mockEngine
	ledger  *memory.Ledger
	locks   *memory.LockManager
	bus     *recordingBus
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		engine: new(mockEngine),
		ledger: memory.NewLedger(),
		locks:  memory.NewLockManager(),
		bus:    &recordingBus{},
	}
	f.service = NewService(
		f.ledger, f.locks, f.engine, f.bus,
		nil, nil, nil, nil,
		fastRetry(), zap.NewNop(),
	)
	return f
}

func testGraph(name string) *workflow.ConcreteGraph {
	return &workflow.ConcreteGraph{
		Name:     name,
		Strategy: workflow.StrategyUnified,
		Nodes: []workflow.GraphNode{
			{ID: "trigger", Kind: workflow.NodeKindTrigger, Parameters: map[string]string{"credential": "cred-1"}},
		},
		Connections: []workflow.Connection{{From: "trigger", To: "apply-labels"}},
	}
}

func TestDeploy_FirstDeploymentCreatesGraph(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()

	// Act
	outcome, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, deployment.StatusSuccess, outcome.Status)
	assert.Equal(t, "wf-1", outcome.ExternalGraphID)
	assert.Equal(t, graph.Hash(), outcome.GraphHash)
	assert.True(t, outcome.ActivationVerified)
	f.engine.AssertExpectations(t)

	history, err := f.ledger.History(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, deployment.StatusSuccess, history[0].Status)
	assert.Equal(t, deployment.ActivationVerified, history[0].Activation)
	assert.True(t, history[0].Finished())

	assert.Equal(t, []string{"deployment.succeeded"}, f.bus.types())
}

func TestDeploy_IdenticalContentShortCircuits(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()

	_, err := f.service.Deploy(ctx, "profile-1", graph)
	require.NoError(t, err)

	// Act: redeploy the exact same content
	outcome, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert: the engine is not called a second time
	require.NoError(t, err)
	assert.Equal(t, deployment.StatusUnchanged, outcome.Status)
	assert.True(t, outcome.Unchanged)
	assert.Equal(t, "wf-1", outcome.ExternalGraphID)
	f.engine.AssertNumberOfCalls(t, "CreateGraph", 1)
	f.engine.AssertNumberOfCalls(t, "GetGraphStatus", 1)

	history, err := f.ledger.History(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, deployment.StatusUnchanged, history[1].Status)
	assert.Equal(t, int64(2), history[1].AttemptID)

	assert.Equal(t, []string{"deployment.succeeded", "deployment.unchanged"}, f.bus.types())
}

func TestDeploy_ChangedContentUpdatesInPlace(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	first := testGraph("acme")
	second := testGraph("acme-v2")

	f.engine.On("CreateGraph", mock.Anything, first).Return("wf-1", nil).Once()
	f.engine.On("UpdateGraph", mock.Anything, "wf-1", second).Return(nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Twice()

	_, err := f.service.Deploy(ctx, "profile-1", first)
	require.NoError(t, err)

	// Act
	outcome, err := f.service.Deploy(ctx, "profile-1", second)

	// Assert: the engine-side identifier is preserved across the update
	require.NoError(t, err)
	assert.Equal(t, "wf-1", outcome.ExternalGraphID)
	assert.Equal(t, deployment.StatusSuccess, outcome.Status)
	f.engine.AssertExpectations(t)
}

func TestDeploy_TransientErrorRetriesUntilSuccess(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("", &transientError{msg: "engine 503"}).Twice()
	f.engine.On("CreateGraph", mock.Anything, graph).Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()

	// Act
	outcome, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, deployment.StatusSuccess, outcome.Status)
	f.engine.AssertNumberOfCalls(t, "CreateGraph", 3)
}

func TestDeploy_PermanentErrorDoesNotRetry(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("", errors.New("invalid payload")).Once()

	// Act
	outcome, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert: one call, no retries, failed record in the ledger
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, appErrors.IsDeploymentFailed(err))
	f.engine.AssertNumberOfCalls(t, "CreateGraph", 1)

	history, err := f.ledger.History(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, deployment.StatusFailed, history[0].Status)
	assert.NotEmpty(t, history[0].ErrorDetail)
	assert.True(t, history[0].Finished())

	assert.Equal(t, []string{"deployment.failed"}, f.bus.types())
}

func TestDeploy_RetriesExhaustedFails(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("", &transientError{msg: "engine 503"})

	// Act
	_, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert: initial call plus MaxRetries attempts
	require.Error(t, err)
	assert.True(t, appErrors.IsDeploymentFailed(err))
	f.engine.AssertNumberOfCalls(t, "CreateGraph", 4)
}

func TestDeploy_SingleFlightContentionFailsFast(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	release, err := f.locks.Acquire(ctx, "profile-1")
	require.NoError(t, err)
	defer release()

	// Act
	_, err = f.service.Deploy(ctx, "profile-1", graph)

	// Assert
	require.Error(t, err)
	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeDeploymentInProgress))
	f.engine.AssertNotCalled(t, "CreateGraph")
}

func TestDeploy_ConcurrentCallsOneWinner(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	started := make(chan struct{})
	proceed := make(chan struct{})
	f.engine.On("CreateGraph", mock.Anything, graph).
		Run(func(args mock.Arguments) {
			close(started)
			<-proceed
		}).
		Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()

	var winnerErr error
	done := make(chan struct{})
	go func() {
		_, winnerErr = f.service.Deploy(ctx, "profile-1", graph)
		close(done)
	}()

	// Act: second call while the first holds the lock inside the engine call
	<-started
	_, loserErr := f.service.Deploy(ctx, "profile-1", graph)
	close(proceed)
	<-done

	// Assert
	assert.NoError(t, winnerErr)
	require.Error(t, loserErr)
	assert.True(t, appErrors.IsType(loserErr, appErrors.ErrorTypeDeploymentInProgress))

	history, err := f.ledger.History(ctx, "profile-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeploy_ActivationUnverifiedIsSurfacedNotRolledBack(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusInactive, nil).Once()

	// Act
	outcome, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert: the deployment record exists with the unverified flag, and no
	// rollback was attempted.
	require.NoError(t, err)
	assert.False(t, outcome.ActivationVerified)
	assert.NotEmpty(t, outcome.ErrorDetail)
	f.engine.AssertNotCalled(t, "UpdateGraph")

	history, err := f.ledger.History(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, deployment.ActivationUnverified, history[0].Activation)
}

func TestDeploy_CancelledContextStillFinalizesRecord(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).
		Run(func(args mock.Arguments) { cancel() }).
		Return("", &transientError{msg: "engine 503"})

	// Act
	_, err := f.service.Deploy(ctx, "profile-1", graph)

	// Assert: cancellation aborts the retry loop, but the ledger still gets a
	// terminal record.
	require.Error(t, err)

	history, herr := f.ledger.History(context.Background(), "profile-1")
	require.NoError(t, herr)
	require.Len(t, history, 1)
	assert.Equal(t, deployment.StatusFailed, history[0].Status)
	assert.True(t, history[0].Finished())
}

func TestRollback_RedeploysLastSuccessfulGraph(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	good := testGraph("acme")
	bad := testGraph("acme-broken")

	f.engine.On("CreateGraph", mock.Anything, good).Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()
	_, err := f.service.Deploy(ctx, "profile-1", good)
	require.NoError(t, err)

	f.engine.On("UpdateGraph", mock.Anything, "wf-1", mock.Anything).Return(errors.New("bad graph")).Once()
	_, err = f.service.Deploy(ctx, "profile-1", bad)
	require.Error(t, err)

	// Act: rollback must redeploy the last good content even though its hash
	// matches the last success.
	f.engine.On("UpdateGraph", mock.Anything, "wf-1", mock.MatchedBy(func(g *workflow.ConcreteGraph) bool {
		return g.Hash() == good.Hash()
	})).Return(nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()

	outcome, err := f.service.Rollback(ctx, "profile-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, deployment.StatusRolledBack, outcome.Status)
	assert.Equal(t, "wf-1", outcome.ExternalGraphID)
	assert.Equal(t, good.Hash(), outcome.GraphHash)
	f.engine.AssertExpectations(t)

	history, err := f.ledger.History(ctx, "profile-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, deployment.StatusRolledBack, history[2].Status)

	assert.Contains(t, f.bus.types(), "deployment.rolled_back")
}

func TestRollback_NoPriorSuccessIsNotFound(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()

	// Act
	_, err := f.service.Rollback(ctx, "profile-1")

	// Assert
	require.Error(t, err)
	assert.True(t, appErrors.IsNotFound(err))
	f.engine.AssertNotCalled(t, "UpdateGraph")
	f.engine.AssertNotCalled(t, "CreateGraph")
}

func TestGetHistory_ReturnsAllAttemptsOldestFirst(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newServiceFixture()
	graph := testGraph("acme")

	f.engine.On("CreateGraph", mock.Anything, graph).Return("wf-1", nil).Once()
	f.engine.On("GetGraphStatus", mock.Anything, "wf-1").Return(ports.GraphStatusActive, nil).Once()

	_, err := f.service.Deploy(ctx, "profile-1", graph)
	require.NoError(t, err)
	_, err = f.service.Deploy(ctx, "profile-1", graph)
	require.NoError(t, err)

	// Act
	history, err := f.service.GetHistory(ctx, "profile-1")

	// Assert
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].AttemptID)
	assert.Equal(t, int64(2), history[1].AttemptID)
	assert.Equal(t, deployment.StatusSuccess, history[0].Status)
	assert.Equal(t, deployment.StatusUnchanged, history[1].Status)
}
