package temporal

import (
	"context"
	"fmt"
	"sync"
)

// MockStarter is an in-memory Starter for testing. Started workflows stay
// running until Complete or Fail is called.
type MockStarter struct {
	mu       sync.Mutex
	started  map[string]ClassifyBatchInput
	statuses map[string]*ClassifyBatchStatus
	order    []string
	startErr error
}

// NewMockStarter creates a new MockStarter.
func NewMockStarter() *MockStarter {
	return &MockStarter{
		started:  make(map[string]ClassifyBatchInput),
		statuses: make(map[string]*ClassifyBatchStatus),
	}
}

// StartClassifyBatch records the input and returns a generated workflow ID.
func (m *MockStarter) StartClassifyBatch(ctx context.Context, input ClassifyBatchInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}

	id := workflowID()
	m.started[id] = input
	m.statuses[id] = &ClassifyBatchStatus{WorkflowID: id, Status: StatusRunning}
	m.order = append(m.order, id)
	return id, nil
}

// GetClassifyBatch returns the recorded status.
func (m *MockStarter) GetClassifyBatch(ctx context.Context, workflowID string) (*ClassifyBatchStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %q not found", workflowID)
	}
	cp := *status
	return &cp, nil
}

// Complete marks a workflow as completed with result.
func (m *MockStarter) Complete(workflowID string, result *ClassifyBatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[workflowID] = &ClassifyBatchStatus{WorkflowID: workflowID, Status: StatusCompleted, Result: result}
}

// Fail marks a workflow as failed.
func (m *MockStarter) Fail(workflowID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[workflowID] = &ClassifyBatchStatus{WorkflowID: workflowID, Status: StatusFailed, Error: err.Error()}
}

// Started returns the workflow IDs in start order.
func (m *MockStarter) Started() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Input returns the input a workflow was started with.
func (m *MockStarter) Input(workflowID string) (ClassifyBatchInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.started[workflowID]
	return in, ok
}

// SetStartError configures the mock to fail StartClassifyBatch.
func (m *MockStarter) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}
