package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gooze.dev/pkg/grafter/internal/domain"
	m "gooze.dev/pkg/grafter/internal/model"
)

// MockOrchestrator is a mock of domain.Orchestrator.
type MockOrchestrator struct {
	mock.Mock
}

var _ domain.Orchestrator = (*MockOrchestrator)(nil)

// Execute provides a mock function with given fields: ctx, job.
func (_m *MockOrchestrator) Execute(ctx context.Context, job domain.Job) (m.Execution, error) {
	ret := _m.Called(ctx, job)

	var exec m.Execution
	if fn, ok := ret.Get(0).(func(context.Context, domain.Job) m.Execution); ok {
		exec = fn(ctx, job)
	} else if ret.Get(0) != nil {
		exec = ret.Get(0).(m.Execution)
	}

	return exec, ret.Error(1)
}

// NewMockOrchestrator creates a new instance of MockOrchestrator. It also
// registers a cleanup function to assert the mock's expectations.
func NewMockOrchestrator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockOrchestrator {
	mockOrchestrator := &MockOrchestrator{}
	mockOrchestrator.Test(t)

	t.Cleanup(func() { mockOrchestrator.AssertExpectations(t) })

	return mockOrchestrator
}
