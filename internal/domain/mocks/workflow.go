// Package mocks provides testify mocks of the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gooze.dev/pkg/grafter/internal/domain"
	m "gooze.dev/pkg/grafter/internal/model"
)

// MockWorkflow is a mock of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

var _ domain.Workflow = (*MockWorkflow)(nil)

// Repair provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) Repair(ctx context.Context, args domain.RepairArgs) (m.Summary, error) {
	ret := _m.Called(ctx, args)

	var summary m.Summary
	if fn, ok := ret.Get(0).(func(context.Context, domain.RepairArgs) m.Summary); ok {
		summary = fn(ctx, args)
	} else if ret.Get(0) != nil {
		summary = ret.Get(0).(m.Summary)
	}

	return summary, ret.Error(1)
}

// View provides a mock function with given fields: ctx, args.
func (_m *MockWorkflow) View(ctx context.Context, args domain.ViewArgs) error {
	ret := _m.Called(ctx, args)

	if fn, ok := ret.Get(0).(func(context.Context, domain.ViewArgs) error); ok {
		return fn(ctx, args)
	}

	return ret.Error(0)
}

// NewMockWorkflow creates a new instance of MockWorkflow. It also registers
// a cleanup function to assert the mock's expectations.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	mockWorkflow := &MockWorkflow{}
	mockWorkflow.Test(t)

	t.Cleanup(func() { mockWorkflow.AssertExpectations(t) })

	return mockWorkflow
}
