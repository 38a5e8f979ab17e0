package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/playground-engine/jobsystem/internal/report"
)

// MockReportRepository is a mock implementation of report.Repository.
type MockReportRepository struct {
	mock.Mock
}

// Save mocks the Save method.
func (m *MockReportRepository) Save(ctx context.Context, run *report.BenchRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// Latest mocks the Latest method.
func (m *MockReportRepository) Latest(ctx context.Context, limit int) ([]report.BenchRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]report.BenchRun), args.Error(1)
}

// BySession mocks the BySession method.
func (m *MockReportRepository) BySession(ctx context.Context, sessionID string) (*report.BenchRun, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.BenchRun), args.Error(1)
}

// Summary mocks the Summary method.
func (m *MockReportRepository) Summary(ctx context.Context) (*report.RunSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.RunSummary), args.Error(1)
}

// ExpectSave sets up an expectation for Save of any run.
func (m *MockReportRepository) ExpectSave(err error) *mock.Call {
	return m.On("Save", mock.Anything, mock.AnythingOfType("*report.BenchRun")).Return(err)
}
