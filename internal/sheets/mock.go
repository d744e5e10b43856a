package sheets

import (
	"context"
	"sync"
)

// MockWriter records exports instead of calling Google.
type MockWriter struct {
	WriteFunc func(ctx context.Context, report *Report) (string, error)
	Reports   []*Report
	mu        sync.Mutex
}

// NewMockWriter creates a MockWriter that returns "mock-spreadsheet".
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write implements ReportWriter.
func (m *MockWriter) Write(ctx context.Context, report *Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reports = append(m.Reports, report)
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report)
	}
	return "mock-spreadsheet", nil
}

// Calls returns the reports written so far.
func (m *MockWriter) Calls() []*Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Report, len(m.Reports))
	copy(out, m.Reports)
	return out
}
