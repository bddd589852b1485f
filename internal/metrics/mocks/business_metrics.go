// Package mocks provides testify mocks for the metrics package.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// BusinessMetrics is a testify mock of metrics.BusinessMetrics.
type BusinessMetrics struct {
	mock.Mock
}

// NewBusinessMetrics returns a mock that accepts every call for domain.
func NewBusinessMetrics(domain string) *BusinessMetrics {
	m := &BusinessMetrics{}
	m.On("RecordOperation", mock.Anything, domain, mock.Anything, mock.Anything).Return()
	m.On("RecordDuration", mock.Anything, domain, mock.Anything, mock.Anything, mock.Anything).Return()
	m.On("RecordItems", mock.Anything, domain, mock.Anything, mock.Anything, mock.Anything).Return()
	return m
}

// RecordOperation records the call.
func (m *BusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

// RecordDuration records the call.
func (m *BusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

// RecordItems records the call.
func (m *BusinessMetrics) RecordItems(ctx context.Context, domain, operation, outcome string, count int) {
	m.Called(ctx, domain, operation, outcome, count)
}
