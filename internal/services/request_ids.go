package services

import (
	"context"
	"fmt"
)

// RequestIDGenerator formats allocated request numbers as CR0001, CR0002, ...
// Numbers past 9999 widen (CR10000) rather than wrap.
type RequestIDGenerator struct {
	seq SequenceAllocator
}

// NewRequestIDGenerator creates a generator over seq
func NewRequestIDGenerator(seq SequenceAllocator) *RequestIDGenerator {
	return &RequestIDGenerator{seq: seq}
}

// Next allocates and formats the next request ID
func (g *RequestIDGenerator) Next(ctx context.Context) (string, error) {
	n, err := g.seq.NextRequestNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate request number: %w", err)
	}
	if n <= 0 {
		return "", fmt.Errorf("allocate request number: sequence returned %d", n)
	}
	return FormatRequestID(n), nil
}

// FormatRequestID renders n as CR followed by at least four digits
func FormatRequestID(n int64) string {
	return fmt.Sprintf("CR%04d", n)
}
