package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/velaro/ordersync/internal/domain/integration"
)

// StubWMS is a WMS gateway that answers from a queue of results. Once the
// queue is empty every call succeeds with a generated id.
type StubWMS struct {
	mu      sync.Mutex
	results []integration.SyncResult
	inputs  []integration.WMSOrderInput
}

// NewStubWMS creates a gateway that returns results in order
func NewStubWMS(results ...integration.SyncResult) *StubWMS {
	return &StubWMS{results: results}
}

// CreateOrder records the input and returns the next result
func (s *StubWMS) CreateOrder(_ context.Context, in integration.WMSOrderInput) integration.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if len(s.results) == 0 {
		return integration.SyncSucceeded(fmt.Sprintf("HS-%d", len(s.inputs)))
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next
}

// Calls returns the number of CreateOrder calls
func (s *StubWMS) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

// Inputs returns every input received
func (s *StubWMS) Inputs() []integration.WMSOrderInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]integration.WMSOrderInput(nil), s.inputs...)
}

var _ integration.WMSGateway = (*StubWMS)(nil)
