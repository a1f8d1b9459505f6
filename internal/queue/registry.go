package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"asset-workers/internal/common/errors"
)

// Handler executes one job. The returned value is recorded with the
// completed job for inspection.
type Handler func(ctx context.Context, job *Job) (interface{}, error)

// Registration binds a job type to its queue, payload schema, and handler.
type Registration struct {
	JobType string
	Queue   string
	Schema  string // JSON schema source; empty skips validation
	Handler Handler

	// Concurrency is the worker count the handler wants for its queue.
	// The highest value across a queue's job types wins; 0 defers to
	// the orchestrator default.
	Concurrency int
}

// Registry holds every known job type. Enqueue consults it for schema
// validation and the worker pools consult it for dispatch.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	registration Registration
	schema       *gojsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a job type. Registering a duplicate type or a broken
// schema is a programming error and fails loudly.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[reg.JobType]; exists {
		return fmt.Errorf("job type %q already registered", reg.JobType)
	}

	entry := &registryEntry{registration: reg}
	if reg.Schema != "" {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(reg.Schema))
		if err != nil {
			return fmt.Errorf("compile schema for %q: %w", reg.JobType, err)
		}
		entry.schema = compiled
	}

	r.entries[reg.JobType] = entry
	return nil
}

// Lookup returns the registration for a job type.
func (r *Registry) Lookup(jobType string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[jobType]
	if !ok {
		return Registration{}, false
	}
	return entry.registration, true
}

// QueueNames returns the distinct queues the registered job types use.
func (r *Registry) QueueNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var queues []string
	for _, entry := range r.entries {
		q := entry.registration.Queue
		if !seen[q] {
			seen[q] = true
			queues = append(queues, q)
		}
	}
	return queues
}

// QueueConcurrency returns the highest concurrency requested by the
// job types registered on a queue, 0 when none expressed one.
func (r *Registry) QueueConcurrency(queueName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	concurrency := 0
	for _, entry := range r.entries {
		reg := entry.registration
		if reg.Queue == queueName && reg.Concurrency > concurrency {
			concurrency = reg.Concurrency
		}
	}
	return concurrency
}

// ValidatePayload checks a payload against the job type's schema.
func (r *Registry) ValidatePayload(jobType string, payload json.RawMessage) error {
	r.mu.RLock()
	entry, ok := r.entries[jobType]
	r.mu.RUnlock()

	if !ok {
		return errors.NewJobPayloadInvalidError(jobType, "unknown job type")
	}
	if entry.schema == nil {
		return nil
	}

	result, err := entry.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return errors.NewJobPayloadInvalidError(jobType, err.Error())
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return errors.NewJobPayloadInvalidError(jobType, strings.Join(details, "; "))
	}
	return nil
}
