package queue

import (
	"encoding/json"
	"sync"
	"time"
)

// Validator inspects a decoded payload and reports whether it is
// acceptable for its handler.
type Validator func(payload json.RawMessage) (valid bool, message string)

// ValidationSource identifies which mechanism produced a ValidationResult.
type ValidationSource string

const (
	ValidationSourceValidator ValidationSource = "validator"
	ValidationSourceAuto      ValidationSource = "auto"
	ValidationSourceNone      ValidationSource = "none"
)

// ValidationResult is the outcome of Registry.Validate.
type ValidationResult struct {
	Valid   bool
	Message string
	Source  ValidationSource
}

// HandlerOption configures policy overrides for a registered handler.
type HandlerOption func(*registryEntry)

// WithHandlerMaxRetries overrides the engine-level default MaxRetries for
// tasks dispatched to this handler.
func WithHandlerMaxRetries(n int) HandlerOption {
	return func(e *registryEntry) { e.maxRetries = &n }
}

// WithHandlerMaxProcessingTime overrides the engine-level default
// MaxProcessingTime for tasks dispatched to this handler.
func WithHandlerMaxProcessingTime(d time.Duration) HandlerOption {
	return func(e *registryEntry) { e.maxProcessingTime = &d }
}

// WithHandlerValidator attaches a payload validator to this handler.
func WithHandlerValidator(v Validator) HandlerOption {
	return func(e *registryEntry) { e.validator = v }
}

type registryEntry struct {
	handler           Handler
	maxRetries        *int
	maxProcessingTime *time.Duration
	validator         Validator
}

// Registry is a process-local mapping from handler name to callable plus
// per-handler policy overrides. It is never consulted by non-owning
// processes — each engine instance owns its own Registry.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*registryEntry
}

// NewRegistry creates an empty Registry, safe to use before the first
// enqueue.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*registryEntry)}
}

// Register binds handler to its name, applying any policy overrides.
// Registration is idempotent on name collision: the last call wins and
// fully replaces the previous entry, so no duplicate dispatch can occur.
func (r *Registry) Register(handler Handler, opts ...HandlerOption) error {
	if handler == nil {
		return nil
	}

	entry := &registryEntry{handler: handler}
	for _, opt := range opts {
		opt(entry)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.Name()] = entry
	return nil
}

// RegisterStrict behaves like Register but rejects a name collision
// instead of silently replacing the existing entry.
func (r *Registry) RegisterStrict(handler Handler, opts ...HandlerOption) error {
	if handler == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[handler.Name()]; exists {
		return ErrTaskAlreadyRegistered
	}

	entry := &registryEntry{handler: handler}
	for _, opt := range opts {
		opt(entry)
	}
	r.handlers[handler.Name()] = entry
	return nil
}

// Get returns the registered entry for name, if any.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.handlers[name]
	if !ok {
		return nil, false
	}
	return entry.handler, true
}

// Has reports whether name has a registered handler.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// policy resolves the effective (maxRetries, maxProcessingTime) overrides
// registered for name. Either return value may be nil, meaning "no
// handler-level override" — the caller falls back to the next level in
// the resolution cascade.
func (r *Registry) policy(name string) (maxRetries *int, maxProcessingTime *time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.handlers[name]
	if !ok {
		return nil, nil
	}
	return entry.maxRetries, entry.maxProcessingTime
}

// Validate checks payload against name's configured validator (if any),
// falling back to the "auto" heuristic derived from a typed handler's
// payload struct.
func (r *Registry) Validate(name string, payload json.RawMessage) ValidationResult {
	r.mu.RLock()
	entry, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		return ValidationResult{Valid: true, Source: ValidationSourceNone}
	}

	if entry.validator != nil {
		valid, msg := entry.validator(payload)
		return ValidationResult{Valid: valid, Message: msg, Source: ValidationSourceValidator}
	}

	namer, ok := entry.handler.(fieldNamer)
	if !ok {
		return ValidationResult{Valid: true, Source: ValidationSourceNone}
	}
	fields := namer.fieldNames()
	if len(fields) == 0 {
		return ValidationResult{Valid: true, Source: ValidationSourceNone}
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return ValidationResult{Valid: false, Message: "payload is not a JSON object", Source: ValidationSourceAuto}
	}
	for _, f := range fields {
		if _, present := decoded[f]; !present {
			return ValidationResult{Valid: false, Message: "missing expected field: " + f, Source: ValidationSourceAuto}
		}
	}
	return ValidationResult{Valid: true, Source: ValidationSourceAuto}
}
