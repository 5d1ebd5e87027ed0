package tools

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/fixflow/types"
)

// DefaultTimeout bounds a tool invocation when the spec declares none.
const DefaultTimeout = 30 * time.Second

// RateLimit configures per-tool call throttling.
type RateLimit struct {
	MaxCalls int
	Window   time.Duration
}

// Registry holds the tool set for one run. Names are unique; registering a
// duplicate is an error.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]*Spec
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		specs:    make(map[string]*Spec),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

// Register adds a tool spec to the registry.
func (r *Registry) Register(spec *Spec) error {
	if spec == nil || spec.Name == "" {
		return types.NewError(types.ErrContractViolation, "tool spec must have a name")
	}
	if spec.Handler == nil {
		return types.NewError(types.ErrContractViolation,
			fmt.Sprintf("tool %s has no handler", spec.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return types.NewError(types.ErrContractViolation,
			fmt.Sprintf("tool %s already registered", spec.Name))
	}

	r.specs[spec.Name] = spec
	r.logger.Info("tool registered",
		zap.String("name", spec.Name),
		zap.Duration("timeout", spec.Timeout))
	return nil
}

// RegisterWithRateLimit adds a tool spec with call throttling.
func (r *Registry) RegisterWithRateLimit(spec *Spec, limit RateLimit) error {
	if limit.MaxCalls <= 0 || limit.Window <= 0 {
		return types.NewError(types.ErrContractViolation,
			fmt.Sprintf("tool %s rate limit needs a positive window and max calls", spec.Name))
	}
	if err := r.Register(spec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	interval := rate.Every(limit.Window / time.Duration(limit.MaxCalls))
	r.limiters[spec.Name] = rate.NewLimiter(interval, limit.MaxCalls)
	return nil
}

// Get returns the spec for a tool name.
func (r *Registry) Get(name string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return spec, nil
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.specs[name]
	return ok
}

// List returns the wire schemas of all registered tools.
func (r *Registry) List() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.ToolSchema, 0, len(r.specs))
	for _, spec := range r.specs {
		schemas = append(schemas, spec.Schema())
	}
	return schemas
}

// allow checks the rate limiter for a tool, if one is configured.
func (r *Registry) allow(name string) error {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	if !limiter.Allow() {
		return fmt.Errorf("rate limit exceeded for tool %s", name)
	}
	return nil
}
