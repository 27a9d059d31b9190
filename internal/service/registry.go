// Package service dispatches named service calls ("<domain>.<service>") to
// registered handlers, in the manner of a home automation service bus.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"aitask/internal/metrics"

	"go.uber.org/zap"
)

// SupportsResponse declares whether a service returns response data.
type SupportsResponse string

const (
	// ResponseNone services never return data.
	ResponseNone SupportsResponse = "none"

	// ResponseOptional services return data only when asked.
	ResponseOptional SupportsResponse = "optional"

	// ResponseOnly services must be called with a response requested.
	ResponseOnly SupportsResponse = "only"
)

var (
	// ErrServiceNotFound is returned when no handler is registered.
	ErrServiceNotFound = errors.New("service not found")

	// ErrResponseMode is returned when returnResponse does not match the
	// service's SupportsResponse.
	ErrResponseMode = errors.New("invalid response mode")
)

// Call is a single service invocation.
type Call struct {
	Domain         string
	Service        string
	Data           map[string]any
	ReturnResponse bool
}

// Handler handles a call. The returned map is the response data and is
// ignored unless the caller asked for it.
type Handler func(ctx context.Context, call Call) (map[string]any, error)

// Info describes one registered service.
type Info struct {
	Domain           string           `json:"domain"`
	Service          string           `json:"service"`
	SupportsResponse SupportsResponse `json:"supports_response"`
	handler          Handler
}

// Registry holds services by domain and name.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Info
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(logger *zap.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		services: make(map[string]Info),
		logger:   logger.Named("service"),
		metrics:  m,
	}
}

func serviceKey(domain, service string) string {
	return domain + "." + service
}

// Register adds a service. Registering the same name again replaces it.
func (r *Registry) Register(domain, service string, handler Handler, supports SupportsResponse) error {
	if domain == "" || service == "" {
		return fmt.Errorf("service domain and name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("service %s.%s: handler cannot be nil", domain, service)
	}
	if supports == "" {
		supports = ResponseNone
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[serviceKey(domain, service)] = Info{
		Domain:           domain,
		Service:          service,
		SupportsResponse: supports,
		handler:          handler,
	}
	r.logger.Debug("Service registered",
		zap.String("domain", domain),
		zap.String("service", service),
		zap.String("supports_response", string(supports)))
	return nil
}

// Remove unregisters a service.
func (r *Registry) Remove(domain, service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, serviceKey(domain, service))
}

// Has reports whether a service is registered.
func (r *Registry) Has(domain, service string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[serviceKey(domain, service)]
	return ok
}

// List returns all services sorted by domain then service.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Info, 0, len(r.services))
	for _, info := range r.services {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Domain != list[j].Domain {
			return list[i].Domain < list[j].Domain
		}
		return list[i].Service < list[j].Service
	})
	return list
}

// Call invokes a service and waits for it to finish. When returnResponse is
// false the result is always nil.
func (r *Registry) Call(ctx context.Context, domain, service string, data map[string]any, returnResponse bool) (map[string]any, error) {
	r.mu.RLock()
	info, ok := r.services[serviceKey(domain, service)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", domain, service, ErrServiceNotFound)
	}

	switch {
	case returnResponse && info.SupportsResponse == ResponseNone:
		return nil, fmt.Errorf("%s.%s does not return responses: %w", domain, service, ErrResponseMode)
	case !returnResponse && info.SupportsResponse == ResponseOnly:
		return nil, fmt.Errorf("%s.%s requires return_response: %w", domain, service, ErrResponseMode)
	}

	if data == nil {
		data = map[string]any{}
	}

	start := time.Now()
	resp, err := info.handler(ctx, Call{
		Domain:         domain,
		Service:        service,
		Data:           data,
		ReturnResponse: returnResponse,
	})
	elapsed := time.Since(start)
	r.metrics.ObserveServiceCall(domain, service, elapsed, err)

	if err != nil {
		r.logger.Warn("Service call failed",
			zap.String("domain", domain),
			zap.String("service", service),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	r.logger.Debug("Service call completed",
		zap.String("domain", domain),
		zap.String("service", service),
		zap.Duration("elapsed", elapsed))

	if !returnResponse {
		return nil, nil
	}
	if resp == nil {
		resp = map[string]any{}
	}
	return resp, nil
}
