// Package mediasource resolves media-source:// identifiers into URLs that a
// handling entity can fetch. Identifiers have the form
//
//	media-source://<domain>[/<identifier>]
//
// and are dispatched by domain to a registered Source.
package mediasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"aitask/internal/metrics"

	"go.uber.org/zap"
)

// URIScheme prefixes every media source identifier.
const URIScheme = "media-source://"

var (
	// ErrUnknownMediaSource is returned for identifiers that are not
	// media-source URIs or whose domain has no registered source.
	ErrUnknownMediaSource = errors.New("unknown media source")

	// ErrMediaNotFound is returned when a source has no such media.
	ErrMediaNotFound = errors.New("media not found")
)

// PlayMedia is a resolved, fetchable media location.
type PlayMedia struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Item is a parsed media source identifier.
type Item struct {
	Domain     string
	Identifier string
}

// String returns the media-source URI for the item.
func (i Item) String() string {
	if i.Identifier == "" {
		return URIScheme + i.Domain
	}
	return URIScheme + i.Domain + "/" + i.Identifier
}

// ParseID splits a media-source URI into domain and identifier.
func ParseID(mediaContentID string) (Item, error) {
	rest, ok := strings.CutPrefix(mediaContentID, URIScheme)
	if !ok {
		return Item{}, fmt.Errorf("%q is not a media source id: %w", mediaContentID, ErrUnknownMediaSource)
	}

	domain, identifier, _ := strings.Cut(rest, "/")
	if domain == "" {
		return Item{}, fmt.Errorf("%q has no media source domain: %w", mediaContentID, ErrUnknownMediaSource)
	}
	return Item{Domain: domain, Identifier: identifier}, nil
}

// Resolver turns a media content id into a PlayMedia.
type Resolver interface {
	ResolveMedia(ctx context.Context, mediaContentID string) (PlayMedia, error)
}

// Source resolves items of one domain.
type Source interface {
	Resolve(ctx context.Context, item Item) (PlayMedia, error)
}

// Router dispatches resolution to the source registered for an item's domain.
type Router struct {
	mu       sync.RWMutex
	sources  map[string]Source
	fallback Source
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewRouter creates an empty router. m may be nil.
func NewRouter(logger *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{
		sources: make(map[string]Source),
		logger:  logger.Named("mediasource"),
		metrics: m,
	}
}

// Register adds a source for domain.
func (r *Router) Register(domain string, source Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if domain == "" {
		return fmt.Errorf("media source domain cannot be empty")
	}
	if _, exists := r.sources[domain]; exists {
		return fmt.Errorf("media source %q already registered", domain)
	}
	r.sources[domain] = source
	r.logger.Info("Media source registered", zap.String("domain", domain))
	return nil
}

// SetFallback sets the source used for domains without a registration.
func (r *Router) SetFallback(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = source
}

// Domains returns the registered domains.
func (r *Router) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.sources))
	for d := range r.sources {
		domains = append(domains, d)
	}
	return domains
}

// ResolveMedia implements Resolver.
func (r *Router) ResolveMedia(ctx context.Context, mediaContentID string) (PlayMedia, error) {
	item, err := ParseID(mediaContentID)
	if err != nil {
		return PlayMedia{}, err
	}

	r.mu.RLock()
	source, ok := r.sources[item.Domain]
	if !ok {
		source = r.fallback
	}
	r.mu.RUnlock()

	if source == nil {
		err := fmt.Errorf("no media source for domain %q: %w", item.Domain, ErrUnknownMediaSource)
		r.metrics.ObserveResolution(item.Domain, err)
		return PlayMedia{}, err
	}

	media, err := source.Resolve(ctx, item)
	r.metrics.ObserveResolution(item.Domain, err)
	if err != nil {
		r.logger.Warn("Failed to resolve media",
			zap.String("media_content_id", mediaContentID),
			zap.Error(err))
		return PlayMedia{}, fmt.Errorf("resolve %s: %w", mediaContentID, err)
	}

	r.logger.Debug("Resolved media",
		zap.String("media_content_id", mediaContentID),
		zap.String("url", media.URL),
		zap.String("mime_type", media.MimeType))
	return media, nil
}
