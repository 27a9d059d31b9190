package platform

import (
	"net/http"

	"aitask/pkg/ha"

	"go.uber.org/zap"
)

// Context provides dependencies to platform factories.
type Context struct {
	// Logger is a structured logger. Factories should derive a named
	// logger per entity.
	Logger *zap.Logger

	// HTTPClient is used by entities that talk to remote model servers or
	// need to download attachment content.
	HTTPClient *http.Client

	// Getenv looks up environment configuration such as API keys.
	Getenv func(string) string

	// HomeAssistant is the connected Home Assistant instance, or nil when
	// none is configured.
	HomeAssistant ha.Client

	// LocalMediaDomains are the media-source domains resolved by this
	// process rather than by Home Assistant.
	LocalMediaDomains []string
}

// NewContext creates a platform context with all required dependencies.
func NewContext(logger *zap.Logger, httpClient *http.Client, getenv func(string) string) *Context {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Context{
		Logger:     logger,
		HTTPClient: httpClient,
		Getenv:     getenv,
	}
}
