package ha

import (
	"context"

	"aitask/internal/ha"
)

// ClientAdapter wraps internal ha.HAClient to implement pkg ha.Client
type ClientAdapter struct {
	internal ha.HAClient
}

// WrapClient wraps an internal ha.HAClient to implement the pkg ha.Client interface
func WrapClient(c ha.HAClient) Client {
	return &ClientAdapter{internal: c}
}

// UnwrapClient returns the underlying internal client if available
func UnwrapClient(c Client) ha.HAClient {
	if adapter, ok := c.(*ClientAdapter); ok {
		return adapter.internal
	}
	return nil
}

func (a *ClientAdapter) IsConnected() bool {
	return a.internal.IsConnected()
}

func (a *ClientAdapter) CallService(ctx context.Context, domain, service string, data map[string]interface{}, returnResponse bool) (map[string]interface{}, error) {
	return a.internal.CallService(ctx, domain, service, data, returnResponse)
}

func (a *ClientAdapter) ResolveMedia(ctx context.Context, mediaContentID string) (*ResolvedMedia, error) {
	media, err := a.internal.ResolveMedia(ctx, mediaContentID)
	if err != nil {
		return nil, err
	}
	return &ResolvedMedia{URL: media.URL, MimeType: media.MimeType}, nil
}
