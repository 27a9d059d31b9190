package mediasource

import (
	"context"

	"aitask/internal/ha"
)

// HomeAssistantSource forwards resolution to a Home Assistant instance over
// its websocket API. It is normally installed as the router fallback so
// camera, tts and other host-provided sources keep working.
type HomeAssistantSource struct {
	client ha.HAClient
}

// NewHomeAssistantSource creates a source backed by client.
func NewHomeAssistantSource(client ha.HAClient) *HomeAssistantSource {
	return &HomeAssistantSource{client: client}
}

// Resolve implements Source.
func (s *HomeAssistantSource) Resolve(ctx context.Context, item Item) (PlayMedia, error) {
	media, err := s.client.ResolveMedia(ctx, item.String())
	if err != nil {
		return PlayMedia{}, err
	}
	return PlayMedia{URL: media.URL, MimeType: media.MimeType}, nil
}
