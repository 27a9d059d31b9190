package aitask

import (
	"context"

	"aitask/internal/service"
)

// RegisterServices adds ai_task.generate_data and ai_task.set_preferences
// to the service registry.
func RegisterServices(registry *service.Registry, dispatcher *Dispatcher, prefs *Preferences) error {
	if err := registry.Register(Domain, ServiceGenerateData, func(ctx context.Context, call service.Call) (map[string]any, error) {
		req, err := DecodeGenerateDataRequest(call.Data)
		if err != nil {
			return nil, err
		}
		result, err := dispatcher.GenerateData(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"conversation_id": result.ConversationID,
			"data":            result.Data,
		}, nil
	}, service.ResponseOnly); err != nil {
		return err
	}

	return registry.Register(Domain, ServiceSetPreferences, func(ctx context.Context, call service.Call) (map[string]any, error) {
		updates, err := DecodePreferenceUpdates(call.Data)
		if err != nil {
			return nil, err
		}
		return nil, prefs.SetPreferences(updates)
	}, service.ResponseNone)
}
