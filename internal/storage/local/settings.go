package local

import (
	"context"

	"github.com/noah-isme/sms-storage/internal/models"
)

// GetSettings returns the settings document.
func (b *Backend) GetSettings(ctx context.Context) (models.Settings, error) {
	settings := models.Settings{}
	if err := b.getJSON(ctx, models.KeySettings, &settings); err != nil {
		return nil, err
	}
	if settings == nil {
		settings = models.Settings{}
	}
	return settings, nil
}

// UpdateSettings shallow-merges patch into the stored settings and returns the result.
func (b *Backend) UpdateSettings(ctx context.Context, patch models.Settings) (models.Settings, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	settings, err := b.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		settings[k] = v
	}
	if err := b.setJSON(ctx, models.KeySettings, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
