package cloud

import (
	"context"

	"github.com/noah-isme/sms-storage/internal/models"
)

// GetSettings returns the settings/app document.
func (b *Backend) GetSettings(ctx context.Context) (models.Settings, error) {
	doc, err := b.store.Get(ctx, CollectionSettings, DocApp)
	if err != nil {
		if IsNotFound(err) {
			return models.Settings{}, nil
		}
		return nil, classify(err)
	}
	return models.Settings(doc), nil
}

// UpdateSettings shallow-merges patch into settings/app.
func (b *Backend) UpdateSettings(ctx context.Context, patch models.Settings) (models.Settings, error) {
	settings, err := b.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		settings[k] = v
	}
	if err := b.store.Set(ctx, CollectionSettings, DocApp, Document(settings)); err != nil {
		return nil, classify(err)
	}
	return settings, nil
}
