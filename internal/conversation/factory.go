package conversation

import (
	"context"

	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/internal/supabase"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

// NewStore builds the backend for the given settings. Remote mode provisions
// the schema best-effort: a failed init is logged and the store returned
// anyway, since every call on it fails recoverably and the user can fix the
// credentials from settings.
func NewStore(ctx context.Context, settings model.StorageSettings, kv storage.KV, log *logger.Logger) (Store, error) {
	switch settings.Mode {
	case model.StorageModeLocal:
		return NewLocal(kv, log), nil

	case model.StorageModeRemote:
		client, err := supabase.New(settings.SupabaseURL, settings.SupabaseKey, log)
		if err != nil {
			return nil, err
		}
		if err := client.InitializeSchema(ctx); err != nil {
			log.Warn("supabase schema init failed", zap.Error(err))
		}
		return NewRemote(client, log), nil

	default:
		return NewNone(log), nil
	}
}
