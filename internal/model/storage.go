package model

// StorageMode selects the conversation persistence backend.
type StorageMode string

const (
	StorageModeNone   StorageMode = "none"
	StorageModeLocal  StorageMode = "local"
	StorageModeRemote StorageMode = "remote"
)

// ParseStorageMode normalizes a persisted or user-supplied mode string.
// "supabase" is accepted as a legacy alias for remote. Unknown values fall
// back to none so a corrupt setting never breaks startup.
func ParseStorageMode(s string) StorageMode {
	switch StorageMode(s) {
	case StorageModeLocal:
		return StorageModeLocal
	case StorageModeRemote:
		return StorageModeRemote
	case StorageMode("supabase"):
		return StorageModeRemote
	default:
		return StorageModeNone
	}
}

// StorageSettings is the persisted storage configuration.
type StorageSettings struct {
	Mode        StorageMode `json:"type"`
	SupabaseURL string      `json:"supabaseUrl,omitempty"`
	SupabaseKey string      `json:"supabaseKey,omitempty"`
}

// Theme is the persisted display preference.
type Theme struct {
	Wallpaper   string `json:"wallpaper,omitempty"`
	AccentColor string `json:"accentColor,omitempty"`
}

// Settings is the user-facing settings document.
type Settings struct {
	UserName    string      `json:"user_name,omitempty"`
	Theme       *Theme      `json:"theme,omitempty"`
	StorageMode StorageMode `json:"storage_mode"`
	SupabaseURL string      `json:"supabase_url,omitempty"`
	// SupabaseKey is accepted on writes but never echoed back.
	SupabaseKey    string `json:"supabase_key,omitempty"`
	SupabaseKeySet bool   `json:"supabase_key_set,omitempty"`
}
