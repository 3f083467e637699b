package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/conversation"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

const (
	keyAppSettings     = "appSettings"
	keyStorageSettings = "storageSettings"
)

// SettingsHandler reads and writes the settings document. Changing the
// storage configuration swaps the conversation backend on the live session.
type SettingsHandler struct {
	kv      storage.KV
	session *session.Session
	log     *logger.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(kv storage.KV, sess *session.Session, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		kv:      kv,
		session: sess,
		log:     log.WithComponent("handler.settings"),
	}
}

// appSettings is the persisted shape of the non-storage settings.
type appSettings struct {
	UserName string       `json:"user_name,omitempty"`
	Theme    *model.Theme `json:"theme,omitempty"`
}

func (h *SettingsHandler) loadSettings(r *http.Request) (appSettings, model.StorageSettings, error) {
	var app appSettings
	if _, err := storage.GetJSON(r.Context(), h.kv, keyAppSettings, &app); err != nil {
		return app, model.StorageSettings{}, err
	}
	var ss model.StorageSettings
	if _, err := storage.GetJSON(r.Context(), h.kv, keyStorageSettings, &ss); err != nil {
		return app, ss, err
	}
	return app, ss, nil
}

// Get handles GET /api/v1/settings. The Supabase key is reported as present
// or absent, never echoed.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, ss, err := h.loadSettings(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.Settings{
		UserName:       app.UserName,
		Theme:          app.Theme,
		StorageMode:    h.session.Mode(),
		SupabaseURL:    ss.SupabaseURL,
		SupabaseKeySet: ss.SupabaseKey != "",
	})
}

// Update handles PUT /api/v1/settings. A storage configuration change builds
// the new backend first and only swaps the session once it is usable; a bad
// configuration leaves the current backend in place.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.Settings
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, current, err := h.loadSettings(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	next := model.StorageSettings{
		Mode:        model.ParseStorageMode(string(req.StorageMode)),
		SupabaseURL: req.SupabaseURL,
		SupabaseKey: req.SupabaseKey,
	}
	// An omitted key keeps the stored one; there is no way to read it back.
	if next.SupabaseKey == "" {
		next.SupabaseKey = current.SupabaseKey
	}

	if next != current {
		store, err := conversation.NewStore(r.Context(), next, h.kv, h.log)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.session.SwitchStore(r.Context(), store); err != nil {
			writeDomainError(w, err)
			return
		}
		h.log.Info("storage backend switched", zap.String("mode", string(next.Mode)))
	}

	app := appSettings{UserName: req.UserName, Theme: req.Theme}
	if err := h.kv.Set(r.Context(), map[string]any{
		keyAppSettings:     app,
		keyStorageSettings: next,
	}); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.Settings{
		UserName:       app.UserName,
		Theme:          app.Theme,
		StorageMode:    h.session.Mode(),
		SupabaseURL:    next.SupabaseURL,
		SupabaseKeySet: next.SupabaseKey != "",
	})
}
