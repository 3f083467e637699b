package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blackridder22/AutoGPT/internal/model"
)

func TestSuggest(t *testing.T) {
	set := model.WebhookSet{Webhooks: []model.Webhook{
		{ID: "1", Name: "Prod Agent", URL: "https://prod.example.com"},
		{ID: "2", Name: "Staging", URL: "https://staging.example.com"},
		{ID: "3", Name: "prod backup", URL: "https://backup.example.com"},
	}}

	t.Run("no sigil no suggestions", func(t *testing.T) {
		assert.Nil(t, Suggest(set, "prod"))
		assert.Nil(t, Suggest(set, ""))
	})

	t.Run("bare slash lists everything", func(t *testing.T) {
		assert.Len(t, Suggest(set, "/"), 3)
	})

	t.Run("case-insensitive substring in registry order", func(t *testing.T) {
		got := Suggest(set, "/PROD")
		assert.Equal(t, []string{"1", "3"}, []string{got[0].ID, got[1].ID})
	})

	t.Run("substring matches mid-name", func(t *testing.T) {
		got := Suggest(set, "/agent")
		assert.Len(t, got, 1)
		assert.Equal(t, "1", got[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, Suggest(set, "/nothing"))
	})
}
