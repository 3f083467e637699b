package registry

import (
	"strings"

	"github.com/blackridder22/AutoGPT/internal/model"
)

// Suggest returns slash-command matches for the composed text: when the text
// starts with "/", the remainder is matched case-insensitively as a substring
// against each webhook name. Results keep registry order; there is no fuzzy
// matching or ranking. Text without the sigil yields nothing.
func Suggest(set model.WebhookSet, text string) []model.Webhook {
	query, ok := strings.CutPrefix(text, "/")
	if !ok {
		return nil
	}
	query = strings.ToLower(query)

	var matches []model.Webhook
	for _, wh := range set.Webhooks {
		if strings.Contains(strings.ToLower(wh.Name), query) {
			matches = append(matches, wh)
		}
	}
	return matches
}
