// Package model defines data structures for the panel backend.
package model

// Webhook is a named, user-configured HTTP endpoint that receives chat turns.
type Webhook struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// WebhookSet is the durable registry state. DefaultWebhookID is empty when no
// default is set; when non-empty it must reference an entry in Webhooks.
type WebhookSet struct {
	Webhooks         []Webhook `json:"webhooks"`
	DefaultWebhookID string    `json:"defaultWebhookId"`
}

// Clone returns a deep copy, so staged mutations never alias committed state.
func (s WebhookSet) Clone() WebhookSet {
	out := WebhookSet{
		Webhooks:         make([]Webhook, len(s.Webhooks)),
		DefaultWebhookID: s.DefaultWebhookID,
	}
	copy(out.Webhooks, s.Webhooks)
	return out
}

// Find returns the webhook with the given id, if present.
func (s WebhookSet) Find(id string) (Webhook, bool) {
	for _, wh := range s.Webhooks {
		if wh.ID == id {
			return wh, true
		}
	}
	return Webhook{}, false
}

// CreateWebhookRequest is the request to register a new webhook.
type CreateWebhookRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SetDefaultWebhookRequest selects the registry default.
type SetDefaultWebhookRequest struct {
	ID string `json:"id"`
}

// SetOverrideRequest selects a session-scoped webhook override.
type SetOverrideRequest struct {
	ID string `json:"id"`
}
