// Package supabase implements the remote conversation backend: a PostgREST
// style table store addressed as rest/v1/<table>, authenticated with an API
// key sent both as apikey and bearer token.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/pkg/logger"
)

// APIError is a non-2xx response from the table store.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("supabase: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("supabase: %d - %s", e.Status, body)
}

// Client talks to one Supabase project.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	log     *logger.Logger
}

// New validates the project URL and returns a client.
func New(baseURL, key string, log *logger.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("supabase: invalid project URL %q", baseURL)
	}
	if key == "" {
		return nil, errors.New("supabase: API key is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.WithComponent("supabase"),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("supabase: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("supabase: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}

// returning asks PostgREST to echo the affected rows back.
var returning = map[string]string{"Prefer": "return=representation"}

type conversationRow struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Model     *string   `json:"model,omitempty"`
}

type messageRow struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	HasFile        bool      `json:"has_file"`
}

type fileRow struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	FileName       string `json:"file_name"`
	FileType       string `json:"file_type"`
	FileSize       int    `json:"file_size"`
	FileData       string `json:"file_data"`
}

// CreateConversation inserts a conversation and returns the server-assigned
// record.
func (c *Client) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	var rows []conversationRow
	err := c.do(ctx, http.MethodPost, "rest/v1/conversations", conversationRow{Title: title}, &rows, returning)
	if err != nil {
		return model.Conversation{}, err
	}
	if len(rows) == 0 {
		return model.Conversation{}, errors.New("supabase: insert returned no conversation row")
	}
	row := rows[0]
	return model.Conversation{
		ID:        row.ID,
		Title:     row.Title,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		Model:     row.Model,
	}, nil
}

// ListConversations returns summaries ordered by updated_at descending.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]model.ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []conversationRow
	path := fmt.Sprintf("rest/v1/conversations?select=*&order=updated_at.desc&limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &rows, nil); err != nil {
		return nil, err
	}
	out := make([]model.ConversationSummary, len(rows))
	for i, row := range rows {
		out[i] = model.ConversationSummary{ID: row.ID, Title: row.Title, UpdatedAt: row.UpdatedAt}
	}
	return out, nil
}

// DeleteConversation removes the conversation; messages and file rows cascade
// through their foreign keys.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "rest/v1/conversations?id=eq."+url.QueryEscape(id), nil, nil, nil)
}

// TouchConversation bumps updated_at.
func (c *Client) TouchConversation(ctx context.Context, id string) error {
	body := map[string]string{"updated_at": time.Now().UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPatch, "rest/v1/conversations?id=eq."+url.QueryEscape(id), body, nil, nil)
}

// AddMessage appends a message row and, when a file payload is present,
// stores it in the file_data side table keyed by the message. A failed file
// row insert leaves the message row in place; has_file is reset best-effort
// so readers do not chase a file that never landed.
func (c *Client) AddMessage(ctx context.Context, conversationID string, role model.Role, content, fileData, fileName string) error {
	hasFile := fileData != "" && fileName != ""

	var rows []messageRow
	err := c.do(ctx, http.MethodPost, "rest/v1/messages", messageRow{
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		HasFile:        hasFile,
	}, &rows, returning)
	if err != nil {
		return err
	}

	if hasFile && len(rows) > 0 {
		messageID := rows[0].ID
		fileErr := c.do(ctx, http.MethodPost, "rest/v1/file_data", fileRow{
			MessageID:      messageID,
			ConversationID: conversationID,
			FileName:       fileName,
			FileType:       dataURIType(fileData),
			FileSize:       len(fileData),
			FileData:       fileData,
		}, nil, returning)
		if fileErr != nil {
			c.log.Warn("file row insert failed, keeping message fileless",
				zap.String("message_id", messageID), zap.Error(fileErr))
			clearErr := c.do(ctx, http.MethodPatch, "rest/v1/messages?id=eq."+url.QueryEscape(messageID),
				map[string]bool{"has_file": false}, nil, nil)
			if clearErr != nil {
				c.log.Warn("could not clear has_file flag", zap.String("message_id", messageID), zap.Error(clearErr))
			}
		}
	}

	if err := c.TouchConversation(ctx, conversationID); err != nil {
		c.log.Warn("could not bump conversation updated_at", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return nil
}

// GetMessages returns the ordered message list, joining file payloads back
// onto the messages that carry them. An unknown conversation yields an empty
// list.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var rows []messageRow
	path := "rest/v1/messages?conversation_id=eq." + url.QueryEscape(conversationID) + "&order=created_at.asc&select=*"
	if err := c.do(ctx, http.MethodGet, path, nil, &rows, nil); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var withFiles []string
	for _, row := range rows {
		if row.HasFile {
			withFiles = append(withFiles, row.ID)
		}
	}

	files := map[string]fileRow{}
	if len(withFiles) > 0 {
		var fileRows []fileRow
		path := "rest/v1/file_data?message_id=in.(" + strings.Join(withFiles, ",") + ")&select=*"
		if err := c.do(ctx, http.MethodGet, path, nil, &fileRows, nil); err != nil {
			c.log.Warn("could not load file payloads", zap.Error(err))
		} else {
			for _, f := range fileRows {
				files[f.MessageID] = f
			}
		}
	}

	out := make([]model.Message, len(rows))
	for i, row := range rows {
		msg := model.Message{
			ID:        row.ID,
			Role:      model.Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
		if f, ok := files[row.ID]; ok {
			data, name := f.FileData, f.FileName
			msg.FileData = &data
			msg.FileName = &name
		}
		out[i] = msg
	}
	return out, nil
}

// dataURIType extracts the MIME type from a data URI, e.g.
// "data:application/pdf;base64,..." -> "application/pdf".
func dataURIType(dataURI string) string {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return "application/octet-stream"
	}
	if i := strings.IndexAny(rest, ";,"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "application/octet-stream"
	}
	return rest
}
