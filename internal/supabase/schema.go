package supabase

import (
	"context"
	"net/http"
)

const conversationsDDL = `
CREATE TABLE IF NOT EXISTS public.conversations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
    model TEXT
);`

const messagesDDL = `
CREATE TABLE IF NOT EXISTS public.messages (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    conversation_id UUID REFERENCES public.conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
    has_file BOOLEAN DEFAULT false
);`

const fileDataDDL = `
CREATE TABLE IF NOT EXISTS public.file_data (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    message_id UUID REFERENCES public.messages(id) ON DELETE CASCADE,
    conversation_id UUID REFERENCES public.conversations(id) ON DELETE CASCADE,
    file_name TEXT NOT NULL,
    file_type TEXT NOT NULL,
    file_size INTEGER,
    file_data TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);`

type tableInfo struct {
	TableName string `json:"table_name"`
}

// InitializeSchema provisions the conversation, message and file tables if
// they are absent. It is idempotent: existence is probed first and only
// missing tables are created, so it is safe to run on every client init.
func (c *Client) InitializeSchema(ctx context.Context) error {
	var tables []tableInfo
	err := c.do(ctx, http.MethodGet,
		"rest/v1/information_schema/tables?select=table_name&table_schema=eq.public",
		nil, &tables, nil)
	if err != nil {
		return err
	}

	existing := map[string]bool{}
	for _, t := range tables {
		existing[t.TableName] = true
	}

	for table, ddl := range map[string]string{
		"conversations": conversationsDDL,
		"messages":      messagesDDL,
		"file_data":     fileDataDDL,
	} {
		if existing[table] {
			continue
		}
		if err := c.execSQL(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) execSQL(ctx context.Context, query string) error {
	return c.do(ctx, http.MethodPost, "rest/v1/rpc/execute_sql",
		map[string]string{"query": query}, nil, nil)
}

// Ping probes the conversations table with a zero-row select. Used by the
// readiness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "rest/v1/conversations?select=id&limit=1", nil, nil, nil)
}
