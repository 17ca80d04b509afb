package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/search"
	"github.com/hyperjump/semsearch/internal/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "tools.db"), storage.WithDimensions(16))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	svc := embedding.NewService(embedding.NewMockProvider(16))
	orch := search.NewOrchestrator(store, svc)
	return NewDocumentTools(orch, SearchDefaults{Threshold: 0.7, MaxResults: 10})
}

func TestRegistry_Descriptors(t *testing.T) {
	reg := newTestRegistry(t)
	want := []string{"createDocument", "deleteDocument", "getDatabaseInfo", "getDocument", "getDocuments", "semanticSearch", "updateDocument"}
	got := reg.Descriptors()
	if len(got) != len(want) {
		t.Fatalf("got %d descriptors, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Name != want[i] {
			t.Errorf("descriptor %d = %s, want %s", i, d.Name, want[i])
		}
		if d.InputSchema["type"] != "object" {
			t.Errorf("%s schema type = %v", d.Name, d.InputSchema["type"])
		}
	}
}

func TestRegistry_DocumentLifecycle(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	out, err := reg.Invoke(ctx, "createDocument", json.RawMessage(`{"title":"Go","content":"Go is a language","metadata":{"lang":"en"}}`))
	if err != nil {
		t.Fatal(err)
	}
	doc := out.(*models.Document)
	if doc.ID == 0 || doc.Metadata["lang"] != "en" {
		t.Fatalf("created = %+v", doc)
	}

	query, _ := json.Marshal(map[string]any{
		"query":               models.EmbeddingText("Go", "Go is a language"),
		"similarityThreshold": 0.9,
	})
	out, err = reg.Invoke(ctx, "semanticSearch", query)
	if err != nil {
		t.Fatal(err)
	}
	resp := out.(*models.SearchResponse)
	if len(resp.Results) != 1 || resp.Meta.MaxResults != 10 {
		t.Errorf("search = %+v", resp)
	}

	out, err = reg.Invoke(ctx, "getDocuments", nil)
	if err != nil {
		t.Fatal(err)
	}
	if page := out.(*models.Page); page.Total != 1 || page.PageSize != models.DefaultPageSize {
		t.Errorf("page = %+v", page)
	}

	if _, err := reg.Invoke(ctx, "updateDocument", json.RawMessage(`{"id":1}`)); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("update without fields: %v", err)
	}
	out, err = reg.Invoke(ctx, "updateDocument", json.RawMessage(`{"id":1,"title":"Golang"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out.(*models.Document).Title != "Golang" {
		t.Errorf("updated = %+v", out)
	}

	if _, err := reg.Invoke(ctx, "deleteDocument", json.RawMessage(`{"id":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Invoke(ctx, "getDocument", json.RawMessage(`{"id":1}`)); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("get deleted: %v", err)
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		args string
		kind apperr.Kind
	}{
		{"unknown tool", "nope", `{}`, apperr.KindNotFound},
		{"malformed json", "getDocument", `{"id":"x"}`, apperr.KindValidation},
		{"missing title", "createDocument", `{"content":"c"}`, apperr.KindValidation},
		{"empty query", "semanticSearch", `{}`, apperr.KindValidation},
		{"page size too large", "getDocuments", `{"pageSize":500}`, apperr.KindValidation},
		{"zero id", "deleteDocument", `{}`, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Invoke(ctx, tt.tool, json.RawMessage(tt.args))
			if !apperr.Is(err, tt.kind) {
				t.Errorf("got %v (kind %v), want kind %v", err, apperr.KindOf(err), tt.kind)
			}
		})
	}
}

func TestMCPServer_CallTool(t *testing.T) {
	reg := newTestRegistry(t)
	server := NewMCPServer(reg, "semsearch-test", "test", zap.NewNop())
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	list, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Tools) != 7 {
		t.Errorf("listed %d tools, want 7", len(list.Tools))
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "createDocument",
		Arguments: map[string]any{"title": "MCP", "content": "Model context protocol"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("createDocument failed: %+v", res.Content)
	}
	var created models.Document
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 || created.Title != "MCP" {
		t.Errorf("created = %+v", created)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "getDocument",
		Arguments: map[string]any{"id": 999},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected error result")
	}
	text := res.Content[0].(*mcp.TextContent).Text
	if !strings.HasPrefix(text, "not_found: ") {
		t.Errorf("error text = %q", text)
	}
}
