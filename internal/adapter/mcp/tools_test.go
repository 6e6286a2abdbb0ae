package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/lucasmend/askdb/internal/audit"
	"github.com/lucasmend/askdb/internal/core/domain"
	"github.com/lucasmend/askdb/internal/core/port"
	"github.com/lucasmend/askdb/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock SchemaExplorer ---

type mockExplorer struct {
	tables []port.TableInfo
	detail *port.TableDetail
	err    error
}

func (m *mockExplorer) ListTables(_ context.Context) ([]port.TableInfo, error) {
	return m.tables, m.err
}

func (m *mockExplorer) DescribeTable(_ context.Context, _, _ string) (*port.TableDetail, error) {
	return m.detail, m.err
}

// --- mock QueryExecutor ---

type mockExecutor struct {
	result  *domain.ResultSet
	err     error
	lastSQL string // captures the SQL passed to Execute
}

func (m *mockExecutor) Execute(_ context.Context, sql string) (*domain.ResultSet, error) {
	m.lastSQL = sql
	return m.result, m.err
}

// --- mock LLM ---

type mockLLM struct {
	output    string
	healthErr error
}

func (m *mockLLM) Generate(_ context.Context, _ string, _ []port.Message) (string, error) {
	return m.output, nil
}

func (m *mockLLM) Healthy(_ context.Context) error { return m.healthErr }

type noopStore struct{}

func (noopStore) Append(context.Context, string, port.Message) error { return nil }
func (noopStore) History(context.Context, string, int) ([]port.Message, error) {
	return nil, nil
}
func (noopStore) Close() error { return nil }

// --- helpers ---

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	session := server.NewInProcessSession("test", nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func setupServer(explorer *mockExplorer, executor *mockExecutor, llm *mockLLM) *server.MCPServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var querySvc *service.QueryService
	if executor != nil {
		querySvc = service.NewQueryService(domain.NewKeywordValidator(), executor, audit.NoopAuditor{}, logger, nil, nil, nil)
	}

	var chatSvc *service.ChatService
	if llm != nil {
		chatSvc = service.NewChatService(llm, querySvc, explorer, noopStore{}, logger, nil, nil, 0)
	}

	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true))
	RegisterTools(s, querySvc, chatSvc, explorer)
	return s
}

// --- run_sql tests ---

func TestRunSQL_HappyPath(t *testing.T) {
	executor := &mockExecutor{
		result: &domain.ResultSet{
			Columns: []string{"id", "name"},
			Rows:    [][]any{{1, "Azure Interior"}},
		},
	}
	s := setupServer(&mockExplorer{}, executor, nil)

	result := callTool(t, s, "run_sql", map[string]any{"sql": "SELECT id, name FROM res_partner"})
	require.False(t, result.IsError)

	text := toolText(result)
	assert.Contains(t, text, "Found 1 result(s):")
	assert.Contains(t, text, "id | name")
	assert.Contains(t, text, "Azure Interior")
	assert.Equal(t, "SELECT id, name FROM res_partner LIMIT 100", executor.lastSQL)
}

func TestRunSQL_CustomLimit(t *testing.T) {
	executor := &mockExecutor{result: &domain.ResultSet{}}
	s := setupServer(&mockExplorer{}, executor, nil)

	result := callTool(t, s, "run_sql", map[string]any{
		"sql":   "SELECT id FROM res_partner",
		"limit": 5,
	})
	require.False(t, result.IsError)
	assert.Equal(t, "SELECT id FROM res_partner LIMIT 5", executor.lastSQL)
}

func TestRunSQL_MissingSQL(t *testing.T) {
	s := setupServer(&mockExplorer{}, &mockExecutor{}, nil)

	result := callTool(t, s, "run_sql", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "sql is required")
}

func TestRunSQL_ValidationError(t *testing.T) {
	executor := &mockExecutor{}
	s := setupServer(&mockExplorer{}, executor, nil)

	result := callTool(t, s, "run_sql", map[string]any{"sql": "DROP TABLE res_partner"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "forbidden keyword")
	assert.Empty(t, executor.lastSQL, "rejected SQL must never reach the executor")
}

func TestRunSQL_ExecutorError(t *testing.T) {
	executor := &mockExecutor{err: fmt.Errorf("connection timeout")}
	s := setupServer(&mockExplorer{}, executor, nil)

	result := callTool(t, s, "run_sql", map[string]any{"sql": "SELECT 1"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "query failed")
}

func TestRunSQL_NoResults(t *testing.T) {
	executor := &mockExecutor{result: &domain.ResultSet{Columns: []string{"id"}}}
	s := setupServer(&mockExplorer{}, executor, nil)

	result := callTool(t, s, "run_sql", map[string]any{"sql": "SELECT id FROM res_partner"})
	require.False(t, result.IsError)
	assert.Equal(t, "No results found.", toolText(result))
}

// --- ask tests ---

func TestAsk_HappyPath(t *testing.T) {
	executor := &mockExecutor{
		result: &domain.ResultSet{Columns: []string{"count"}, Rows: [][]any{{42}}},
	}
	llm := &mockLLM{output: "Here you go:\n```sql\nSELECT count(*) FROM res_partner\n```"}
	s := setupServer(&mockExplorer{}, executor, llm)

	result := callTool(t, s, "ask", map[string]any{"question": "how many partners are there?"})
	require.False(t, result.IsError)

	text := toolText(result)
	assert.Contains(t, text, "Found 1 result(s):")
	assert.Contains(t, text, "42")
	assert.Equal(t, "SELECT count(*) FROM res_partner LIMIT 100", executor.lastSQL)
}

func TestAsk_MissingQuestion(t *testing.T) {
	s := setupServer(&mockExplorer{}, &mockExecutor{}, &mockLLM{})

	result := callTool(t, s, "ask", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "question is required")
}

func TestAsk_LLMUnavailable(t *testing.T) {
	llm := &mockLLM{healthErr: fmt.Errorf("connection refused")}
	s := setupServer(&mockExplorer{}, &mockExecutor{}, llm)

	result := callTool(t, s, "ask", map[string]any{"question": "anything"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "ask failed")
}

func TestAsk_NotRegisteredWithoutChatService(t *testing.T) {
	s := setupServer(&mockExplorer{}, &mockExecutor{}, nil)

	result := callTool(t, s, "ask", map[string]any{"question": "anything"})
	assert.True(t, result.IsError)
}

// --- list_tables / describe_table tests ---

func TestListTables_HappyPath(t *testing.T) {
	explorer := &mockExplorer{
		tables: []port.TableInfo{
			{Schema: "public", Name: "res_partner", Type: "table", RowEstimate: 100, Comment: "Contacts"},
		},
	}
	s := setupServer(explorer, &mockExecutor{}, nil)

	result := callTool(t, s, "list_tables", nil)
	require.False(t, result.IsError)

	var tables []port.TableInfo
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "res_partner", tables[0].Name)
	assert.Equal(t, "Contacts", tables[0].Comment)
}

func TestListTables_Error(t *testing.T) {
	explorer := &mockExplorer{err: fmt.Errorf("permission denied")}
	s := setupServer(explorer, &mockExecutor{}, nil)

	result := callTool(t, s, "list_tables", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "failed to list tables")
}

func TestDescribeTable_HappyPath(t *testing.T) {
	explorer := &mockExplorer{
		detail: &port.TableDetail{
			Schema: "public",
			Name:   "res_partner",
			Columns: []port.ColumnInfo{
				{Name: "id", DataType: "integer"},
				{Name: "email", DataType: "text", IsNullable: true, Comment: "Primary email"},
			},
		},
	}
	s := setupServer(explorer, &mockExecutor{}, nil)

	result := callTool(t, s, "describe_table", map[string]any{"table_name": "res_partner"})
	require.False(t, result.IsError)

	var detail port.TableDetail
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &detail))
	assert.Equal(t, "res_partner", detail.Name)
	require.Len(t, detail.Columns, 2)
	assert.Equal(t, "Primary email", detail.Columns[1].Comment)
}

func TestDescribeTable_MissingTableName(t *testing.T) {
	s := setupServer(&mockExplorer{}, &mockExecutor{}, nil)

	result := callTool(t, s, "describe_table", map[string]any{})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "table_name is required")
}

func TestDescribeTable_Error(t *testing.T) {
	explorer := &mockExplorer{err: fmt.Errorf("table not found")}
	s := setupServer(explorer, &mockExecutor{}, nil)

	result := callTool(t, s, "describe_table", map[string]any{"table_name": "nonexistent"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "failed to describe table")
}
