package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/lucasmend/askdb/internal/audit"
	"github.com/lucasmend/askdb/internal/core/domain"
	"github.com/lucasmend/askdb/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock LLM ---

type mockLLM struct {
	healthErr   error
	output      string
	generateErr error
	lastSystem  string
	lastMsgs    []port.Message
}

func (m *mockLLM) Generate(_ context.Context, system string, msgs []port.Message) (string, error) {
	m.lastSystem = system
	m.lastMsgs = msgs
	return m.output, m.generateErr
}

func (m *mockLLM) Healthy(_ context.Context) error { return m.healthErr }

// --- mock SchemaExplorer ---

type mockExplorer struct {
	tables []port.TableInfo
	err    error
}

func (m *mockExplorer) ListTables(_ context.Context) ([]port.TableInfo, error) {
	return m.tables, m.err
}

func (m *mockExplorer) DescribeTable(_ context.Context, _, _ string) (*port.TableDetail, error) {
	return nil, m.err
}

// --- mock ConversationStore ---

type mockStore struct {
	history  []port.Message
	appended []port.Message
}

func (m *mockStore) Append(_ context.Context, _ string, msg port.Message) error {
	m.appended = append(m.appended, msg)
	return nil
}

func (m *mockStore) History(_ context.Context, _ string, _ int) ([]port.Message, error) {
	return m.history, nil
}

func (m *mockStore) Close() error { return nil }

// --- helpers ---

func newChatService(llm *mockLLM, exec *mockExecutor, explorer *mockExplorer, store *mockStore) *ChatService {
	queries := NewQueryService(domain.NewKeywordValidator(), exec, audit.NoopAuditor{}, testLogger(), nil, nil, nil)
	return NewChatService(llm, queries, explorer, store, testLogger(), nil, nil, 100)
}

// --- tests ---

func TestChatService_UnhealthyLLMBlocks(t *testing.T) {
	llm := &mockLLM{healthErr: fmt.Errorf("connection refused")}
	exec := &mockExecutor{}
	svc := newChatService(llm, exec, &mockExplorer{}, &mockStore{})

	_, err := svc.Ask(context.Background(), "s1", "how many partners?")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.False(t, exec.executeCalled)
}

func TestChatService_AnswerWithSQL(t *testing.T) {
	llm := &mockLLM{output: "Here you go:\n```sql\nSELECT id, name FROM res_partner\n```"}
	exec := &mockExecutor{
		result: &domain.ResultSet{
			Columns: []string{"id", "name"},
			Rows:    [][]any{{1, "Azure Interior"}, {2, "Deco Addict"}},
		},
	}
	store := &mockStore{}
	svc := newChatService(llm, exec, &mockExplorer{}, store)

	reply, err := svc.Ask(context.Background(), "s1", "list partners")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM res_partner", reply.SQL)
	require.NotNil(t, reply.Results)
	assert.Equal(t, 2, reply.Results.Count())
	assert.Contains(t, reply.Answer, "Found 2 result(s):")
	assert.Contains(t, reply.Answer, "id | name")

	// The gate appended the cap before execution.
	assert.Equal(t, "SELECT id, name FROM res_partner LIMIT 100", exec.lastSQL)

	// Both turns persisted.
	require.Len(t, store.appended, 2)
	assert.Equal(t, "user", store.appended[0].Role)
	assert.Equal(t, "assistant", store.appended[1].Role)
}

func TestChatService_AnswerWithoutSQL(t *testing.T) {
	llm := &mockLLM{output: "A partner is a customer or vendor record."}
	exec := &mockExecutor{}
	svc := newChatService(llm, exec, &mockExplorer{}, &mockStore{})

	reply, err := svc.Ask(context.Background(), "s1", "what is a partner?")
	require.NoError(t, err)
	assert.Equal(t, "A partner is a customer or vendor record.", reply.Answer)
	assert.Empty(t, reply.SQL)
	assert.Nil(t, reply.Results)
	assert.False(t, exec.executeCalled, "no SQL extracted means no database access")
}

func TestChatService_RejectedSQLFoldedIntoAnswer(t *testing.T) {
	// The model can only author SELECT text that the extractor picks up, so
	// a deny-listed word inside it still exercises the gate.
	llm := &mockLLM{output: "```sql\nSELECT 'drop' AS word\n```"}
	exec := &mockExecutor{}
	svc := newChatService(llm, exec, &mockExplorer{}, &mockStore{})

	reply, err := svc.Ask(context.Background(), "s1", "weird question")
	require.NoError(t, err)
	assert.False(t, exec.executeCalled)
	assert.Contains(t, reply.Answer, "Error executing SQL:")
	assert.Nil(t, reply.Results, "no partial results on failure")
}

func TestChatService_ExecutionErrorFoldedIntoAnswer(t *testing.T) {
	llm := &mockLLM{output: "```sql\nSELECT missing FROM res_partner\n```"}
	exec := &mockExecutor{err: fmt.Errorf(`column "missing" does not exist`)}
	svc := newChatService(llm, exec, &mockExplorer{}, &mockStore{})

	reply, err := svc.Ask(context.Background(), "s1", "bad column")
	require.NoError(t, err)
	assert.Contains(t, reply.Answer, `column "missing" does not exist`)
	assert.Nil(t, reply.Results)
}

func TestChatService_GenerateError(t *testing.T) {
	llm := &mockLLM{generateErr: fmt.Errorf("timeout")}
	svc := newChatService(llm, &mockExecutor{}, &mockExplorer{}, &mockStore{})

	_, err := svc.Ask(context.Background(), "s1", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestChatService_SystemPromptListsTables(t *testing.T) {
	llm := &mockLLM{output: "ok"}
	explorer := &mockExplorer{tables: []port.TableInfo{
		{Schema: "public", Name: "res_partner", Comment: "Contacts"},
		{Schema: "public", Name: "sale_order"},
	}}
	svc := newChatService(llm, &mockExecutor{}, explorer, &mockStore{})

	_, err := svc.Ask(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Contains(t, llm.lastSystem, "Available database tables:")
	assert.Contains(t, llm.lastSystem, "- public.res_partner (Contacts)")
	assert.Contains(t, llm.lastSystem, "- public.sale_order")
}

func TestChatService_SystemPromptCapsTables(t *testing.T) {
	tables := make([]port.TableInfo, 0, 14)
	for i := 0; i < 14; i++ {
		tables = append(tables, port.TableInfo{Schema: "public", Name: fmt.Sprintf("t_%02d", i)})
	}
	llm := &mockLLM{output: "ok"}
	svc := newChatService(llm, &mockExecutor{}, &mockExplorer{tables: tables}, &mockStore{})

	_, err := svc.Ask(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Contains(t, llm.lastSystem, "... and 4 more tables")
	assert.NotContains(t, llm.lastSystem, "t_10")
}

func TestChatService_HistoryReplayed(t *testing.T) {
	llm := &mockLLM{output: "ok"}
	store := &mockStore{history: []port.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}}
	svc := newChatService(llm, &mockExecutor{}, &mockExplorer{}, store)

	_, err := svc.Ask(context.Background(), "s1", "follow-up")
	require.NoError(t, err)
	require.Len(t, llm.lastMsgs, 3)
	assert.Equal(t, "earlier question", llm.lastMsgs[0].Content)
	assert.Equal(t, "follow-up", llm.lastMsgs[2].Content)
}

func TestChatService_EmptyOutputGetsFallbackAnswer(t *testing.T) {
	llm := &mockLLM{output: "   "}
	svc := newChatService(llm, &mockExecutor{}, &mockExplorer{}, &mockStore{})

	reply, err := svc.Ask(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "I received your message but could not generate a response.", reply.Answer)
}
