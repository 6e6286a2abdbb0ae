package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucasmend/askdb/internal/core/domain"
	"github.com/lucasmend/askdb/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// promptTableCap bounds how many tables are described in the system
	// prompt. Small local models lose the question in oversized contexts.
	promptTableCap = 10

	// historyLimit bounds how many prior turns are replayed per session.
	historyLimit = 20
)

const basePrompt = `You are a helpful AI assistant for an ERP database.
You can answer questions about the database by writing SQL.
When a question needs data, answer with a single PostgreSQL SELECT statement in a ` + "```sql" + ` code block.
Only SELECT queries are allowed. Never write INSERT, UPDATE, DELETE, or DDL.`

// ChatService turns a natural-language question into an answer, routing any
// model-authored SQL through the safety gate before results reach the user.
type ChatService struct {
	llm      port.LLM
	queries  *QueryService
	explorer port.SchemaExplorer
	store    port.ConversationStore
	logger   *slog.Logger
	tracer   trace.Tracer
	inst     port.Instrumentation
	maxRows  int
}

func NewChatService(llm port.LLM, queries *QueryService, explorer port.SchemaExplorer, store port.ConversationStore, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation, maxRows int) *ChatService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if maxRows <= 0 {
		maxRows = domain.DefaultMaxRows
	}
	return &ChatService{
		llm:      llm,
		queries:  queries,
		explorer: explorer,
		store:    store,
		logger:   logger,
		tracer:   tracer,
		inst:     inst,
		maxRows:  maxRows,
	}
}

// Ask runs one chat turn: health-gate the model, replay session history,
// generate, extract SQL, execute it through the gate, persist both turns.
// Query rejection and execution failures are folded into the reply text;
// only an unreachable model or a generation failure is returned as an error.
func (s *ChatService) Ask(ctx context.Context, sessionID, question string) (*domain.Reply, error) {
	ctx, span := s.tracer.Start(ctx, "ChatService.Ask",
		trace.WithAttributes(attribute.String("chat.session_id", sessionID)),
	)
	defer span.End()

	if err := s.llm.Healthy(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	history, err := s.store.History(ctx, sessionID, historyLimit)
	if err != nil {
		// History is an enhancement; answer the question without it.
		s.logger.WarnContext(ctx, "loading conversation history failed",
			slog.String("chat.session_id", sessionID),
			slog.String("error.message", err.Error()),
		)
		history = nil
	}

	messages := append(history, port.Message{Role: "user", Content: question})

	start := time.Now()
	output, err := s.llm.Generate(ctx, s.systemPrompt(ctx), messages)
	s.inst.RecordGenerationDuration(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		s.inst.IncrementGenerationErrors(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generating response: %w", err)
	}

	reply := &domain.Reply{Answer: strings.TrimSpace(output)}
	if reply.Answer == "" {
		reply.Answer = "I received your message but could not generate a response."
	}

	if sql := domain.ExtractSQL(output); sql != "" {
		reply.SQL = sql
		s.runQuery(WithSession(WithToolName(ctx, "ask"), sessionID), reply)
	}

	s.persistTurn(ctx, sessionID, question, reply.Answer)
	return reply, nil
}

// runQuery executes the extracted SQL through the safety gate and folds the
// outcome into the reply. No partial results accompany a failure.
func (s *ChatService) runQuery(ctx context.Context, reply *domain.Reply) {
	results, err := s.queries.Execute(ctx, reply.SQL, s.maxRows)
	if err != nil {
		reply.Answer = reply.Answer + "\n\nError executing SQL: " + err.Error()
		return
	}
	reply.Results = results
	reply.Answer = reply.Answer + "\n\n" + results.Format()
}

func (s *ChatService) persistTurn(ctx context.Context, sessionID, question, answer string) {
	if err := s.store.Append(ctx, sessionID, port.Message{Role: "user", Content: question}); err != nil {
		s.logger.WarnContext(ctx, "persisting user turn failed", slog.String("error.message", err.Error()))
		return
	}
	if err := s.store.Append(ctx, sessionID, port.Message{Role: "assistant", Content: answer}); err != nil {
		s.logger.WarnContext(ctx, "persisting assistant turn failed", slog.String("error.message", err.Error()))
	}
}

// systemPrompt builds the generation instructions plus a bounded schema
// overview so the model knows which tables exist. Catalog failures degrade
// to the base instructions.
func (s *ChatService) systemPrompt(ctx context.Context) string {
	parts := []string{basePrompt, ""}

	tables, err := s.explorer.ListTables(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "listing tables for prompt context failed",
			slog.String("error.message", err.Error()),
		)
		return basePrompt
	}

	if len(tables) > 0 {
		parts = append(parts, "Available database tables:")
		for i, t := range tables {
			if i == promptTableCap {
				parts = append(parts, fmt.Sprintf("... and %d more tables", len(tables)-promptTableCap))
				break
			}
			line := fmt.Sprintf("- %s.%s", t.Schema, t.Name)
			if t.Comment != "" {
				line += " (" + t.Comment + ")"
			}
			parts = append(parts, line)
		}
	}

	return strings.Join(parts, "\n")
}
