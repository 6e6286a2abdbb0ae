package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lucasmend/askdb/internal/core/port"
	"github.com/lucasmend/askdb/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool descriptions
const (
	descRunSQL = "Execute a read-only SQL query against the database and return results as a formatted table. " +
		"Only SELECT statements are accepted; a server-side row limit is appended when the query has none. " +
		"Use list_tables and describe_table first to learn the schema, and prefer specific column names over SELECT *."

	descRunSQLParam = "SQL query to execute (SELECT statements only)"

	descRunSQLLimit = "Maximum number of rows to return. Defaults to the server-side cap when omitted."

	descAsk = "Ask a question about the database in plain language. " +
		"A local language model translates the question into SQL, the query runs through the same " +
		"read-only safety gate as run_sql, and the answer includes the generated SQL and its results. " +
		"Pass a session_id to keep conversation context across calls."

	descAskParam = "The question to ask, in plain language"

	descAskSession = "Conversation session identifier (optional, defaults to a shared session)"

	descListTables = "List all tables and views with schema, type, estimated row count, and business description. " +
		"Use this to understand the database landscape before writing queries."

	descDescribeTable = "Describe a table's structure: columns with types, nullability, and business descriptions. " +
		"Use this to learn column names and JOIN keys before writing queries against the table."

	descDescribeTableParam = "Name of the table to describe"
)

const defaultSession = "default"

func RegisterTools(s *server.MCPServer, query *service.QueryService, chat *service.ChatService, explorer port.SchemaExplorer) {
	s.AddTool(
		mcp.NewTool("run_sql",
			mcp.WithDescription(descRunSQL),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descRunSQLParam),
			),
			mcp.WithNumber("limit",
				mcp.Description(descRunSQLLimit),
			),
		),
		runSQLHandler(query),
	)

	if chat != nil {
		s.AddTool(
			mcp.NewTool("ask",
				mcp.WithDescription(descAsk),
				mcp.WithString("question",
					mcp.Required(),
					mcp.Description(descAskParam),
				),
				mcp.WithString("session_id",
					mcp.Description(descAskSession),
				),
			),
			askHandler(chat),
		)
	}

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
		),
		listTablesHandler(explorer),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descDescribeTableParam),
			),
			mcp.WithString("schema",
				mcp.Description("Schema name (optional, resolves automatically if omitted)"),
			),
		),
		describeTableHandler(explorer),
	)
}

func runSQLHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		maxRows := 0
		if limit, ok := request.GetArguments()["limit"].(float64); ok {
			maxRows = int(limit)
		}

		ctx = service.WithToolName(ctx, "run_sql")
		results, err := query.Execute(ctx, sql, maxRows)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}

		return mcp.NewToolResultText(results.Format()), nil
	}
}

func askHandler(chat *service.ChatService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, ok := request.GetArguments()["question"].(string)
		if !ok || question == "" {
			return mcp.NewToolResultError("question is required"), nil
		}

		sessionID, _ := request.GetArguments()["session_id"].(string)
		if sessionID == "" {
			sessionID = defaultSession
		}

		ctx = service.WithToolName(ctx, "ask")
		reply, err := chat.Ask(ctx, sessionID, question)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		return mcp.NewToolResultText(reply.Answer), nil
	}
}

func listTablesHandler(explorer port.SchemaExplorer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list tables: %v", err)), nil
		}

		data, err := json.Marshal(tables)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func describeTableHandler(explorer port.SchemaExplorer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		schema, _ := request.GetArguments()["schema"].(string)

		detail, err := explorer.DescribeTable(ctx, schema, tableName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to describe table: %v", err)), nil
		}

		data, err := json.Marshal(detail)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}
