package mcp

import "github.com/mark3labs/mcp-go/mcp"

var searchKnowledgeBaseTool = mcp.NewTool("search_knowledge_base",
	mcp.WithDescription("Search the business knowledge base for information about services, hours, pricing, location and booking. Use this first before escalating to a supervisor."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The customer question to search for"),
	),
)

var requestHelpTool = mcp.NewTool("request_help",
	mcp.WithDescription("Escalate to a human supervisor when you don't know the answer or are uncertain. Always use this when the knowledge base search finds nothing."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The question that needs supervisor assistance"),
	),
	mcp.WithString("caller_id",
		mcp.Required(),
		mcp.Description("Phone number or other id of the caller"),
	),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Id of the current call"),
	),
	mcp.WithString("caller_name",
		mcp.Description("Caller's name, if known"),
	),
	mcp.WithString("context",
		mcp.Description("Additional conversation context"),
	),
	mcp.WithNumber("confidence_score",
		mcp.Description("Score of the best knowledge base match, between 0 and 1"),
	),
)

var getHelpRequestTool = mcp.NewTool("get_help_request",
	mcp.WithDescription("Check the status of a help request and read the supervisor's answer once it is resolved."),
	mcp.WithString("request_id",
		mcp.Required(),
		mcp.Description("Id returned by request_help"),
	),
)

var listPendingRequestsTool = mcp.NewTool("list_pending_requests",
	mcp.WithDescription("List help requests still waiting for a supervisor, newest first."),
)
