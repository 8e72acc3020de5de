package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/handoff/internal/escalation"
)

// estimatedWait is what the agent tells callers while a supervisor is paged.
const estimatedWait = "5-10 minutes"

type helpResponse struct {
	Success           bool   `json:"success"`
	RequestID         string `json:"requestId"`
	Message           string `json:"message"`
	EstimatedWaitTime string `json:"estimatedWaitTime"`
}

func (s *Server) handleSearchKnowledgeBase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	resp, err := s.svc.Search(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if !resp.Found {
		log.Printf("mcp: no answer for %q (best score %.2f)", question, resp.Score)
	}
	return jsonResult(resp)
}

func (s *Server) handleRequestHelp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	callerID, err := request.RequireString("caller_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: caller_id"), nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	in := escalation.CreateInput{
		Question:        question,
		CallerID:        callerID,
		SessionID:       sessionID,
		CallerName:      request.GetString("caller_name", ""),
		Context:         request.GetString("context", ""),
		AttemptedSearch: true,
	}
	if score := request.GetFloat("confidence_score", -1); score >= 0 {
		in.ConfidenceScore = &score
	}

	req, err := s.svc.HandleUnknown(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create help request: %v", err)), nil
	}
	return jsonResult(helpResponse{
		Success:           true,
		RequestID:         req.ID,
		Message:           "Help request sent to supervisor. They will respond shortly.",
		EstimatedWaitTime: estimatedWait,
	})
}

func (s *Server) handleGetHelpRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("request_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: request_id"), nil
	}
	req, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(req)
}

func (s *Server) handleListPendingRequests(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reqs, err := s.svc.ListPending(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing pending requests: %v", err)), nil
	}
	if len(reqs) == 0 {
		return mcp.NewToolResultText("No pending help requests."), nil
	}
	return jsonResult(reqs)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
