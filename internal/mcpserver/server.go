// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes moodlog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/moodlog/internal/calendar"
	"github.com/starford/moodlog/internal/entryfmt"
	"github.com/starford/moodlog/internal/recordservice"
	"github.com/starford/moodlog/internal/stats"
)

// EntryFormatURI is the resource holding the entry format contract.
const EntryFormatURI = "moodlog://entry-format"

// Server wraps the MCP server with moodlog tools.
type Server struct {
	mcp     *server.MCPServer
	records *recordservice.Service
	stats   *stats.Service
	fetch   *fetcher
}

// New creates a new MCP server with all moodlog tools registered.
func New(records *recordservice.Service, statistics *stats.Service) *Server {
	s := &Server{
		records: records,
		stats:   statistics,
		fetch:   newFetcher(recordservice.MaxAttachmentBytes, publicOnly),
	}

	s.mcp = server.NewMCPServer(
		"moodlog",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	period := []mcp.ToolOption{
		mcp.WithNumber("user_id", mcp.Required(), mcp.Description("Owner of the records")),
		mcp.WithString("timezone", mcp.Description("IANA timezone of the user, e.g. Asia/Ho_Chi_Minh (default UTC)")),
		mcp.WithNumber("month", mcp.Description("Month 1-12 (default: current month in the timezone)")),
		mcp.WithNumber("year", mcp.Description("Year (default: current year in the timezone)")),
	}

	s.mcp.AddTool(mcp.NewTool("mood_statistics", append([]mcp.ToolOption{
		mcp.WithDescription("Mood distribution for the current week and for a month, "+
			"with one entry per calendar day, computed in the user's timezone."),
	}, period...)...), s.moodStatistics)

	s.mcp.AddTool(mcp.NewTool("activity_statistics", append([]mcp.ToolOption{
		mcp.WithDescription("Per-day activity counts for a month in the user's timezone."),
	}, period...)...), s.activityStatistics)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List a user's journal records, newest first."),
		mcp.WithNumber("user_id", mcp.Required(), mcp.Description("Owner of the records")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read one record as a Markdown entry with YAML frontmatter."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
		mcp.WithString("timezone", mcp.Description("Timezone to show the date in (default UTC)")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a journal record from a Markdown entry. "+
			"Content MUST follow the entry format contract (YAML frontmatter with mood, "+
			"activities, date, Markdown body). Read the contract first via the "+
			"get_entry_contract tool or the "+EntryFormatURI+" resource."),
		mcp.WithNumber("user_id", mcp.Required(), mcp.Description("Owner of the record")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown entry following the moodlog entry format contract")),
		mcp.WithString("timezone", mcp.Description("Timezone for frontmatter dates without an offset (default UTC)")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Full-text search through a user's record titles and content."),
		mcp.WithNumber("user_id", mcp.Required(), mcp.Description("Owner of the records")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("attach_file",
		mcp.WithDescription("Attach an image or PDF to a record from a base64 data URI or an HTTP(S) URL. "+
			"Returns a markdownImage field ready to paste into the record body."),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("Record to attach the file to")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:<mime>;base64,... URI or http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional display name, e.g. sunset.jpg")),
	), s.attachFile)

	s.mcp.AddTool(mcp.NewTool("get_entry_contract",
		mcp.WithDescription("Returns the canonical moodlog entry format contract. "+
			"Call this before creating records to ensure correct structure."),
	), s.getEntryContract)

	s.mcp.AddResource(
		mcp.NewResource(EntryFormatURI, "Entry Format Contract",
			mcp.WithResourceDescription("Canonical Markdown entry format for journal records."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// optionalInt renders an optional numeric argument the way the HTTP query
// parser expects it; absent or zero means "not given".
func optionalInt(req mcp.CallToolRequest, key string) string {
	if n := req.GetInt(key, 0); n != 0 {
		return strconv.Itoa(n)
	}
	return ""
}

func (s *Server) statsRequest(req mcp.CallToolRequest) (stats.Request, error) {
	userID, err := req.RequireInt("user_id")
	if err != nil {
		return stats.Request{}, err
	}
	return stats.ParseRequest(
		strconv.Itoa(userID),
		req.GetString("timezone", ""),
		optionalInt(req, "month"),
		optionalInt(req, "year"),
	)
}

func (s *Server) moodStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sr, err := s.statsRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.stats.MoodStatistics(ctx, sr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) activityStatistics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sr, err := s.statsRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.stats.ActivityStatistics(ctx, sr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireInt("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.records.List(ctx, int64(userID))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no records found"), nil
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		mood := "-"
		if r.MoodID != nil {
			mood = strconv.FormatInt(*r.MoodID, 10)
		}
		lines = append(lines, fmt.Sprintf("%d\t%s\tmood=%s\t%s", r.ID, r.Date.UTC().Format("2006-01-02T15:04Z"), mood, r.Title))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := calendar.LoadZone(req.GetString("timezone", stats.DefaultTimezone))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.records.Get(ctx, int64(id), 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("record %d: %v", id, err)), nil
	}
	data, err := entryfmt.Format(*r, loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireInt("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := calendar.LoadZone(req.GetString("timezone", stats.DefaultTimezone))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.records.CreateFromEntry(ctx, int64(userID), []byte(content), loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: record %d", r.ID)), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireInt("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.records.Search(ctx, int64(userID), query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) getEntryContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      EntryFormatURI,
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
