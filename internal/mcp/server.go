package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/nyfy17/VitaMobile/internal/export"
	"github.com/nyfy17/VitaMobile/internal/models"
	"github.com/nyfy17/VitaMobile/internal/session"
	"github.com/nyfy17/VitaMobile/internal/snapshot"
)

// Server exposes a review session as MCP tools. Tool calls may arrive
// concurrently; every handler holds mu for the duration of its session access.
type Server struct {
	mu     sync.Mutex
	sess   *session.Session
	sink   export.Sink
	device string
	log    *zap.Logger
}

// NewServer wraps sess. Exports go to sink unless a call names its own
// directory.
func NewServer(sess *session.Session, sink export.Sink, device string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		sess:   sess,
		sink:   sink,
		device: device,
		log:    log,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("vita", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.loadTool())
	srv.AddTool(s.currentTool())
	srv.AddTool(s.statsTool())
	srv.AddTool(s.queueTool())
	srv.AddTool(s.approveTool())
	srv.AddTool(s.correctTool())
	srv.AddTool(s.skipTool())
	srv.AddTool(s.exportTool())
	srv.AddTool(s.categoriesTool())
	srv.AddTool(s.projectsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Output shapes
// ---------------------------------------------------------------------------

type recordOut struct {
	ID                 models.RecordID `json:"id"`
	Subject            string          `json:"subject"`
	From               string          `json:"from"`
	Date               string          `json:"date"`
	Summary            string          `json:"summary"`
	Category           string          `json:"category"`
	CategoryConfidence int             `json:"category_confidence"`
	CategoryReasoning  string          `json:"category_reasoning"`
	Project            string          `json:"project"`
	ProjectConfidence  int             `json:"project_confidence"`
	ProjectClues       string          `json:"project_clues"`
	Body               string          `json:"body,omitempty"`
}

func toRecordOut(r models.ReviewRecord, withBody bool) recordOut {
	out := recordOut{
		ID:                 r.ID,
		Subject:            r.Subject,
		From:               r.SenderDisplay(),
		Date:               r.DateString(),
		Summary:            r.OnelineSummary,
		Category:           r.AICategory,
		CategoryConfidence: models.ConfidencePercent(r.CategoryConfidence),
		CategoryReasoning:  r.CategoryReasoning,
		Project:            r.OriginalProject(),
		ProjectConfidence:  models.ConfidencePercent(r.ProjectConfidence),
		ProjectClues:       r.ProjectClues,
	}
	if withBody {
		out.Body = r.Content()
	}
	return out
}

type statsOut struct {
	State     string `json:"state"`
	Position  int    `json:"position"`
	Total     int    `json:"total"`
	Remaining int    `json:"remaining"`
	Corrected int    `json:"corrected"`
}

// statsLocked reads progress; callers hold mu.
func (s *Server) statsLocked() statsOut {
	st := s.sess.Stats()
	return statsOut{
		State:     s.sess.State().String(),
		Position:  st.Position,
		Total:     st.Total,
		Remaining: st.Remaining,
		Corrected: st.Corrected,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// vita_load
func (s *Server) loadTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_load",
		mcp.WithDescription("Load a review snapshot (SQLite file exported by the desktop classifier). Refused while a review is in progress unless force is true, which abandons the current queue. The correction log is kept."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the snapshot file")),
		mcp.WithBoolean("force", mcp.Description("Reset an in-progress review before loading")),
	)
	return tool, s.handleLoad
}

func (s *Server) handleLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}
	force := request.GetBool("force", false)

	snap, err := snapshot.ParseFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load snapshot: %v", err)), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if force && s.sess.State() == session.StateReviewing {
		s.sess.Reset(ctx)
	}
	if err := s.sess.Load(ctx, snap); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			return mcp.NewToolResultError("a review is in progress; pass force=true to replace it"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load snapshot: %v", err)), nil
	}
	s.log.Info("snapshot loaded via mcp", zap.String("path", path))
	return jsonResult(s.statsLocked())
}

// vita_current
func (s *Server) currentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_current",
		mcp.WithDescription("Show the record under review: subject, sender, date, summary, AI category and project with confidence percentages and reasoning. Set include_body to add the full message text."),
		mcp.WithBoolean("include_body", mcp.Description("Include the message body (falls back to the full thread)")),
	)
	return tool, s.handleCurrent
}

func (s *Server) handleCurrent(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	withBody := request.GetBool("include_body", false)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.sess.Current()
	switch {
	case errors.Is(err, session.ErrNotLoaded):
		return mcp.NewToolResultError("no snapshot loaded; call vita_load first"), nil
	case errors.Is(err, session.ErrQueueExhausted):
		return mcp.NewToolResultText("Review complete. Call vita_export to deliver the corrections."), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}

	st := s.sess.Stats()
	return jsonResult(map[string]any{
		"position": fmt.Sprintf("Email %d of %d", st.Position+1, st.Total),
		"record":   toRecordOut(rec, withBody),
	})
}

// vita_stats
func (s *Server) statsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_stats",
		mcp.WithDescription("Report review progress: state (idle/reviewing/complete), position, total, remaining and the number of pending corrections."),
	)
	return tool, s.handleStats
}

func (s *Server) handleStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jsonResult(s.statsLocked())
}

// vita_queue
func (s *Server) queueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_queue",
		mcp.WithDescription("List records not yet reviewed, in review order."),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 20)")),
	)
	return tool, s.handleQueue
}

func (s *Server) handleQueue(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)

	s.mu.Lock()
	pending := s.sess.Pending()
	s.mu.Unlock()

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]recordOut, len(pending))
	for i, r := range pending {
		out[i] = toRecordOut(r, false)
	}
	return jsonResult(out)
}

// vita_approve
func (s *Server) approveTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_approve",
		mcp.WithDescription("Accept the AI category and project for the current record and advance."),
	)
	return tool, s.handleApprove
}

func (s *Server) handleApprove(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sess.Approve(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to approve: %v", err)), nil
	}
	return jsonResult(s.statsLocked())
}

// vita_correct
func (s *Server) correctTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_correct",
		mcp.WithDescription("Record a correction for the current record and advance. Omit category or project to keep the AI label; with neither set the review counts as an approval. Use vita_categories and vita_projects for valid values."),
		mcp.WithString("category", mcp.Description("Corrected category from the taxonomy")),
		mcp.WithString("category_reason", mcp.Description("Why the category was changed")),
		mcp.WithString("project", mcp.Description("Corrected project label")),
		mcp.WithString("project_reason", mcp.Description("Why the project was changed")),
	)
	return tool, s.handleCorrect
}

func (s *Server) handleCorrect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := session.CorrectInput{
		Category:       request.GetString("category", ""),
		CategoryReason: request.GetString("category_reason", ""),
		Project:        request.GetString("project", ""),
		ProjectReason:  request.GetString("project_reason", ""),
	}
	if in.Category != "" && !models.IsCategory(in.Category) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown category: %s", in.Category)), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Project != "" && !slices.Contains(models.ProjectChoices(s.sess.Projects()), in.Project) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown project: %s", in.Project)), nil
	}
	if err := s.sess.Correct(ctx, in); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to correct: %v", err)), nil
	}
	return jsonResult(s.statsLocked())
}

// vita_skip
func (s *Server) skipTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_skip",
		mcp.WithDescription("Advance past the current record without recording anything. Skipped records are not exported."),
	)
	return tool, s.handleSkip
}

func (s *Server) handleSkip(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sess.Skip(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to skip: %v", err)), nil
	}
	return jsonResult(s.statsLocked())
}

// vita_export
func (s *Server) exportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_export",
		mcp.WithDescription("Write the pending corrections to a dated JSON file and clear them. Does nothing when there are no corrections."),
		mcp.WithString("dir", mcp.Description("Directory to write into (default: configured export directory)")),
	)
	return tool, s.handleExport
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sink := s.sink
	if dir := request.GetString("dir", ""); dir != "" {
		sink = export.NewFileSink(dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sess.Export(ctx, sink, s.device)
	if errors.Is(err, session.ErrNothingToExport) {
		return mcp.NewToolResultText("No corrections to export."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to export: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"location":    res.Location,
		"corrections": len(res.Document.Corrections),
		"email_count": res.Document.EmailCount,
		"device":      res.Document.Device,
	})
}

// vita_categories
func (s *Server) categoriesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_categories",
		mcp.WithDescription("List the category taxonomy accepted by vita_correct."),
	)
	return tool, s.handleCategories
}

func (s *Server) handleCategories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(models.Categories)
}

// vita_projects
func (s *Server) projectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("vita_projects",
		mcp.WithDescription("List the project labels accepted by vita_correct for the loaded snapshot."),
	)
	return tool, s.handleProjects
}

func (s *Server) handleProjects(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jsonResult(models.ProjectChoices(s.sess.Projects()))
}
