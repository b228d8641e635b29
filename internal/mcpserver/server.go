// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes scribe build tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/builder"
	"github.com/starford/scribe/internal/models"
)

// PostFormatURI names the post format resource.
const PostFormatURI = "scribe://post-format"

// Site is the build surface the tools drive.
type Site interface {
	Build(ctx context.Context, flags builder.Flags) (*builder.Stats, error)
	Scan() (*models.Collection, error)
	StatsFile() string
}

// Server wraps the MCP server with scribe tools.
type Server struct {
	mcp  *server.MCPServer
	site Site
	now  func() time.Time

	// mu serialises builds.
	mu sync.Mutex
}

// New creates a new MCP server with all scribe tools registered.
func New(site Site) *Server {
	s := &Server{site: site, now: time.Now}

	s.mcp = server.NewMCPServer(
		"Scribe",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("build_site",
		mcp.WithDescription("Build the site and publish the output when anything besides the sitemap changed."),
		mcp.WithBoolean("clean", mcp.Description("Delete output, staging and cache before building")),
		mcp.WithBoolean("no_cache", mcp.Description("Ignore the stored post cache")),
	), s.buildSite)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List source posts, newest first."),
		mcp.WithString("status", mcp.Description("Optional filter: published, pending, draft or review")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("get_build_status",
		mcp.WithDescription("Return the stats of the last published build."),
	), s.getBuildStatus)

	s.mcp.AddTool(mcp.NewTool("get_post_format",
		mcp.WithDescription("Returns the source post format. "+
			"Call this before writing posts to ensure correct metadata."),
	), s.getPostFormat)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource(PostFormatURI, "Post Format",
			mcp.WithResourceDescription("Source document format: YAML metadata followed by a Markdown body."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
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

func (s *Server) buildSite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flags := builder.Flags{
		Clean:   req.GetBool("clean", false),
		NoCache: req.GetBool("no_cache", false),
	}

	if !s.mu.TryLock() {
		return mcp.NewToolResultError("a build is already running"), nil
	}
	defer s.mu.Unlock()

	stats, err := s.site.Build(ctx, flags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// postSummary is the list_posts view of a post.
type postSummary struct {
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Path      string    `json:"path"`
	Permalink string    `json:"permalink"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags,omitempty"`
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := strings.ToLower(strings.TrimSpace(req.GetString("status", "")))

	all, err := s.site.Scan()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	all.WithClock(s.now)

	var posts []*models.Post
	switch status {
	case "":
		posts = all.Posts()
	case "published":
		posts = all.Published()
	case "pending":
		posts = all.Pending()
	case "draft":
		posts = all.Drafts()
	case "review":
		posts = all.Review()
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", status)), nil
	}

	now := s.now()
	out := make([]postSummary, 0, len(posts))
	for _, p := range posts {
		st := p.Status.String()
		if p.IsPending(now) {
			st = "pending"
		}
		out = append(out, postSummary{
			Title:     p.Title,
			Status:    st,
			Path:      p.Source(),
			Permalink: p.Permalink(),
			Timestamp: p.Timestamp,
			Tags:      p.Tags,
		})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getBuildStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := builder.ReadStats(s.site.StatsFile())
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText("no published build yet"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPostFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PostFormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
