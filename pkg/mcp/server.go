// Package mcp implements a Model Context Protocol server exposing cache
// trace analysis as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/decode"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "cacheanalysis"

	// toolCount is the expected number of registered tools.
	toolCount = 3
)

// Loader reads and ingests a trace document.
type Loader func(ctx context.Context, path string, opts decode.Options) (*decode.Result, error)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Load reads documents for every call. Nil uses decode.LoadFile.
	Load Loader

	// LoadOptions are the decode options applied to every document.
	LoadOptions decode.Options
}

// Server wraps the MCP SDK server with the cache analysis tools.
type Server struct {
	inner  *mcpsdk.Server
	mu     sync.RWMutex
	tools  []string
	tracer trace.Tracer
	logger *slog.Logger
	load   Loader
	opts   decode.Options
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	load := deps.Load
	if load == nil {
		load = decode.LoadFile
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	srv := &Server{
		inner:  inner,
		tools:  make([]string, 0, toolCount),
		tracer: deps.Tracer,
		logger: logger,
		load:   load,
		opts:   deps.LoadOptions,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameOverview,
		Description: overviewToolDescription,
	}, withTracing(s.tracer, ToolNameOverview, s.handleOverview))
	s.trackTool(ToolNameOverview)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameBlock,
		Description: blockToolDescription,
	}, withTracing(s.tracer, ToolNameBlock, s.handleBlock))
	s.trackTool(ToolNameBlock)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNamePartition,
		Description: partitionToolDescription,
	}, withTracing(s.tracer, ToolNamePartition, s.handlePartition))
	s.trackTool(ToolNamePartition)
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}
