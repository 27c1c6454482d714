package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/analysis"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

// Tool name constants.
const (
	ToolNameOverview  = "cache_overview"
	ToolNameBlock     = "cache_block"
	ToolNamePartition = "cache_partition"
)

const (
	overviewToolDescription = "Summarise a cache trace document: event counts, " +
		"orphan hits, bytes loaded, overall hit/miss ratio and mean hits per load."
	blockToolDescription = "Per-block statistics for one block hash in a cache trace document: " +
		"totals, mean hits per load, mean other-block misses between reloads and referencing files."
	partitionToolDescription = "Hit/miss ratio of blocks referenced by a block file versus " +
		"unreferenced blocks, plus per-file summaries."
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrEmptyHash indicates the hash parameter is empty.
	ErrEmptyHash = errors.New("hash parameter is required and must not be empty")
	// ErrUnknownBlock indicates the hash was never observed nor referenced.
	ErrUnknownBlock = errors.New("unknown block hash")
)

// DocumentInput is the input schema shared by the document-level tools.
type DocumentInput struct {
	Path     string `json:"path"               jsonschema:"path to a JSON or YAML cache trace document"`
	Multiset bool   `json:"multiset,omitempty" jsonschema:"keep duplicate records instead of collapsing them"`
}

// BlockInput is the input schema for the cache_block tool.
type BlockInput struct {
	Path     string `json:"path"               jsonschema:"path to a JSON or YAML cache trace document"`
	Hash     string `json:"hash"               jsonschema:"block hash to inspect"`
	Multiset bool   `json:"multiset,omitempty" jsonschema:"keep duplicate records instead of collapsing them"`
}

// PartitionOutput is the payload of the cache_partition tool.
type PartitionOutput struct {
	Partition analysis.Partition     `json:"partition"`
	Files     []analysis.FileSummary `json:"files"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleOverview(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in DocumentInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	an, err := s.analyse(ctx, in.Path, in.Multiset)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(an.Overview())
}

func (s *Server) handleBlock(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in BlockInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Hash == "" {
		return errorResult(ErrEmptyHash)
	}

	an, err := s.analyse(ctx, in.Path, in.Multiset)
	if err != nil {
		return errorResult(err)
	}

	if !slices.Contains(an.KnownBlockHashes(), in.Hash) && !an.Registry().IsReferenced(in.Hash) {
		return errorResult(fmt.Errorf("%w: %q", ErrUnknownBlock, in.Hash))
	}

	return jsonResult(an.Block(in.Hash))
}

func (s *Server) handlePartition(
	ctx context.Context, _ *mcpsdk.CallToolRequest, in DocumentInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	an, err := s.analyse(ctx, in.Path, in.Multiset)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(PartitionOutput{Partition: an.Partition(), Files: an.Files()})
}

// analyse loads the document fresh for every call.
func (s *Server) analyse(ctx context.Context, path string, multiset bool) (*analysis.Analysis, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	opts := s.opts
	if multiset {
		opts.StoreOptions = append(slices.Clone(opts.StoreOptions), record.WithMultiset())
	}

	res, err := s.load(ctx, path, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	s.logger.DebugContext(ctx, "mcp document loaded", "path", path, "records", res.Store.Len())

	return analysis.New(res.Store, analysis.WithRegistry(res.Registry), analysis.WithLogger(s.logger)), nil
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
