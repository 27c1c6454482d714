// Package decode reads cache event documents into a record store and a file
// registry.
//
// A document is a JSON or YAML object:
//
//	{"records": [{"type": "put", "hash": "…", "timestamp": "…", "size": 1024}],
//	 "references": [{"name": "…", "block_hashes": ["…"]}]}
//
// Inputs may be zstd or lz4 compressed; compression is detected from the
// stream's magic bytes.
package decode

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/blockfile"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

// Sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported input format")
	ErrSchemaViolation   = errors.New("document violates schema")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInputTooLarge     = errors.New("input exceeds size limit")
)

//go:embed schema.json
var schemaJSON []byte

const tracerName = "cacheanalysis/decode"

// Format names an input encoding.
type Format string

// Supported formats.
const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string means auto.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// WireRecord is one event as it appears on the wire.
type WireRecord struct {
	Type      string `json:"type"           yaml:"type"`
	Hash      string `json:"hash"           yaml:"hash"`
	Timestamp string `json:"timestamp"      yaml:"timestamp"`
	Size      int64  `json:"size,omitempty" yaml:"size,omitempty"`
}

// Document is a decoded input document.
type Document struct {
	Records    []WireRecord          `json:"records"    yaml:"records"`
	References []blockfile.BlockFile `json:"references" yaml:"references"`
}

// Options controls decoding.
type Options struct {
	// Format of the payload; FormatAuto picks by file extension, then content.
	Format Format
	// Validate checks the document against the embedded JSON schema.
	Validate bool
	// MaxSize caps the decompressed input in bytes. Zero disables the cap.
	MaxSize int64
	// StoreOptions are passed to record.NewStore.
	StoreOptions []record.Option
}

// Result is a loaded analysis input.
type Result struct {
	Store    *record.Store
	Registry *blockfile.Registry
}

// LoadFile reads, decodes and ingests the document at path.
// A path of "-" reads standard input.
func LoadFile(ctx context.Context, path string, opts Options) (*Result, error) {
	var (
		in  io.Reader
		err error
	)

	if path == "-" {
		in = os.Stdin
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open input: %w", openErr)
		}

		defer f.Close()

		in = f
	}

	doc, err := Read(ctx, in, path, opts)
	if err != nil {
		return nil, err
	}

	return Ingest(ctx, doc, opts.StoreOptions...)
}

// Read decompresses and parses a document. name is used for format detection
// only and may be empty.
func Read(ctx context.Context, in io.Reader, name string, opts Options) (*Document, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "decode.Read",
		trace.WithAttributes(attribute.String("decode.name", name)))
	defer span.End()

	data, err := readAll(in, opts.MaxSize)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	span.SetAttributes(attribute.Int("decode.bytes", len(data)))

	format := opts.Format
	if format == "" || format == FormatAuto {
		format = DetectFormat(name, data)
	}

	if opts.Validate {
		err = Validate(data, format)
		if err != nil {
			span.RecordError(err)

			return nil, err
		}
	}

	doc, err := Parse(data, format)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	return doc, nil
}

// Parse decodes an uncompressed payload.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document

	switch format {
	case FormatJSON:
		err := json.Unmarshal(data, &doc)
		if err != nil {
			return nil, fmt.Errorf("parse json document: %w", err)
		}
	case FormatYAML:
		err := yaml.Unmarshal(data, &doc)
		if err != nil {
			return nil, fmt.Errorf("parse yaml document: %w", err)
		}
	case FormatAuto:
		return Parse(data, DetectFormat("", data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return &doc, nil
}

// Validate checks an uncompressed payload against the document schema.
// Violations are reported as ErrSchemaViolation with every failing field.
func Validate(data []byte, format Format) error {
	if format == FormatAuto || format == "" {
		format = DetectFormat("", data)
	}

	var loader gojsonschema.JSONLoader

	switch format {
	case FormatJSON:
		loader = gojsonschema.NewBytesLoader(data)
	case FormatYAML:
		var generic any

		err := yaml.Unmarshal(data, &generic)
		if err != nil {
			return fmt.Errorf("parse yaml document: %w", err)
		}

		// Round-trip through JSON so YAML timestamps and maps take their JSON shape.
		asJSON, err := json.Marshal(generic)
		if err != nil {
			return fmt.Errorf("convert yaml document: %w", err)
		}

		loader = gojsonschema.NewBytesLoader(asJSON)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), loader)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}

// ToRecords converts the wire records. The first malformed record aborts with
// its index.
func (d *Document) ToRecords() ([]record.Record, error) {
	out := make([]record.Record, 0, len(d.Records))

	for i, w := range d.Records {
		r, err := w.Record()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		out = append(out, r)
	}

	return out, nil
}

// Record converts a single wire record.
func (w WireRecord) Record() (record.Record, error) {
	ctor, err := lookupConstructor(w.Type)
	if err != nil {
		return record.Record{}, err
	}

	ts, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		return record.Record{}, err
	}

	r := ctor(w.Hash, ts, w.Size)

	err = r.Validate()
	if err != nil {
		return record.Record{}, err
	}

	return r, nil
}

// Ingest pushes a decoded document into a new store and registry.
func Ingest(ctx context.Context, doc *Document, storeOpts ...record.Option) (*Result, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "decode.Ingest")
	defer span.End()

	records, err := doc.ToRecords()
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	store := record.NewStore(storeOpts...)

	err = store.AddAll(records)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	registry := blockfile.NewRegistry()
	for _, ref := range doc.References {
		registry.Register(ref)
	}

	span.SetAttributes(
		attribute.Int("decode.records", store.Len()),
		attribute.Int("decode.files", registry.Len()),
	)

	return &Result{Store: store, Registry: registry}, nil
}

// DetectFormat picks a format from the file extension, ignoring compression
// suffixes, and falls back to sniffing the first non-blank byte.
func DetectFormat(name string, data []byte) Format {
	base := strings.ToLower(name)
	for _, suffix := range []string{".zst", ".zstd", ".lz4"} {
		base = strings.TrimSuffix(base, suffix)
	}

	switch filepath.Ext(base) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}

	return FormatYAML
}
