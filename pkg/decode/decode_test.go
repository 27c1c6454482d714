package decode_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cacheanalysis/pkg/decode"
	"github.com/Sumatoshi-tech/cacheanalysis/pkg/record"
)

const (
	scenarioJSON = "testdata/scenario.json"
	scenarioYAML = "testdata/scenario.yaml"
	hashA        = "123"
)

func readFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}

func TestLoadFile_JSON(t *testing.T) {
	t.Parallel()

	res, err := decode.LoadFile(context.Background(), scenarioJSON, decode.Options{Validate: true})
	require.NoError(t, err)

	assert.Equal(t, 7, res.Store.Len())
	assert.Equal(t, 2, res.Store.Count(hashA, record.KindMiss))
	assert.Equal(t, 3, res.Store.Count(hashA, record.KindHit))
	assert.Equal(t, 1, res.Store.Count(hashA, record.KindDelete))
	assert.Equal(t, []string{"123", "456"}, res.Store.Hashes())
	assert.True(t, res.Registry.IsReferenced("999"))

	misses := res.Store.Get(hashA, record.KindMiss)
	require.Len(t, misses, 2)
	assert.Equal(t, int64(10), misses[0].Size)
	assert.Equal(t, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), misses[0].Timestamp)
}

func TestLoadFile_YAML(t *testing.T) {
	t.Parallel()

	res, err := decode.LoadFile(context.Background(), scenarioYAML, decode.Options{Validate: true})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Store.Len())
	assert.Equal(t, 1, res.Registry.Len())
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := decode.LoadFile(context.Background(), "testdata/absent.json", decode.Options{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRead_Compressed(t *testing.T) {
	t.Parallel()

	raw := readFixture(t, scenarioJSON)

	var zbuf bytes.Buffer

	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var lbuf bytes.Buffer

	lw := lz4.NewWriter(&lbuf)
	_, err = lw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, lw.Close())

	assert.Equal(t, decode.CompressionZstd, decode.DetectCompression(zbuf.Bytes()))
	assert.Equal(t, decode.CompressionLZ4, decode.DetectCompression(lbuf.Bytes()))
	assert.Equal(t, decode.CompressionNone, decode.DetectCompression(raw))

	for name, payload := range map[string][]byte{"events.json.zst": zbuf.Bytes(), "events.json.lz4": lbuf.Bytes()} {
		doc, readErr := decode.Read(context.Background(), bytes.NewReader(payload), name, decode.Options{Validate: true})
		require.NoError(t, readErr, name)
		assert.Len(t, doc.Records, 7, name)
	}
}

func TestRead_MaxSize(t *testing.T) {
	t.Parallel()

	raw := readFixture(t, scenarioJSON)

	_, err := decode.Read(context.Background(), bytes.NewReader(raw), "", decode.Options{MaxSize: 16})
	require.ErrorIs(t, err, decode.ErrInputTooLarge)

	_, err = decode.Read(context.Background(), bytes.NewReader(raw), "", decode.Options{MaxSize: int64(len(raw))})
	require.NoError(t, err)
}

func TestValidate_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"missing_records", `{"references": []}`},
		{"unknown_type", `{"records": [{"type": "evict", "hash": "a", "timestamp": "2000-01-01T00:00:00Z"}]}`},
		{"put_without_size", `{"records": [{"type": "put", "hash": "a", "timestamp": "2000-01-01T00:00:00Z"}]}`},
		{"empty_hash", `{"records": [{"type": "get", "hash": "", "timestamp": "2000-01-01T00:00:00Z"}]}`},
		{"negative_size", `{"records": [{"type": "put", "hash": "a", "timestamp": "2000-01-01T00:00:00Z", "size": -1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := decode.Validate([]byte(tt.doc), decode.FormatJSON)
			require.ErrorIs(t, err, decode.ErrSchemaViolation)
		})
	}
}

func TestValidate_YAML(t *testing.T) {
	t.Parallel()

	require.NoError(t, decode.Validate(readFixture(t, scenarioYAML), decode.FormatYAML))
	require.ErrorIs(t, decode.Validate([]byte("records: [{type: get}]\n"), decode.FormatAuto), decode.ErrSchemaViolation)
}

func TestDocumentRecords_Errors(t *testing.T) {
	t.Parallel()

	doc := &decode.Document{Records: []decode.WireRecord{
		{Type: "get", Hash: "a", Timestamp: "2000-01-01T00:00:00Z"},
		{Type: "evict", Hash: "a", Timestamp: "2000-01-01T00:00:00Z"},
	}}

	_, err := doc.ToRecords()
	require.ErrorIs(t, err, record.ErrUnknownKind)
	assert.Contains(t, err.Error(), "record 1")

	doc = &decode.Document{Records: []decode.WireRecord{{Type: "get", Hash: "a", Timestamp: "yesterday"}}}

	_, err = doc.ToRecords()
	require.ErrorIs(t, err, decode.ErrInvalidTimestamp)
}

func TestWireRecord_SizeOnlyForMiss(t *testing.T) {
	t.Parallel()

	hit, err := decode.WireRecord{Type: "GET", Hash: "a", Timestamp: "2000-01-01T00:00:00Z", Size: 5}.Record()
	require.NoError(t, err)
	assert.Equal(t, record.KindHit, hit.Kind)
	assert.Zero(t, hit.Size)
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2000, time.January, 2, 3, 4, 5, 0, time.UTC)

	for _, in := range []string{
		"2000-01-02T03:04:05Z",
		"2000-01-02T03:04:05",
		"2000-01-02 03:04:05",
		"2000-01-02T04:04:05+01:00",
	} {
		ts, err := decode.ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(ts), in)
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, decode.FormatJSON, decode.DetectFormat("a.json.zst", nil))
	assert.Equal(t, decode.FormatYAML, decode.DetectFormat("a.yml", nil))
	assert.Equal(t, decode.FormatJSON, decode.DetectFormat("", []byte("  {}")))
	assert.Equal(t, decode.FormatYAML, decode.DetectFormat("-", []byte("records: []")))

	_, err := decode.ParseFormat("xml")
	require.ErrorIs(t, err, decode.ErrUnsupportedFormat)
}

func TestIngest_Multiset(t *testing.T) {
	t.Parallel()

	doc := &decode.Document{Records: []decode.WireRecord{
		{Type: "get", Hash: "a", Timestamp: "2000-01-01T00:00:00Z"},
		{Type: "get", Hash: "a", Timestamp: "2000-01-01T00:00:00Z"},
	}}

	set, err := decode.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, set.Store.Len())

	multi, err := decode.Ingest(context.Background(), doc, record.WithMultiset())
	require.NoError(t, err)
	assert.Equal(t, 2, multi.Store.Len())
}

func TestLoadFile_SniffsFormatWithoutExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events")
	require.NoError(t, os.WriteFile(path, []byte(`{"records": []}`), 0o600))

	res, err := decode.LoadFile(context.Background(), path, decode.Options{Validate: true})
	require.NoError(t, err)
	assert.Zero(t, res.Store.Len())
}
