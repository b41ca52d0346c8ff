package cache

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

type failingCompressor struct{}

func (failingCompressor) Compress([]byte) ([]byte, error)   { return nil, errors.New("boom") }
func (failingCompressor) Decompress([]byte) ([]byte, error) { return nil, errors.New("boom") }

func TestCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		mode  Compression
	}{
		{name: "empty string", value: "", mode: CompressionAuto},
		{name: "small uncompressed", value: "albert-einstein", mode: CompressionAuto},
		{name: "large auto-compressed", value: strings.Repeat("physics ", 500), mode: CompressionAuto},
		{name: "forced compression", value: "tiny", mode: CompressionForce},
		{name: "compression off", value: strings.Repeat("x", 4096), mode: CompressionOff},
	}

	codec := DefaultCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newEntry(tt.value, now, time.Minute, time.Minute, `"1"`, []string{"t"})

			data, err := codec.Encode(in, tt.mode)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			var out CacheEntry[string]
			if err := codec.Decode(data, &out); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if out.Value != tt.value {
				t.Errorf("Value = %q, want %q", out.Value, tt.value)
			}
			if !out.StaleAt.Equal(in.StaleAt) || !out.ExpiresAt.Equal(in.ExpiresAt) {
				t.Errorf("timing = %v/%v, want %v/%v", out.StaleAt, out.ExpiresAt, in.StaleAt, in.ExpiresAt)
			}
			if out.ETag != in.ETag {
				t.Errorf("ETag = %q, want %q", out.ETag, in.ETag)
			}
		})
	}
}

func TestCodec_CompressionModes(t *testing.T) {
	codec := DefaultCodec()
	large := strings.Repeat("a", 2048)

	tests := []struct {
		name           string
		value          string
		mode           Compression
		wantCompressed bool
	}{
		{name: "auto below threshold", value: "small", mode: CompressionAuto, wantCompressed: false},
		{name: "auto above threshold", value: large, mode: CompressionAuto, wantCompressed: true},
		{name: "off above threshold", value: large, mode: CompressionOff, wantCompressed: false},
		{name: "force below threshold", value: "small", mode: CompressionForce, wantCompressed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Encode(tt.value, tt.mode)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got := bytes.HasPrefix(data, gzipMagic); got != tt.wantCompressed {
				t.Errorf("compressed = %v, want %v", got, tt.wantCompressed)
			}
		})
	}
}

func TestCodec_TooLarge(t *testing.T) {
	codec := DefaultCodec()
	codec.MaxEntryBytes = 16

	_, err := codec.Encode(strings.Repeat("x", 32), CompressionForce)
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("Encode() error = %v, want ErrEntryTooLarge", err)
	}
}

func TestCodec_DefaultCeiling(t *testing.T) {
	codec := DefaultCodec()

	// 1 MiB of content plus the JSON quotes is over the ceiling.
	_, err := codec.Encode(strings.Repeat("x", DefaultMaxEntryBytes), CompressionAuto)
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("Encode() error = %v, want ErrEntryTooLarge", err)
	}
}

func TestCodec_CompressionFailureFallsBack(t *testing.T) {
	codec := DefaultCodec()
	codec.Compressor = failingCompressor{}

	data, err := codec.Encode("value", CompressionForce)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(data) != `"value"` {
		t.Errorf("Encode() = %s, want uncompressed JSON", data)
	}
}

func TestCodec_DecodeCorrupt(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		data  []byte
	}{
		{name: "not json", codec: DefaultCodec(), data: []byte("not json")},
		{name: "truncated gzip", codec: DefaultCodec(), data: []byte{0x1f, 0x8b, 0x00}},
		{name: "gzip without compressor", codec: Codec{}, data: mustCompress(t, `"x"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out string
			if err := tt.codec.Decode(tt.data, &out); !errors.Is(err, ErrCorruptEntry) {
				t.Errorf("Decode() error = %v, want ErrCorruptEntry", err)
			}
		})
	}
}

func mustCompress(t *testing.T, s string) []byte {
	t.Helper()
	data, err := GzipCompressor{}.Compress([]byte(s))
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	return data
}
