package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Codec limits.
const (
	// DefaultMaxEntryBytes is the hard ceiling on a serialized entry.
	DefaultMaxEntryBytes = 1 << 20

	// DefaultCompressThreshold is the payload size above which
	// CompressionAuto compresses.
	DefaultCompressThreshold = 1024
)

var (
	// ErrEntryTooLarge indicates a serialized entry exceeds the ceiling.
	ErrEntryTooLarge = errors.New("cache entry too large")

	// ErrCorruptEntry indicates a stored payload could not be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// gzipMagic prefixes every gzip stream. JSON text never starts with it,
// which makes stored payloads self-describing.
var gzipMagic = []byte{0x1f, 0x8b}

// Compressor compresses and decompresses payloads.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCompressor is the default Compressor.
type GzipCompressor struct {
	// Level is the gzip level; zero means gzip.BestSpeed.
	Level int
}

// Compress implements Compressor.
func (g GzipCompressor) Compress(data []byte) ([]byte, error) {
	level := g.Level
	if level == 0 {
		level = gzip.BestSpeed
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress implements Compressor.
func (g GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// Codec turns cache entries into stored payloads and back.
//
// Payloads are JSON, optionally gzip-compressed. A nil Compressor disables
// compression; decoding a compressed payload then fails with
// ErrCorruptEntry, which callers treat as a miss.
type Codec struct {
	// MaxEntryBytes caps the serialized (uncompressed) size.
	MaxEntryBytes int

	// CompressThreshold is the size above which CompressionAuto compresses.
	CompressThreshold int

	// Compressor performs compression; nil disables it.
	Compressor Compressor
}

// DefaultCodec returns a codec with the default limits and gzip.
func DefaultCodec() Codec {
	return Codec{
		MaxEntryBytes:     DefaultMaxEntryBytes,
		CompressThreshold: DefaultCompressThreshold,
		Compressor:        GzipCompressor{},
	}
}

// Encode serializes v. It returns ErrEntryTooLarge when the JSON form is
// over the ceiling. If compression fails the uncompressed form is returned.
func (c Codec) Encode(v any, mode Compression) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}

	if c.MaxEntryBytes > 0 && len(data) > c.MaxEntryBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrEntryTooLarge, len(data), c.MaxEntryBytes)
	}

	if !c.shouldCompress(len(data), mode) {
		return data, nil
	}

	compressed, err := c.Compressor.Compress(data)
	if err != nil {
		return data, nil
	}
	return compressed, nil
}

// Decode reverses Encode into out, decompressing when the payload is a
// gzip stream.
func (c Codec) Decode(data []byte, out any) error {
	if bytes.HasPrefix(data, gzipMagic) {
		if c.Compressor == nil {
			return fmt.Errorf("%w: compressed payload without compressor", ErrCorruptEntry)
		}
		raw, err := c.Compressor.Decompress(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptEntry, err)
		}
		data = raw
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return nil
}

func (c Codec) shouldCompress(size int, mode Compression) bool {
	if c.Compressor == nil {
		return false
	}
	switch mode {
	case CompressionOff:
		return false
	case CompressionForce:
		return true
	default:
		return size > c.CompressThreshold
	}
}
