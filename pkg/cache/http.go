package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf16"
)

// Fingerprint computes the ETag of v: a 32-bit rolling hash
// (h = 31*h + unit) over the UTF-16 code units of v's canonical JSON,
// rendered as a quoted, signed hexadecimal string.
//
// Equal values always produce equal ETags. The hash is not collision
// resistant; a collision can only cause an unnecessary full response.
func Fingerprint(v any) (string, error) {
	data, err := canonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return formatETag(hashUnits(data)), nil
}

// IsFresh reports whether the client's validator matches etag exactly.
func IsFresh(validator, etag string) bool {
	return validator == etag
}

// NotModified reports whether r's If-None-Match header matches etag.
func NotModified(r *http.Request, etag string) bool {
	if r == nil {
		return false
	}
	validator := r.Header.Get("If-None-Match")
	if validator == "" {
		return false
	}
	return IsFresh(validator, etag)
}

// canonicalJSON marshals v without HTML escaping and without the trailing
// newline json.Encoder adds.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func hashUnits(data []byte) int32 {
	var h int32
	for _, unit := range utf16.Encode([]rune(string(data))) {
		h = h*31 + int32(unit)
	}
	return h
}

func formatETag(h int32) string {
	return strconv.Quote(strconv.FormatInt(int64(h), 16))
}
