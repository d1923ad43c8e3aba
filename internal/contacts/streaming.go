package contacts

// streaming.go handles acquisition of the raw file text before parsing.
//
// The parser works on the complete decoded text, so the only jobs here are
// bounded-memory assembly (fixed-size chunk reads), BOM removal, and UTF-8
// sanitization. Structural parsing never starts on a partial read.

import (
	"io"
	"strings"
	"unicode/utf8"
)

// ReadChunkSize is the size of each incremental read while assembling the
// file text.
const ReadChunkSize = 1 << 20 // 1 MiB

// ReadAll assembles the complete text of r using ReadChunkSize reads.
// It returns ErrFileTooLarge once more than limit bytes have been read
// (limit <= 0 means unlimited). The result has a leading UTF-8 BOM removed
// and invalid UTF-8 bytes replaced with '?', so downstream parsing can treat
// the text as clean.
func ReadAll(r io.Reader, limit int64) (string, error) {
	var sb strings.Builder
	buf := make([]byte, ReadChunkSize)
	var total int64

	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if limit > 0 && total > limit {
				return "", ErrFileTooLarge
			}
			sb.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	text := strings.TrimPrefix(sb.String(), "\ufeff")
	return sanitizeUTF8(text), nil
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with '?'. Most exports are clean
// ASCII, so the valid case returns the input unchanged without allocating.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteByte('?')
			i++
			continue
		}
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}
