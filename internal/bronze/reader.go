package bronze

// reader.go cleans CSV bytes before encoding/csv sees them:
//
//   - a leading UTF-8 BOM (0xEF 0xBB 0xBF) from Windows exports is dropped
//   - invalid UTF-8 bytes are replaced with '?'
//   - bytes read are counted for logging

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// sanitizingReader yields valid UTF-8 from an arbitrary byte stream. Memory use
// is bounded by the bufio buffer, not the file size.
type sanitizingReader struct {
	src     *bufio.Reader
	pending []byte // encoded rune that did not fit the caller's buffer
}

// newCSVReader wraps r with BOM skipping and UTF-8 sanitization.
func newCSVReader(r io.Reader) *countingReader {
	src := bufio.NewReader(r)
	if head, err := src.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = src.Discard(len(utf8BOM))
	}
	return &countingReader{r: &sanitizingReader{src: src}}
}

// Read implements io.Reader.
func (s *sanitizingReader) Read(p []byte) (int, error) {
	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	var buf [utf8.UTFMax]byte
	for n < len(p) {
		r, size, err := s.src.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		enc := buf[:0]
		if r == utf8.RuneError && size == 1 {
			enc = append(enc, '?')
		} else {
			enc = utf8.AppendRune(enc, r)
		}

		c := copy(p[n:], enc)
		n += c
		if c < len(enc) {
			s.pending = append(s.pending[:0], enc[c:]...)
			break
		}
	}
	return n, nil
}

// countingReader tracks bytes handed to the CSV parser.
type countingReader struct {
	r         io.Reader
	BytesRead int64
}

// Read implements io.Reader.
func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}
