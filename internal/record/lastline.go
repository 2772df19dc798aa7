package record

import (
	"errors"
	"io"
)

const seekChunk = 1024

// lastLineOffset returns the offset of the first byte of the last line in r.
// A single trailing newline belongs to the last line. An empty input yields 0.
func lastLineOffset(r io.ReaderAt, size int64) (int64, error) {
	buf := make([]byte, seekChunk)
	skipTrailing := true
	pos := size
	for pos > 0 {
		n := int64(len(buf))
		if pos < n {
			n = pos
		}
		pos -= n
		chunk := buf[:n]
		if _, err := r.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			if skipTrailing {
				skipTrailing = false
				if chunk[i] == '\n' {
					continue
				}
			}
			if chunk[i] == '\n' {
				return pos + int64(i) + 1, nil
			}
		}
	}
	return 0, nil
}
