package progress

import "io"

// Writer wraps an io.Writer and reports the size of every successful write.
type Writer struct {
	Writer  io.Writer
	OnChunk func(n int64)

	written int64
}

func NewWriter(w io.Writer, onChunk func(n int64)) *Writer {
	return &Writer{
		Writer:  w,
		OnChunk: onChunk,
	}
}

func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	if n > 0 {
		pw.written += int64(n)
		if pw.OnChunk != nil {
			pw.OnChunk(int64(n))
		}
	}

	return n, err
}

// Written returns the number of bytes written so far.
func (pw *Writer) Written() int64 {
	return pw.written
}
