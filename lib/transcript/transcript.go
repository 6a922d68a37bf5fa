// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript writes scanned room transcripts as compressed
// streams. Each export is a single zstd or LZ4 frame, so the output
// can be piped straight into zstdcat or lz4cat.
package transcript

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream format of an export.
type Compression uint8

const (
	// CompressionZstd is the default: transcripts are plain text and
	// compress well at the default level.
	CompressionZstd Compression = iota
	CompressionLZ4
	CompressionNone
)

// String returns the name accepted by ParseCompression.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name. The empty string
// selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("transcript: unknown compression %q", name)
	}
}

// ContentType returns the media type for an HTTP response carrying
// the stream.
func (c Compression) ContentType() string {
	switch c {
	case CompressionZstd:
		return "application/zstd"
	case CompressionLZ4:
		return "application/x-lz4"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension returns the file name suffix, including the dot.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".txt.zst"
	case CompressionLZ4:
		return ".txt.lz4"
	default:
		return ".txt"
	}
}

// Writer writes transcript lines to a compressed stream. Close must be
// called to flush the frame trailer; the underlying writer is not
// closed.
type Writer struct {
	out     io.Writer
	encoder io.WriteCloser
	lines   int
	bytes   int64
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// NewWriter starts a stream on out.
func NewWriter(out io.Writer, compression Compression) (*Writer, error) {
	var encoder io.WriteCloser
	switch compression {
	case CompressionZstd:
		zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("transcript: zstd encoder: %w", err)
		}
		encoder = zw
	case CompressionLZ4:
		lw := lz4.NewWriter(out)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4.Fast)); err != nil {
			return nil, fmt.Errorf("transcript: lz4 encoder: %w", err)
		}
		encoder = lw
	case CompressionNone:
		encoder = nopCloser{out}
	default:
		return nil, fmt.Errorf("transcript: unsupported compression %v", compression)
	}
	return &Writer{out: out, encoder: encoder}, nil
}

// WriteLine writes one line followed by a newline.
func (w *Writer) WriteLine(line string) error {
	n, err := io.WriteString(w.encoder, line+"\n")
	w.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("transcript: writing line %d: %w", w.lines+1, err)
	}
	w.lines++
	return nil
}

// WriteLines writes every line in order.
func (w *Writer) WriteLines(lines []string) error {
	for _, line := range lines {
		if err := w.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Lines returns the number of lines written so far.
func (w *Writer) Lines() int { return w.lines }

// UncompressedBytes returns the number of transcript bytes written
// before compression.
func (w *Writer) UncompressedBytes() int64 { return w.bytes }

// Close finishes the frame.
func (w *Writer) Close() error {
	if err := w.encoder.Close(); err != nil {
		return fmt.Errorf("transcript: finishing stream: %w", err)
	}
	return nil
}

// NewReader returns a reader that decompresses a stream produced by
// Writer.
func NewReader(in io.Reader, compression Compression) (io.ReadCloser, error) {
	switch compression {
	case CompressionZstd:
		decoder, err := zstd.NewReader(in)
		if err != nil {
			return nil, fmt.Errorf("transcript: zstd decoder: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(in)), nil
	case CompressionNone:
		return io.NopCloser(in), nil
	default:
		return nil, fmt.Errorf("transcript: unsupported compression %v", compression)
	}
}
