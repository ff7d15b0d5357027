package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

type traceFile struct {
	io.Reader
	closers []func() error
}

func (f *traceFile) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openTrace opens a trace for reading, decompressing it based on its extension: .sz for snappy's framing format
// and .zst for zstd. A path of "-" reads from stdin.
func openTrace(path string, stdin io.Reader) (io.ReadCloser, error) {
	f := &traceFile{}
	if path == "-" {
		f.Reader = stdin
	} else {
		osf, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		f.Reader = osf
		f.closers = append(f.closers, osf.Close)
	}

	switch filepath.Ext(path) {
	case ".sz":
		f.Reader = snappy.NewReader(f.Reader)
	case ".zst":
		dec, err := zstd.NewReader(f.Reader, zstd.WithDecoderConcurrency(0))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("couldn't create zstd decoder: %w", err)
		}
		f.Reader = dec
		f.closers = append(f.closers, func() error {
			dec.Close()
			return nil
		})
	}
	return f, nil
}
