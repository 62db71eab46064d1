//go:build zstd

package snapshot

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	Register(Codec{
		Name: "zstd",
		Compress: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		Decompress: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
	})
}
