// Package snapshot registers compression codecs for whole-image export and
// import, the way comp.go/comp_xz.go/comp_zstd.go register per-codec
// (de)compressors for squashfs: each real codec lives in its own
// build-tag-gated file and adds itself to the registry from an init
// function, so a binary only pulls in the compression library it was
// built with.
package snapshot

import (
	"fmt"
	"io"
)

// Codec wraps a pair of streaming compressor/decompressor constructors.
type Codec struct {
	Name       string
	Compress   func(w io.Writer) (io.WriteCloser, error)
	Decompress func(r io.Reader) (io.ReadCloser, error)
}

var registry = map[string]Codec{}

// Register adds c to the set of codecs available to the export/import
// commands. Called from each codec file's init.
func Register(c Codec) {
	registry[c.Name] = c
}

// Get looks up a codec by name.
func Get(name string) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return Codec{}, fmt.Errorf("snapshot: codec %q is not registered (built without its build tag?); available: %v", name, Names())
	}
	return c, nil
}

// Names lists every registered codec name.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
