package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/lemonos/lemonfs/blockdev"
	"github.com/lemonos/lemonfs/internal/snapshot"
	"github.com/lemonos/lemonfs/layout"
	"github.com/lemonos/lemonfs/lemonfs"
)

const usage = `lemon - lemonfs image CLI

Usage:
  lemon mkfs <image> <total_blocks>          Format a new image of the given block count
  lemon mkdir <image> <path>                 Create a directory
  lemon touch <image> <path>                 Create an empty file
  lemon write <image> <path> <text>          Append text to a file, creating it first if needed
  lemon cat <image> <path>                   Print a file's content to stdout
  lemon ls <image> <path>                    List a directory's entries
  lemon info <image>                         Print block count, block size and root entry count
  lemon export <image> <out> <codec>         Write a compressed snapshot of the raw image (codec: xz, zstd)
  lemon import <in> <image> <codec>          Recreate a raw image from a compressed snapshot
  lemon help                                 Show this help message

export/import require a binary built with the matching -tags (xz, zstd);
a binary built without either reports which codecs it has available.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "mkfs":
		err = runMkfs(os.Args[2:])
	case "mkdir":
		err = runMkdir(os.Args[2:])
	case "touch":
		err = runTouch(os.Args[2:])
	case "write":
		err = runWrite(os.Args[2:])
	case "cat":
		err = runCat(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Printf("Error: unknown command %q\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runMkfs(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("mkfs requires <image> <total_blocks>")
	}
	totalBlocks, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid total_blocks %q: %w", args[1], err)
	}

	dev, err := blockdev.CreateFileDevice(args[0], uint32(totalBlocks))
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}
	defer dev.Close()

	fs, err := lemonfs.Mount(dev)
	if err != nil {
		return fmt.Errorf("formatting image: %w", err)
	}
	return fs.Flush()
}

func openImage(path string) (*blockdev.FileDevice, *lemonfs.Filesystem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image (did you run mkfs?): %w", err)
	}
	totalBlocks := uint32(info.Size() / blockdev.BlockSize)

	dev, err := blockdev.OpenFileDevice(path, totalBlocks)
	if err != nil {
		return nil, nil, err
	}
	fs, err := lemonfs.Mount(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return dev, fs, nil
}

func runMkdir(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("mkdir requires <image> <path>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	if _, err := fs.Mkdir(args[1]); err != nil {
		return err
	}
	return fs.Flush()
}

func runTouch(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("touch requires <image> <path>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	if _, err := fs.CreateFile(args[1]); err != nil {
		return err
	}
	return fs.Flush()
}

func runWrite(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("write requires <image> <path> <text>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	text := strings.Join(args[2:], " ")

	idx, err := fs.Lookup(args[1])
	if err != nil {
		idx, err = fs.CreateFile(args[1])
		if err != nil {
			return err
		}
	}

	if _, err := fs.Write(idx, []byte(text)); err != nil {
		return err
	}
	return fs.Flush()
}

func runCat(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("cat requires <image> <path>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	idx, err := fs.Lookup(args[1])
	if err != nil {
		return err
	}
	data, err := fs.Read(idx)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runLs(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("ls requires <image> <path>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	idx, err := fs.Lookup(args[1])
	if err != nil {
		return err
	}
	entries, err := fs.ReadDir(idx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-24s %s\n", e.Name, e.Inode)
	}
	return nil
}

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info requires <image>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()

	root, err := fs.Stat(lemonfs.RootInode)
	if err != nil {
		return err
	}

	fmt.Println("lemonfs image")
	fmt.Println("=============")
	fmt.Printf("Total blocks:     %d\n", dev.TotalBlocks())
	fmt.Printf("Block size:       %d bytes\n", blockdev.BlockSize)
	fmt.Printf("Root entries:     %d\n", root.Size/layout.DirEntrySize)
	return nil
}

// runExport streams the raw image file through a registered codec into
// out. The image is flushed first, so its in-memory dirty inodes land in
// the snapshot.
func runExport(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("export requires <image> <out> <codec>")
	}
	dev, fs, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer dev.Close()
	if err := fs.Flush(); err != nil {
		return err
	}

	codec, err := snapshot.Get(args[2])
	if err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close()

	w, err := codec.Compress(out)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// runImport reverses runExport: decompress in through codec into a fresh
// raw image file at image.
func runImport(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("import requires <in> <image> <codec>")
	}
	codec, err := snapshot.Get(args[2])
	if err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := codec.Decompress(in)
	if err != nil {
		return err
	}
	defer r.Close()

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, r)
	return err
}
