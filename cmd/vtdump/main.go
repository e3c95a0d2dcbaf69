package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/variant-runtime/interop"
	"github.com/wippyai/variant-runtime/memory"
	"github.com/wippyai/variant-runtime/variant"
)

func main() {
	var (
		imageFile   = flag.String("image", "", "Path to raw linear memory image")
		at          = flag.String("at", "", "Value addresses (comma-separated, decimal or 0x hex)")
		format      = flag.String("format", "text", "Output format: text or cbor")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log decoder diagnostics to stderr")
	)
	flag.Parse()

	if *imageFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: vtdump -image <file> -at 0x10,0x40 [-format text|cbor] [-v]")
		fmt.Fprintln(os.Stderr, "       vtdump -image <file> [-at 0x10,...] -i  (interactive mode)")
		os.Exit(1)
	}

	addrs, err := parseAddrs(*at)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = logger.Sync() }()
		variant.SetLogger(logger.Named("variant"))
		memory.SetLogger(logger.Named("memory"))
		interop.SetLogger(logger.Named("interop"))
	}

	if *interactive {
		if err := runInteractive(*imageFile, addrs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(addrs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: -at is required outside interactive mode")
		os.Exit(1)
	}

	if err := run(*imageFile, addrs, *format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(imageFile string, addrs []uint32, format string) error {
	conv, err := openImage(imageFile)
	if err != nil {
		return err
	}

	entries := make([]entry, len(addrs))
	for i, addr := range addrs {
		entries[i] = decodeEntry(conv, addr)
	}

	switch format {
	case "text":
		return renderText(os.Stdout, entries, colorEnabled(os.Stdout))
	case "cbor":
		return renderCBOR(os.Stdout, entries)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// openImage loads a memory image. The heap region is empty: decoding
// never allocates, and nothing in the image is owned by the dumper.
func openImage(path string) (*variant.Converter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if uint64(len(data)) > 1<<32-1 {
		return nil, fmt.Errorf("image %s exceeds 32-bit address space", path)
	}
	mem := memory.FromBytes(data)
	end := uint32(len(data))
	return variant.NewConverter(variant.Env{
		Memory:    mem,
		Allocator: memory.NewHeap(mem, end, end),
	})
}

func parseAddrs(s string) ([]uint32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var addrs []uint32
	for _, part := range strings.Split(s, ",") {
		addr, err := parseAddr(part)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func parseAddr(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint32(v), nil
}
