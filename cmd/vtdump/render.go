package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/apd/v3"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/wippyai/variant-runtime/variant"
)

var (
	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// entry is one decoded address.
type entry struct {
	Value any    `cbor:"value"`
	Err   error  `cbor:"-"`
	Error string `cbor:"error,omitempty"`
	Tag   string `cbor:"tag"`
	Addr  uint32 `cbor:"addr"`
}

func decodeEntry(conv *variant.Converter, addr uint32) entry {
	e := entry{Addr: addr}
	v, err := variant.Load(conv.Memory(), addr)
	if err != nil {
		e.Err = err
		e.Error = err.Error()
		return e
	}
	e.Tag = v.Tag().String()
	obj, err := conv.ToObject(&v)
	if err != nil {
		e.Err = err
		e.Error = err.Error()
		return e
	}
	e.Value = obj
	return e
}

func colorEnabled(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func renderText(w io.Writer, entries []entry, color bool) error {
	paint := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}
	for _, e := range entries {
		line := paint(addrStyle, fmt.Sprintf("0x%08x", e.Addr)) + "  "
		if e.Tag != "" {
			line += paint(tagStyle, e.Tag) + "  "
		}
		if e.Err != nil {
			line += paint(failStyle, "error: "+e.Err.Error())
		} else {
			line += paint(valueStyle, formatValue(e.Value))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func renderCBOR(w io.Writer, entries []entry) error {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		return err
	}
	out := make([]entry, len(entries))
	for i, e := range entries {
		e.Value = portable(e.Value)
		out[i] = e
	}
	return em.NewEncoder(w).Encode(out)
}

// portable maps decoded host values onto types every CBOR consumer can
// read.
func portable(v any) any {
	switch x := v.(type) {
	case nil, bool, string, []byte, time.Time:
		return x
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64, float32, float64:
		return x
	case variant.Null:
		return nil
	case variant.SCode:
		return int32(x)
	case *apd.Decimal:
		return x.String()
	case uuid.UUID:
		return x.String()
	case variant.ClipData:
		return map[string]any{"format": x.Format, "data": x.Data}
	case variant.VersionedStream:
		return map[string]any{"version": x.Version.String(), "stream": portable(x.Stream)}
	case *variant.Array:
		return portable(x.Nested())
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = portable(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<empty>"
	case variant.Null:
		return "<null>"
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("% x", x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *apd.Decimal:
		return x.String()
	case variant.ClipData:
		return fmt.Sprintf("clip(format=%d, % x)", x.Format, x.Data)
	case variant.VersionedStream:
		return fmt.Sprintf("stream(%s, %s)", x.Version, formatValue(x.Stream))
	case *variant.Array:
		prefix := "array"
		if x.Vector {
			prefix = "vector"
		}
		return fmt.Sprintf("%s<%s>%v %s", prefix, x.Kind, x.Lengths, formatNested(x.Nested()))
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatNested(elems []any) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if sub, ok := e.([]any); ok {
			parts[i] = formatNested(sub)
			continue
		}
		parts[i] = formatValue(e)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
