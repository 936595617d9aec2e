package trace

import (
	"fmt"
	"io"

	"github.com/FabianRolfMatthiasNoll/gbrainbow/internal/bus"
)

// cartPages is the number of pages in 0x0000-0xBFFF, the range a cartridge
// controls.
const cartPages = 0xC0

// Range is a run of pages with contiguous mapping.
type Range struct {
	Start, End uint16
	Page       bus.Page // decode of the first page
}

// Ranges merges the cartridge area of a page table into contiguous runs.
func Ranges(pages [256]bus.Page) []Range {
	var out []Range
	for i := 0; i < cartPages; i++ {
		p := pages[i]
		start := uint16(i) << 8
		if n := len(out); n > 0 && continues(out[n-1], p) {
			out[n-1].End = start | 0xFF
			continue
		}
		out = append(out, Range{Start: start, End: start | 0xFF, Page: p})
	}
	return out
}

func continues(r Range, p bus.Page) bool {
	first := r.Page
	if first.Kind != p.Kind || first.ReadOnly != p.ReadOnly || first.Registers != p.Registers {
		return false
	}
	if p.Kind == bus.None {
		return true
	}
	return p.Offset == first.Offset+uint32(r.End-r.Start)+1
}

// WriteMap prints one line per contiguous range.
func WriteMap(w io.Writer, pages [256]bus.Page) error {
	for _, r := range Ranges(pages) {
		if _, err := fmt.Fprintf(w, "%04X-%04X %s\n", r.Start, r.End, describe(r.Page)); err != nil {
			return err
		}
	}
	return nil
}

func describe(p bus.Page) string {
	s := p.Kind.String()
	if p.Kind != bus.None {
		s += fmt.Sprintf(" @%06X", p.Offset)
		if p.ReadOnly {
			s += " ro"
		} else {
			s += " rw"
		}
	}
	switch p.Registers {
	case bus.AccessRead:
		s += " regs:r"
	case bus.AccessWrite:
		s += " regs:w"
	case bus.AccessReadWrite:
		s += " regs:rw"
	}
	return s
}
