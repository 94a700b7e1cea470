// Package listing implements the assembler's pass-2 program listing and
// symbol-table appendix: a page header repeated on every page,
// fixed-width address/object/line-number/source columns, and a sorted
// four-column symbol dump at the end of the run.
package listing

import (
	"fmt"
	"io"

	"github.com/chettrick/zz80asm/pkg/symtab"
)

// LinesPerPage is the default header repeat interval; PAGE overrides it
// per run.
const LinesPerPage = 65

// Release is printed in every page header.
const Release = "1.0"

// Suppress controls which columns a listing line shows.
type Suppress int

const (
	// ShowAll prints address, object bytes, line numbers, and source.
	ShowAll Suppress = iota
	// NoData suppresses the object-byte column (EQU/DEFL: no bytes emitted).
	NoData
	// NoAddrData suppresses both address and object-byte columns.
	NoAddrData
	// LabelOnly suppresses the address and object-byte columns and the
	// source echo, printing only the line numbers.
	LabelOnly
	// Nothing suppresses the entire line.
	Nothing
)

// Writer writes paginated listing lines. The symbol-table appendix is
// written separately by WriteSymbolTable.
type Writer struct {
	w          io.Writer
	enabled    bool
	title      string
	page       int
	ppl        int
	lineOnPage int
	stmtLine   int
	pendingErr string
}

// NewWriter returns a Writer that writes to w. Listing output starts
// enabled; NOLIST/LIST toggle it mid-run.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, enabled: true, page: 1, ppl: LinesPerPage}
}

// SetTitle sets the header's TITLE text.
func (lw *Writer) SetTitle(title string) { lw.title = title }

// SetLinesPerPage implements the PAGE directive; values below 10 are
// ignored to keep the header itself from overflowing a page.
func (lw *Writer) SetLinesPerPage(n int) {
	if n >= 10 {
		lw.ppl = n
	}
}

// SetEnabled implements LIST/NOLIST.
func (lw *Writer) SetEnabled(on bool) { lw.enabled = on }

// Eject forces a page break on EJECT.
func (lw *Writer) Eject() {
	lw.lineOnPage = 0
	lw.page++
}

// SetPendingError queues detail text to print alongside the next
// listing line, where pass-2 diagnostics belong.
func (lw *Writer) SetPendingError(detail string) {
	lw.pendingErr = detail
}

func (lw *Writer) header() {
	fmt.Fprintf(lw.w, "Z80-Assembler Release %s   %-40s PAGE %4d\n\n", Release, lw.title, lw.page)
	lw.lineOnPage = 2
}

// Line emits one source line's listing record. addr is ignored under
// NoAddrData/LabelOnly/Nothing and data under
// NoData/NoAddrData/LabelOnly/Nothing; line is the file-relative
// line number, stmt the cumulative statement count across all files.
func (lw *Writer) Line(suppress Suppress, addr uint16, data []byte, line, stmt int, source string) {
	if !lw.enabled || suppress == Nothing {
		return
	}
	if lw.lineOnPage == 0 || lw.lineOnPage >= lw.ppl {
		if lw.lineOnPage >= lw.ppl {
			lw.page++
		}
		lw.header()
	}

	addrCol := fmt.Sprintf("%04X", addr)
	if suppress == NoAddrData || suppress == LabelOnly {
		addrCol = "    "
	}

	dataCol := formatData(data)
	if suppress == NoData || suppress == NoAddrData || suppress == LabelOnly {
		dataCol = ""
	}

	if suppress == LabelOnly {
		fmt.Fprintf(lw.w, "%s %-11s %5d %5d\n", addrCol, dataCol, line, stmt)
	} else {
		fmt.Fprintf(lw.w, "%s %-11s %5d %5d  %s\n", addrCol, dataCol, line, stmt, source)
	}
	lw.lineOnPage++

	if lw.pendingErr != "" {
		fmt.Fprintf(lw.w, "**** %s\n", lw.pendingErr)
		lw.pendingErr = ""
		lw.lineOnPage++
	}

	for rest := data; len(rest) > 4; {
		rest = rest[4:]
		addr += 4
		if len(rest) == 0 {
			break
		}
		if lw.lineOnPage >= lw.ppl {
			lw.page++
			lw.header()
		}
		fmt.Fprintf(lw.w, "%04X %-11s\n", addr, formatData(rest))
		lw.lineOnPage++
	}
}

// formatData renders up to 4 object bytes as space-separated hex pairs
// for the fixed-width data column.
func formatData(data []byte) string {
	n := len(data)
	if n > 4 {
		n = 4
	}
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%02X", data[i])
	}
	return s
}

// WriteSymbolTable appends the sorted symbol-table appendix, four
// "name value" columns per row. byValue selects
// symtab.SortByValue over the default SortByName.
func WriteSymbolTable(w io.Writer, syms []symtab.Symbol, byValue bool) {
	if byValue {
		symtab.SortByValue(syms)
	} else {
		symtab.SortByName(syms)
	}

	fmt.Fprintf(w, "\nSYMBOL TABLE\n\n")
	const cols = 4
	for i := 0; i < len(syms); i += cols {
		for c := 0; c < cols && i+c < len(syms); c++ {
			s := syms[i+c]
			fmt.Fprintf(w, "%-8s %04X   ", s.Name, uint16(s.Value))
		}
		fmt.Fprintln(w)
	}
}
