package progress

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const fallbackWidth = 80

type fdWriter interface {
	Fd() uintptr
}

func SupportsInPlaceUpdates(dst io.Writer) bool {
	file, ok := dst.(fdWriter)
	if !ok {
		return false
	}
	if strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

// OutputWidth is the terminal width capped at maxWidth, or 80 columns when the
// width cannot be queried.
func OutputWidth(dst io.Writer, maxWidth int) int {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	width := fallbackWidth
	if file, ok := dst.(fdWriter); ok {
		if columns, _, err := term.GetSize(int(file.Fd())); err == nil && columns > 0 {
			width = columns
		}
	}
	if width > maxWidth {
		width = maxWidth
	}
	return width
}
