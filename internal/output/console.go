package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// SeparatorWidth is the length of the dashed line closing every tick.
const SeparatorWidth = 60

// Console prints one block per tick: a timestamp line, every section of the
// tick separated by a blank line, and a dashed separator.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	heading func(a ...interface{}) string
}

// NewConsole writes to w. Header rows are styled when colorize is set.
func NewConsole(w io.Writer, colorize bool) *Console {
	c := &Console{w: w}
	if colorize {
		style := color.New(color.FgCyan, color.Bold)
		style.EnableColor()
		c.heading = style.SprintFunc()
	}
	return c
}

// ShouldColorize reports whether w is a terminal that accepts colors.
func ShouldColorize(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintTick prints the sections gathered during one tick. The console is a
// synchronous writer; an error here only means the terminal went away.
func (c *Console) PrintTick(at time.Time, sections []Section) error {
	if len(sections) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := fmt.Fprintln(c.w, at.Format(time.ANSIC)); err != nil {
		return err
	}
	for i, sec := range sections {
		if i > 0 {
			if _, err := fmt.Fprintln(c.w); err != nil {
				return err
			}
		}
		if err := WriteSection(c.w, sec, c.heading); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(c.w, strings.Repeat("-", SeparatorWidth))
	return err
}
