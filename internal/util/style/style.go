package style

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var (
	// Respect https://no-color.org/.
	noColor = os.Getenv("NO_COLOR") != ""

	isErrTTY   = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	isErrColor = isErrTTY && !noColor
)

func IsStderrTTY() bool { return isErrTTY }

// LogOutput returns the writer for process logs. On Windows consoles ANSI sequences emitted by
// the log handler are translated by go-colorable; elsewhere it is plain stderr.
func LogOutput() io.Writer {
	if isErrColor {
		return colorable.NewColorableStderr()
	}
	return colorable.NewNonColorable(os.Stderr)
}

func doS(ms []int) string {
	if len(ms) == 0 {
		return "\033[0m"
	}
	b := []byte("\033[")
	for i, m := range ms {
		if i != 0 {
			b = append(b, ';')
		}
		b = appendInt(b, m)
	}
	return string(append(b, 'm'))
}

func appendInt(b []byte, v int) []byte {
	if v >= 10 {
		b = appendInt(b, v/10)
	}
	return append(b, byte('0'+v%10))
}

// SE returns the escape sequence for the given SGR codes if stderr supports color.
func SE(ms ...int) string {
	if isErrColor {
		return doS(ms)
	}
	return ""
}

func WithSE(s string, ms ...int) string { return SE(ms...) + s + SE() }
