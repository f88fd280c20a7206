package main

import (
	"io"
	"os"

	"golang.org/x/term"
)

// marks holds the status symbols for one output stream. Colors are only
// used when the stream is a terminal.
type marks struct {
	check, cross string
}

func marksFor(w io.Writer) marks {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return marks{check: "\033[32m✓\033[0m", cross: "\033[31m✗\033[0m"}
	}
	return marks{check: "✓", cross: "✗"}
}
