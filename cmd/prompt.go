package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers line by line. At end of input every question gets
// its default, so piped or closed stdin never blocks.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
	eof bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

// ask prints label and returns the trimmed answer, or def when it is empty.
func (p *prompter) ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if p.eof || !p.in.Scan() {
		p.eof = true
		fmt.Fprintln(p.out)
		return def
	}
	if ans := strings.TrimSpace(p.in.Text()); ans != "" {
		return ans
	}
	return def
}

// confirm asks a yes/no question; anything but y or yes is no.
func (p *prompter) confirm(label string) bool {
	switch strings.ToLower(p.ask(label+" (y/N)", "")) {
	case "y", "yes":
		return true
	}
	return false
}

// splitList turns "a, b ,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
