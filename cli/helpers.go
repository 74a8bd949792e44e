package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnsureDir creates the data directory with owner-only permissions.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o700)
}

// LineReader reads one line of PIN input; ok is false when the user
// aborted (empty line or EOF).
type LineReader func(prompt string) (line string, ok bool, err error)

// TerminalPINReader reads PINs from the terminal without echo, printing a
// '*' per digit. Non-digits are ignored and input stops at four digits'
// worth of keystrokes plus Enter. When stdin is not a terminal it falls
// back to plain line reads.
func TerminalPINReader(in *os.File, out io.Writer) LineReader {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return PlainLineReader(in, out)
	}
	return func(prompt string) (string, bool, error) {
		fmt.Fprint(out, prompt)
		state, err := term.MakeRaw(fd)
		if err != nil {
			return "", false, err
		}
		defer term.Restore(fd, state)

		var input []byte
		for {
			var buf [1]byte
			if _, err := in.Read(buf[:]); err != nil {
				fmt.Fprint(out, "\r\n")
				return "", false, nil
			}
			switch c := buf[0]; {
			case c == '\r' || c == '\n':
				fmt.Fprint(out, "\r\n")
				return string(input), len(input) > 0, nil
			case c == 3 || c == 27: // ctrl+c, esc
				fmt.Fprint(out, "\r\n")
				return "", false, nil
			case c == 127 || c == 8:
				if len(input) > 0 {
					input = input[:len(input)-1]
					fmt.Fprint(out, "\b \b")
				}
			case c >= '0' && c <= '9' && len(input) < 4:
				input = append(input, c)
				fmt.Fprint(out, "*")
			}
		}
	}
}

// PlainLineReader reads whole lines from r. A *bufio.Reader is used as is,
// so r can be shared with another line consumer.
func PlainLineReader(r io.Reader, out io.Writer) LineReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return func(prompt string) (string, bool, error) {
		fmt.Fprint(out, prompt)
		line, err := br.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			if err == io.EOF {
				return "", false, nil
			}
			return "", false, err
		}
		return line, line != "", nil
	}
}
