package editor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user for a line of text. ok is false when the prompt was dismissed.
type Prompter interface {
	Prompt(message, initial string) (value string, ok bool)
}

type PrompterFunc func(message, initial string) (string, bool)

func (f PrompterFunc) Prompt(message, initial string) (string, bool) { return f(message, initial) }

// LinePrompter prompts on Out and reads the answer from In. An empty answer keeps the initial
// value; end of input dismisses the prompt.
type LinePrompter struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

func (p *LinePrompter) Prompt(message, initial string) (string, bool) {
	if p.r == nil {
		p.r = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "%s [%s] ", message, initial)
	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return initial, true
	}
	return line, true
}
