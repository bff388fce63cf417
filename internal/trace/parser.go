package trace

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Kind names a script command.
type Kind string

const (
	KindNavigate   Kind = "navigate"
	KindBack       Kind = "back"
	KindForward    Kind = "forward"
	KindSync       Kind = "sync"
	KindClick      Kind = "click"
	KindRegister   Kind = "register"
	KindPermission Kind = "permission"
	KindSettle     Kind = "settle"
)

// Command is one line of a navigation script.
type Command struct {
	Line   int
	Kind   Kind
	Target string        // navigate/click target or registered path
	Title  string        // register
	Hidden bool          // register
	Delay  time.Duration // navigate
	Allow  bool          // permission
	Raw    string
}

// SyntaxError reports a malformed script line.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("script line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// Parser reads navigation scripts, one command per line:
//
//	navigate /docs 200ms
//	click action::logout
//	register /late "Late page" hidden
//	permission deny
//	# comment
type Parser struct {
	re *regexp.Regexp
}

// NewParser creates a Parser.
func NewParser() *Parser {
	// Fields are whitespace separated; a double-quoted field may contain spaces.
	return &Parser{
		re: regexp.MustCompile(`"([^"]*)"|(\S+)`),
	}
}

// Parse reads the script and returns a channel of Commands.
// It runs asynchronously. Parsing stops at the first malformed line, whose
// error is sent on the error channel.
func (p *Parser) Parse(r io.Reader) (chan Command, chan error) {
	commands := make(chan Command)
	errs := make(chan error, 1) // Buffered to avoid blocking if receiver stops

	go func() {
		defer close(commands)
		defer close(errs)

		scanner := bufio.NewScanner(r)
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			text := strings.TrimSpace(scanner.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}

			cmd, err := p.parseLine(lineNum, text)
			if err != nil {
				errs <- err
				return
			}
			commands <- cmd
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	return commands, errs
}

// ParseAll collects every command of a script.
func (p *Parser) ParseAll(r io.Reader) ([]Command, error) {
	commands, errs := p.Parse(r)
	var out []Command
	for cmd := range commands {
		out = append(out, cmd)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}

func (p *Parser) fields(text string) []string {
	var out []string
	for _, m := range p.re.FindAllStringSubmatch(text, -1) {
		if m[2] != "" {
			out = append(out, m[2])
		} else {
			out = append(out, m[1])
		}
	}
	return out
}

func (p *Parser) parseLine(lineNum int, text string) (Command, error) {
	fields := p.fields(text)
	cmd := Command{Line: lineNum, Kind: Kind(strings.ToLower(fields[0])), Raw: text}
	args := fields[1:]
	fail := func(msg string) (Command, error) {
		return Command{}, &SyntaxError{Line: lineNum, Text: text, Msg: msg}
	}

	switch cmd.Kind {
	case KindNavigate:
		if len(args) < 1 || len(args) > 2 {
			return fail("navigate takes a path and an optional delay")
		}
		cmd.Target = args[0]
		if len(args) == 2 {
			d, err := time.ParseDuration(args[1])
			if err != nil || d < 0 {
				return fail("invalid delay")
			}
			cmd.Delay = d
		}

	case KindClick:
		if len(args) != 1 {
			return fail("click takes one href")
		}
		cmd.Target = args[0]

	case KindRegister:
		if len(args) < 2 || len(args) > 3 {
			return fail("register takes a path, a title and an optional 'hidden'")
		}
		cmd.Target, cmd.Title = args[0], args[1]
		if len(args) == 3 {
			if !strings.EqualFold(args[2], "hidden") {
				return fail("expected 'hidden'")
			}
			cmd.Hidden = true
		}

	case KindPermission:
		if len(args) != 1 {
			return fail("permission takes allow or deny")
		}
		switch strings.ToLower(args[0]) {
		case "allow":
			cmd.Allow = true
		case "deny":
			cmd.Allow = false
		default:
			return fail("permission takes allow or deny")
		}

	case KindBack, KindForward, KindSync, KindSettle:
		if len(args) != 0 {
			return fail(string(cmd.Kind) + " takes no arguments")
		}

	default:
		return fail("unknown command")
	}
	return cmd, nil
}
