package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse turns one text line into a Command.
//
//	run <program> [args...]
//	kill|stop|resume <pid>
//	list
//	exit
func Parse(line string) (Command, error) {
	if len(line) > MaxLineLen {
		return Command{}, fmt.Errorf("%w: %w: %d bytes (max %d)", ErrParse, ErrTooLong, len(line), MaxLineLen)
	}
	toks, err := Tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(toks) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrParse)
	}

	verb := Verb(strings.ToLower(toks[0]))
	args := toks[1:]
	switch verb {
	case Run:
		if len(args) == 0 {
			return Command{}, fmt.Errorf("%w: run needs a program", ErrBadArgument)
		}
		return Command{Verb: Run, Argv: args}, nil
	case Kill, Stop, Resume:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("%w: %s needs exactly one pid", ErrBadArgument, verb)
		}
		pid, err := ParsePID(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Verb: verb, PID: pid}, nil
	case List, Exit:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrBadArgument, verb)
		}
		return Command{Verb: verb}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q (valid: run, stop, resume, kill, list, exit)", ErrUnknownCommand, toks[0])
	}
}

// ParsePID accepts a positive decimal process identifier.
func ParsePID(s string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: the process ID must be a positive integer, got %q", ErrBadArgument, s)
	}
	return pid, nil
}

// Tokenize splits a command line on whitespace, honoring single and
// double quotes and backslash escapes.
//
//	run printf "%s\n" 'two words'
func Tokenize(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var (
		out    []string
		buf    strings.Builder
		inQ    bool
		qChar  byte
		esc    bool
		quoted bool
	)
	flush := func() {
		if buf.Len() > 0 || quoted {
			out = append(out, buf.String())
			buf.Reset()
		}
		quoted = false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if esc {
			buf.WriteByte(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '"', '\'':
			inQ = true
			quoted = true
			qChar = ch
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteByte(ch)
		}
	}
	if inQ {
		return nil, fmt.Errorf("%w: unterminated quote", ErrParse)
	}
	if esc {
		return nil, fmt.Errorf("%w: trailing backslash", ErrParse)
	}
	flush()
	return out, nil
}
