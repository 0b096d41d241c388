package command

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want Command
		err  error
	}{
		{name: "run", line: "run sleep 5", want: Command{Verb: Run, Argv: []string{"sleep", "5"}}},
		{name: "run quoted", line: `run echo "hi there"`, want: Command{Verb: Run, Argv: []string{"echo", "hi there"}}},
		{name: "run empty quoted arg", line: `run printf ''`, want: Command{Verb: Run, Argv: []string{"printf", ""}}},
		{name: "verb case", line: "  LIST ", want: Command{Verb: List}},
		{name: "kill", line: "kill 42", want: Command{Verb: Kill, PID: 42}},
		{name: "stop", line: "stop 7", want: Command{Verb: Stop, PID: 7}},
		{name: "resume", line: "resume 9", want: Command{Verb: Resume, PID: 9}},
		{name: "exit", line: "exit", want: Command{Verb: Exit}},
		{name: "run without program", line: "run", err: ErrBadArgument},
		{name: "zero pid", line: "kill 0", err: ErrBadArgument},
		{name: "negative pid", line: "stop -3", err: ErrBadArgument},
		{name: "non-numeric pid", line: "resume abc", err: ErrBadArgument},
		{name: "missing pid", line: "kill", err: ErrBadArgument},
		{name: "extra args", line: "list all", err: ErrBadArgument},
		{name: "unknown", line: "launch x", err: ErrUnknownCommand},
		{name: "empty", line: "   ", err: ErrParse},
		{name: "unterminated quote", line: `run echo "oops`, err: ErrParse},
		{name: "too long", line: "run " + strings.Repeat("a", MaxLineLen), err: ErrTooLong},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.line)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.line, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.line, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestTooLongIsAParseError(t *testing.T) {
	_, err := Parse(strings.Repeat("x", MaxLineLen+1))
	if !errors.Is(err, ErrParse) || !errors.Is(err, ErrTooLong) {
		t.Fatalf("err = %v, want ErrParse and ErrTooLong", err)
	}
}

func TestCommandString(t *testing.T) {
	if got := (Command{Verb: Run, Argv: []string{"sleep", "5"}}).String(); got != "run sleep 5" {
		t.Fatalf("String() = %q", got)
	}
	if got := (Command{Verb: Kill, PID: 12}).String(); got != "kill 12" {
		t.Fatalf("String() = %q", got)
	}
	if got := (Command{Verb: List}).String(); got != "list" {
		t.Fatalf("String() = %q", got)
	}
}

func TestRespondNeverBlocks(t *testing.T) {
	reply := make(chan Result, 1)
	c := Command{Verb: List, Reply: reply}
	c.Respond(Result{Text: "first"})
	c.Respond(Result{Text: "second"})
	if r := <-reply; r.Text != "first" {
		t.Fatalf("reply = %q", r.Text)
	}
	Command{Verb: List}.Respond(Result{})
}
