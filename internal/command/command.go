// Package command defines the records carried on the command channel and
// the text protocol operators type into a front end.
package command

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
	ErrParse          = errors.New("parse error")
	ErrTooLong        = errors.New("command too long")
)

// MaxLineLen is the longest command line accepted, in bytes.
const MaxLineLen = 80

type Verb string

const (
	Run    Verb = "run"
	Kill   Verb = "kill"
	Stop   Verb = "stop"
	Resume Verb = "resume"
	List   Verb = "list"
	Exit   Verb = "exit"
)

// Verbs lists the accepted verbs in help order.
var Verbs = []Verb{Run, Stop, Resume, Kill, List, Exit}

// Valid reports whether v is a known verb.
func (v Verb) Valid() bool {
	switch v {
	case Run, Kill, Stop, Resume, List, Exit:
		return true
	}
	return false
}

// Command is one parsed operator request.
//
// Argv is set for Run, PID for Kill/Stop/Resume. Reply, when non-nil,
// receives exactly one Result and must be buffered.
type Command struct {
	Verb   Verb
	Argv   []string
	PID    int
	Source string
	Reply  chan<- Result
}

// Args returns the arguments in text form (argv for run, the pid otherwise).
func (c Command) Args() []string {
	switch c.Verb {
	case Run:
		return c.Argv
	case Kill, Stop, Resume:
		return []string{strconv.Itoa(c.PID)}
	}
	return nil
}

func (c Command) String() string {
	return strings.TrimSpace(string(c.Verb) + " " + strings.Join(c.Args(), " "))
}

// Result is the scheduler's answer to a Command.
type Result struct {
	Text string
	Err  error
}

// Respond delivers r on c.Reply without blocking.
func (c Command) Respond(r Result) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- r:
	default:
	}
}
