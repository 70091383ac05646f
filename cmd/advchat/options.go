package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/skobkin/advchat/internal/domain"
)

const (
	cmdListen  = "listen"
	cmdSend    = "send"
	cmdMessage = "message"
	cmdHistory = "history"
	cmdPeers   = "peers"
	cmdPorts   = "ports"
	cmdClear   = "clear"
	cmdVersion = "version"

	defaultHistoryLimit = 50
)

var errUsage = errors.New("usage: advchat <listen|send|message|history|peers|ports|clear|version> [flags]")

type command struct {
	Name string

	// listen
	AllowDuplicates bool
	ListenFor       time.Duration
	NoPing          bool

	// send and message
	To   string
	Text string

	// history
	Filter domain.MessageFilter
	Limit  int

	// clear
	ResetSequence bool
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errUsage
	}
	cmd := command{Name: args[0]}
	fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var kind, since, until string
	switch cmd.Name {
	case cmdListen:
		fs.BoolVar(&cmd.AllowDuplicates, "duplicates", false, "ask the controller for duplicate reports")
		fs.DurationVar(&cmd.ListenFor, "for", 0, "listen duration, e.g. 30s")
		fs.BoolVar(&cmd.NoPing, "no-ping", false, "do not announce this node")
	case cmdMessage:
		fs.StringVar(&cmd.To, "to", "", "destination callsign or group")
	case cmdHistory:
		fs.StringVar(&kind, "kind", "", "TXT, MSG or PNG")
		fs.StringVar(&cmd.Filter.Contains, "contains", "", "case-sensitive substring of the body")
		fs.StringVar(&since, "since", "", "inclusive lower bound, RFC 3339 or YYYY-MM-DD")
		fs.StringVar(&until, "until", "", "inclusive upper bound, RFC 3339 or YYYY-MM-DD")
		fs.IntVar(&cmd.Limit, "limit", defaultHistoryLimit, "maximum records, 0 for all")
	case cmdClear:
		fs.BoolVar(&cmd.ResetSequence, "reset-seq", false, "restart message ids from 1")
	case cmdSend, cmdPeers, cmdPorts, cmdVersion:
	default:
		return command{}, fmt.Errorf("unknown command %q: %w", cmd.Name, errUsage)
	}

	if err := fs.Parse(args[1:]); err != nil {
		return command{}, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	rest := fs.Args()

	switch cmd.Name {
	case cmdSend, cmdMessage:
		cmd.Text = strings.TrimSpace(strings.Join(rest, " "))
		if cmd.Text == "" {
			return command{}, fmt.Errorf("%s: text is required", cmd.Name)
		}
		if cmd.Name == cmdMessage && strings.TrimSpace(cmd.To) == "" {
			return command{}, fmt.Errorf("%s: -to is required", cmd.Name)
		}
		return cmd, nil
	case cmdHistory:
		if kind != "" {
			parsed, ok := domain.ParseMessageKind(kind)
			if !ok {
				return command{}, fmt.Errorf("history: unknown kind %q", kind)
			}
			cmd.Filter.Kind = parsed
		}
		var err error
		if cmd.Filter.Since, err = parseTimeBound(since, false); err != nil {
			return command{}, fmt.Errorf("history: -since: %w", err)
		}
		if cmd.Filter.Until, err = parseTimeBound(until, true); err != nil {
			return command{}, fmt.Errorf("history: -until: %w", err)
		}
		if cmd.Limit < 0 {
			return command{}, fmt.Errorf("history: -limit must not be negative")
		}
	}
	if len(rest) > 0 {
		return command{}, fmt.Errorf("%s: unexpected arguments: %v", cmd.Name, rest)
	}

	return cmd, nil
}

// parseTimeBound accepts RFC 3339 or a local date. A date used as an upper
// bound covers the whole day.
func parseTimeBound(raw string, upper bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: expected RFC 3339 or YYYY-MM-DD", raw)
	}
	if upper {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}

	return day, nil
}
