// Package prompt asks the user for missing or rejected connection settings.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/bastienmichaux/db-importer-sub000/internal/failure"
	"github.com/bastienmichaux/db-importer-sub000/internal/logger"
	"github.com/bastienmichaux/db-importer-sub000/pkg/config"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("prompt aborted")

// Prompter asks one question. An empty answer selects def.
type Prompter interface {
	Ask(label, def string, secret bool) (string, error)
}

// ConnectionFields are asked, in this order, when Fill gets no field list.
var ConnectionFields = []string{
	config.FieldType,
	config.FieldHost,
	config.FieldPort,
	config.FieldUser,
	config.FieldPassword,
	config.FieldDatabase,
}

// IsInteractive reports whether stdin and stderr are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// Terminal is a Prompter reading from the controlling terminal.
type Terminal struct {
	rl *readline.Instance
}

// NewTerminal returns a Terminal writing its prompts to stderr.
func NewTerminal() (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		HistoryLimit:    -1,
		Stdout:          os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt: %w", err)
	}
	return &Terminal{rl: rl}, nil
}

// Close restores the terminal state.
func (t *Terminal) Close() error {
	return t.rl.Close()
}

// Ask reads one line, without echo when secret is set. Ctrl-C and EOF
// return ErrAborted.
func (t *Terminal) Ask(label, def string, secret bool) (string, error) {
	var (
		answer string
		err    error
	)
	if secret {
		var b []byte
		b, err = t.rl.ReadPassword(label + ": ")
		answer = string(b)
	} else {
		if def != "" {
			t.rl.SetPrompt(fmt.Sprintf("%s [%s]: ", label, def))
		} else {
			t.rl.SetPrompt(label + ": ")
		}
		answer, err = t.rl.Readline()
		answer = strings.TrimSpace(answer)
	}
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

func label(field string) string {
	switch field {
	case config.FieldType:
		return "Database type (mysql, postgres, sqlserver, sqlite)"
	case config.FieldDatabase:
		return "Database name"
	default:
		return strings.ToUpper(field[:1]) + field[1:]
	}
}

// Fill asks for each named field and returns cfg with the answers applied.
// The current value is offered as the default, except for the password.
// An empty fields list asks every ConnectionFields entry. cfg is not modified.
func Fill(cfg config.DBConfig, p Prompter, fields []string) (config.DBConfig, error) {
	if len(fields) == 0 {
		fields = ConnectionFields
	}
	out := cfg
	for _, f := range fields {
		switch f {
		case config.FieldType:
			v, err := p.Ask(label(f), out.Type, false)
			if err != nil {
				return cfg, err
			}
			out.Type = v
		case config.FieldHost:
			v, err := p.Ask(label(f), out.Host, false)
			if err != nil {
				return cfg, err
			}
			out.Host = v
		case config.FieldPort:
			def := ""
			if port := out.Port; port != 0 {
				def = strconv.Itoa(port)
			} else if port := config.DefaultPort(out.Type); port != 0 {
				def = strconv.Itoa(port)
			}
			v, err := p.Ask(label(f), def, false)
			if err != nil {
				return cfg, err
			}
			port, err := strconv.Atoi(v)
			if err != nil || port < 1 || port > 65535 {
				return cfg, failure.New(failure.InvalidArgument, "invalid port %q", v)
			}
			out.Port = port
		case config.FieldUser:
			v, err := p.Ask(label(f), out.Username, false)
			if err != nil {
				return cfg, err
			}
			out.Username = v
		case config.FieldPassword:
			v, err := p.Ask(label(f), "", true)
			if err != nil {
				return cfg, err
			}
			out.Password = v
		case config.FieldDatabase:
			v, err := p.Ask(label(f), out.DatabaseName, false)
			if err != nil {
				return cfg, err
			}
			out.DatabaseName = v
		case config.FieldSchema:
			v, err := p.Ask(label(f), out.Schema, false)
			if err != nil {
				return cfg, err
			}
			out.Schema = v
		default:
			return cfg, fmt.Errorf("unknown connection field %q", f)
		}
	}
	return out, nil
}

// Repair calls connect until it succeeds, at most attempts times. After a
// ConnectionError it re-asks only the fields the error implicates. Any
// other error, a configuration given as a DSN, a nil p or a cancelled ctx
// ends the loop with the last error. It returns the configuration that
// connected.
func Repair(ctx context.Context, cfg config.DBConfig, p Prompter, connect func(config.DBConfig) error, attempts int) (config.DBConfig, error) {
	for attempt := 1; ; attempt++ {
		err := connect(cfg)
		if err == nil {
			return cfg, nil
		}
		fields := failure.FieldsOf(err)
		if p == nil || attempt >= attempts || cfg.DSN != "" || len(fields) == 0 ||
			!failure.Is(err, failure.ConnectionError) || ctx.Err() != nil {
			return cfg, err
		}
		logger.Warn("connection failed (%d/%d): %v", attempt, attempts, err)
		if cfg, err = Fill(cfg, p, fields); err != nil {
			return cfg, err
		}
	}
}
