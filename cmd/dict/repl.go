// =============================================================================
// repl.go - REPL Loop
// =============================================================================
//
// The REPL keeps one DICT session open and runs each input line against it.
// The prompt shows the current database and strategy:
//
//	[*/.] > hello
//	[*/.] > .db wn
//	[wn/.] > .match hel prefix
//
// A failed command is reported and the loop continues. Once the session
// itself is broken (connection lost or the response stream desynchronized),
// the loop ends with that error.
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/attic/dict/dictprotocol"
)

// GO CONCEPT: Interfaces Defined by the Consumer
// ----------------------------------------------
// dictprotocol never declares an interface for Session. The REPL declares
// the few methods it calls, *dictprotocol.Session satisfies them implicitly,
// and tests substitute a fakeSession without a server.

// dictSession is the part of *dictprotocol.Session the REPL uses.
type dictSession interface {
	Definitions(word string, database dictprotocol.Database) ([]dictprotocol.Definition, error)
	Matches(word string, strategy dictprotocol.Strategy, database dictprotocol.Database) (*dictprotocol.MatchSet, error)
	Databases() (map[string]dictprotocol.Database, error)
	Strategies() (*dictprotocol.StrategySet, error)
	DatabaseInfo(database dictprotocol.Database) (string, error)
	ServerInfo() (string, error)
	Err() error
}

// lineReader supplies input lines.
type lineReader interface {
	GetLine(prompt string) (string, error)
}

// replState holds the settings a REPL user can change.
type replState struct {
	database string
	strategy string
}

func newREPLState(database, strategy string) *replState {
	if database == "" {
		database = dictprotocol.AllDatabasesName
	}
	if strategy == "" {
		strategy = dictprotocol.DefaultStrategyName
	}
	return &replState{database: database, strategy: strategy}
}

// prompt returns the display prompt, e.g. "[wn/prefix] > ".
func (s *replState) prompt() string {
	return fmt.Sprintf("[%s/%s] > ", s.database, s.strategy)
}

// runREPL reads and executes lines until .quit or end of input. It returns
// an error only when the session can no longer be used.
func runREPL(editor lineReader, session dictSession, r *renderer, state *replState, out, errOut io.Writer) error {
	for {
		line, err := editor.GetLine(state.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		action := translateInput(line)
		switch action.kind {
		case actionNone:
			continue
		case actionQuit:
			return nil
		case actionHelp:
			printHelp(out, errOut, action.arg)
			continue
		case actionInvalid:
			printError(errOut, action.message)
			continue
		case actionSetDatabase:
			if action.arg != "" {
				state.database = action.arg
			}
			fmt.Fprintf(out, "Database: %s\n", state.database)
			continue
		case actionSetStrategy:
			if action.arg != "" {
				if err := selectStrategy(session, state, action.arg); err != nil {
					if broken := session.Err(); broken != nil {
						return fmt.Errorf("connection lost: %w", broken)
					}
					printError(errOut, err.Error())
					continue
				}
			}
			fmt.Fprintf(out, "Strategy: %s\n", state.strategy)
			continue
		}

		if err := execute(action, session, r, state); err != nil {
			if broken := session.Err(); broken != nil {
				return fmt.Errorf("connection lost: %w", broken)
			}
			printError(errOut, err.Error())
		}
	}
}

// selectStrategy makes name the current strategy if the server offers it.
// "." always passes, as does any name when the server lists no strategies.
func selectStrategy(session dictSession, state *replState, name string) error {
	if name == dictprotocol.DefaultStrategyName {
		state.strategy = name
		return nil
	}

	strategies, err := session.Strategies()
	if err != nil {
		return err
	}
	if strategies.Len() > 0 {
		if _, ok := strategies.Get(name); !ok {
			return fmt.Errorf("unknown strategy '%s'. Type .strategies for available strategies.", name)
		}
	}
	state.strategy = name
	return nil
}

// execute runs an action that needs the server.
func execute(action replAction, session dictSession, r *renderer, state *replState) error {
	database := dictprotocol.NewDatabase(orDefault(action.database, state.database))

	switch action.kind {
	case actionDefine:
		defs, err := session.Definitions(action.word, database)
		if err != nil {
			return err
		}
		return r.Definitions(action.word, defs)

	case actionMatch:
		strategy := dictprotocol.NewStrategy(orDefault(action.strategy, state.strategy))
		matches, err := session.Matches(action.word, strategy, database)
		if err != nil {
			return err
		}
		return r.Matches(action.word, matches)

	case actionDatabases:
		dbs, err := session.Databases()
		if err != nil {
			return err
		}
		return r.Databases(dbs)

	case actionStrategies:
		strategies, err := session.Strategies()
		if err != nil {
			return err
		}
		return r.Strategies(strategies)

	case actionInfo:
		name := orDefault(action.arg, state.database)
		text, err := session.DatabaseInfo(dictprotocol.NewDatabase(name))
		if err != nil {
			return err
		}
		return r.Text(name, text)

	case actionServer:
		text, err := session.ServerInfo()
		if err != nil {
			return err
		}
		return r.Text("server", text)

	default:
		return fmt.Errorf("unsupported action %d", action.kind)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
