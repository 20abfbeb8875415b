// =============================================================================
// translate.go - REPL Input Translation
// =============================================================================
//
// Turns a line typed at the REPL prompt into a replAction the loop executes.
//
// Examples:
//   "hello"                      → define "hello" in the current database
//   "ice cream"                  → define the phrase "ice cream"
//   ".match hel prefix"          → match "hel" with strategy prefix
//   ".define \"ice cream\" wn"   → define the phrase in database wn
//   ".db wn"                     → make wn the current database
//
// Dot-command arguments are split with the same quoting rules as DICT atoms,
// so a phrase can be passed by quoting it.
//
// =============================================================================

package main

import (
	"fmt"
	"strings"

	"github.com/attic/dict/dictprotocol"
)

// GO CONCEPT: Enumerations with iota
// ----------------------------------
// Go has no enum keyword. A named integer type plus a const block using iota
// gives each action a distinct value; adding a kind in the middle renumbers
// the rest automatically.

// actionKind identifies what a REPL line asks for.
type actionKind int

const (
	actionNone actionKind = iota
	actionDefine
	actionMatch
	actionSetDatabase
	actionSetStrategy
	actionDatabases
	actionStrategies
	actionInfo
	actionServer
	actionHelp
	actionQuit
	actionInvalid
)

// replAction is a parsed REPL line. Empty database or strategy fields mean
// "use the current setting".
type replAction struct {
	kind     actionKind
	word     string
	database string
	strategy string

	// arg is the help topic, or the new name for .db and .strategy.
	arg string

	// message explains an actionInvalid.
	message string
}

// commandAliases maps every accepted dot-command spelling to its kind.
var commandAliases = map[string]actionKind{
	"define":     actionDefine,
	"d":          actionDefine,
	"match":      actionMatch,
	"m":          actionMatch,
	"db":         actionSetDatabase,
	"database":   actionSetDatabase,
	"strategy":   actionSetStrategy,
	"strat":      actionSetStrategy,
	"databases":  actionDatabases,
	"dbs":        actionDatabases,
	"strategies": actionStrategies,
	"strats":     actionStrategies,
	"info":       actionInfo,
	"server":     actionServer,
	"help":       actionHelp,
	"h":          actionHelp,
	"?":          actionHelp,
	"quit":       actionQuit,
	"exit":       actionQuit,
	"q":          actionQuit,
}

// translateInput parses one REPL line.
func translateInput(line string) replAction {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return replAction{kind: actionNone}
	}

	if !strings.HasPrefix(trimmed, ".") {
		return replAction{kind: actionDefine, word: trimmed}
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	name = strings.ToLower(name)
	kind, ok := commandAliases[name]
	if !ok {
		return invalid("unknown command '.%s'. Type .help for available commands.", name)
	}
	args := dictprotocol.SplitAtoms(rest)

	switch kind {
	case actionDefine:
		if len(args) < 1 || len(args) > 2 {
			return invalid("usage: .define <word> [database]")
		}
		a := replAction{kind: actionDefine, word: args[0]}
		if len(args) == 2 {
			a.database = args[1]
		}
		return a

	case actionMatch:
		if len(args) < 1 || len(args) > 3 {
			return invalid("usage: .match <word> [strategy] [database]")
		}
		a := replAction{kind: actionMatch, word: args[0]}
		if len(args) >= 2 {
			a.strategy = args[1]
		}
		if len(args) == 3 {
			a.database = args[2]
		}
		return a

	case actionSetDatabase, actionSetStrategy, actionInfo, actionHelp:
		if len(args) > 1 {
			return invalid("usage: .%s [%s]", name, argName(kind))
		}
		a := replAction{kind: kind}
		if len(args) == 1 {
			a.arg = args[0]
		}
		return a

	default:
		if len(args) != 0 {
			return invalid(".%s takes no arguments", name)
		}
		return replAction{kind: kind}
	}
}

func argName(kind actionKind) string {
	switch kind {
	case actionHelp:
		return "topic"
	case actionSetStrategy:
		return "strategy"
	default:
		return "database"
	}
}

func invalid(format string, args ...any) replAction {
	return replAction{kind: actionInvalid, message: fmt.Sprintf(format, args...)}
}
