// =============================================================================
// help.go - REPL Help System
// =============================================================================
//
// ".help" prints the command overview; ".help <topic>" prints detailed help
// for one command. Topics are matched case-insensitively, with or without the
// leading dot, and aliases resolve to their command (".help m" → match).
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"strings"
)

// printHelp prints the overview when topic is empty, otherwise the help for
// that topic. Unknown topics are reported on errOut.
func printHelp(out, errOut io.Writer, topic string) {
	if topic == "" {
		fmt.Fprint(out, helpOverview)
		return
	}

	key := strings.TrimPrefix(strings.ToLower(topic), ".")
	if text, ok := commandHelp[helpKey(key)]; ok {
		fmt.Fprintln(out, text)
		return
	}

	printError(errOut, fmt.Sprintf("No help for '%s'. Type .help to see available commands.", topic))
}

// helpKey resolves an alias to the canonical command name.
func helpKey(key string) string {
	kind, ok := commandAliases[key]
	if !ok {
		return key
	}
	for name, k := range canonicalNames {
		if k == kind {
			return name
		}
	}
	return key
}

// canonicalNames maps each command's help key to its action.
var canonicalNames = map[string]actionKind{
	"define":     actionDefine,
	"match":      actionMatch,
	"db":         actionSetDatabase,
	"strategy":   actionSetStrategy,
	"databases":  actionDatabases,
	"strategies": actionStrategies,
	"info":       actionInfo,
	"server":     actionServer,
	"help":       actionHelp,
	"quit":       actionQuit,
}

const helpOverview = `Lookups:
  <word or phrase>            Define in the current database
  .define <word> [db]         Define in db (default: current database)
  .match <word> [strat] [db]  List headwords matching word

Settings:
  .db [name]                  Show or set the current database
  .strategy [name]            Show or set the current match strategy

Server:
  .databases                  List databases
  .strategies                 List match strategies
  .info [db]                  Show database information
  .server                     Show server information

Other:
  .help [cmd]                 Show help (or help for a specific command)
  .quit                       Exit (also Ctrl-D)
`

// commandHelp contains detailed help keyed by command name without the dot.
var commandHelp = map[string]string{
	"define": `  .define <word> [database]
    Print every definition of word. Without a database the current one is
    used (see .db). Quote phrases: .define "ice cream" wn
    Typing a word without a leading dot does the same.`,

	"match": `  .match <word> [strategy] [database]
    List headwords that match word under the strategy, for example
    .match hel prefix. Strategy and database default to the current
    settings (see .strategy and .db).`,

	"db": `  .db [name]
    Without a name, print the current database. With a name, use it for
    later lookups. Special names:
      *   search every database
      !   stop at the first database with a hit`,

	"strategy": `  .strategy [name]
    Without a name, print the current match strategy. With a name, use it
    for later .match commands. "." selects the server's default strategy.
    See .strategies for the names the server accepts.`,

	"databases": `  .databases
    List the databases the server offers, sorted by name.`,

	"strategies": `  .strategies
    List the match strategies the server offers.`,

	"info": `  .info [database]
    Print the server's description of a database (default: current).`,

	"server": `  .server
    Print the server's own description of itself.`,

	"help": `  .help [command]
    Without a command, list all commands. With one, show its details.`,

	"quit": `  .quit
    Close the connection and exit. Ctrl-D does the same.`,
}
