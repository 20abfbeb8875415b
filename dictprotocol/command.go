package dictprotocol

import (
	"strings"
)

// CommandType represents the type of DICT command.
type CommandType int

const (
	// Lookup commands
	CmdDefine CommandType = iota
	CmdMatch

	// Server information
	CmdShowDatabases
	CmdShowStrategies
	CmdShowInfo
	CmdShowServer

	// Session commands
	CmdClient
	CmdQuit
)

// String returns the protocol verb of the command.
func (t CommandType) String() string {
	switch t {
	case CmdDefine:
		return "DEFINE"
	case CmdMatch:
		return "MATCH"
	case CmdShowDatabases:
		return "SHOW DB"
	case CmdShowStrategies:
		return "SHOW STRAT"
	case CmdShowInfo:
		return "SHOW INFO"
	case CmdShowServer:
		return "SHOW SERVER"
	case CmdClient:
		return "CLIENT"
	case CmdQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

// Command represents a DICT command with its arguments.
// Use the constructor functions (NewDefineCommand, NewMatchCommand, etc.)
// to create Command instances.
type Command struct {
	Type CommandType

	Database string // For define, match, show info
	Strategy string // For match
	Word     string // For define, match
	Text     string // For client
}

// NewDefineCommand creates a DEFINE command.
func NewDefineCommand(database Database, word string) Command {
	return Command{Type: CmdDefine, Database: database.Name, Word: word}
}

// NewMatchCommand creates a MATCH command.
func NewMatchCommand(database Database, strategy Strategy, word string) Command {
	return Command{Type: CmdMatch, Database: database.Name, Strategy: strategy.Name, Word: word}
}

// NewShowDatabasesCommand creates a SHOW DB command.
func NewShowDatabasesCommand() Command {
	return Command{Type: CmdShowDatabases}
}

// NewShowStrategiesCommand creates a SHOW STRAT command.
func NewShowStrategiesCommand() Command {
	return Command{Type: CmdShowStrategies}
}

// NewShowInfoCommand creates a SHOW INFO command.
func NewShowInfoCommand(database Database) Command {
	return Command{Type: CmdShowInfo, Database: database.Name}
}

// NewShowServerCommand creates a SHOW SERVER command.
func NewShowServerCommand() Command {
	return Command{Type: CmdShowServer}
}

// NewClientCommand creates a CLIENT command identifying this client.
func NewClientCommand(text string) Command {
	return Command{Type: CmdClient, Text: text}
}

// NewQuitCommand creates a QUIT command.
func NewQuitCommand() Command {
	return Command{Type: CmdQuit}
}

// Format returns the command as sent on the wire, without the line terminator.
func (c Command) Format() string {
	switch c.Type {
	case CmdDefine:
		return "DEFINE " + QuoteAtom(c.Database) + " " + QuoteAtom(c.Word)
	case CmdMatch:
		return "MATCH " + QuoteAtom(c.Database) + " " + QuoteAtom(c.Strategy) + " " + QuoteAtom(c.Word)
	case CmdShowInfo:
		return "SHOW INFO " + QuoteAtom(c.Database)
	case CmdClient:
		return "CLIENT " + QuoteAtom(c.Text)
	default:
		return c.Type.String()
	}
}

// FormatLine returns the command formatted as a complete protocol line with CRLF.
func (c Command) FormatLine() string {
	return c.Format() + LineTerminator
}

// QuoteAtom returns s unchanged when it is a plain atom, otherwise a
// double-quoted string with '"' and '\' escaped.
func QuoteAtom(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
