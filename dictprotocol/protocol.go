// Package dictprotocol implements the client side of the DICT protocol
// (RFC 2229), a line-oriented text protocol for dictionary lookups.
//
// Protocol Format:
//
//	Request (client -> server):  <COMMAND> [atoms...]\r\n
//	Status line:                 <3-digit code> <detail text>\r\n
//	Text body:                   lines terminated by a lone "."
//	Listing body:                lines terminated by "250 ok"
//
// Example Session:
//
//	S: 220 dict.example.org dictd 1.12 <auth.mime> <100@dict.example.org>
//	C: DEFINE wn hello
//	S: 150 1 definitions retrieved
//	S: 151 "hello" wn "WordNet (r) 3.0 (2006)"
//	S: hello
//	S:     n 1: an expression of greeting
//	S: .
//	S: 250 ok [d/m/c = 1/0/18; 0.000r 0.000u 0.000s]
//	C: QUIT
package dictprotocol

import (
	"net"
	"strconv"
	"time"
)

// Protocol constants.
const (
	// DefaultPort is the IANA assigned DICT port.
	DefaultPort = 2628

	// LineTerminator ends every command line sent to the server.
	LineTerminator = "\r\n"

	// BlockTerminator is the lone line ending a definition or text body.
	BlockTerminator = "."

	// ListTerminator is the line ending a database, strategy or match listing.
	ListTerminator = "250 ok"

	// MaxLineLength is the longest command line RFC 2229 allows, excluding CRLF.
	MaxLineLength = 1024

	// DialTimeout bounds connection establishment in Open.
	DialTimeout = 10 * time.Second

	// CloseTimeout bounds the QUIT write during Close.
	CloseTimeout = 2 * time.Second
)

// Status codes used by the session.
const (
	StatusDatabasesPresent   = 110
	StatusStrategiesPresent  = 111
	StatusDatabaseInfo       = 112
	StatusServerInfo         = 114
	StatusDefinitionsFollow  = 150
	StatusDefinitionHeader   = 151
	StatusMatchesFollow      = 152
	StatusBanner             = 220
	StatusClosing            = 221
	StatusOK                 = 250
	StatusInvalidDatabase    = 550
	StatusInvalidStrategy    = 551
	StatusNoMatch            = 552
	StatusNoDatabasesPresent = 554
	StatusNoStrategies       = 555
)

// Special database and strategy names.
const (
	// AllDatabasesName searches every database on the server.
	AllDatabasesName = "*"

	// FirstMatchName stops at the first database with a result.
	FirstMatchName = "!"

	// DefaultStrategyName selects the server's default matching strategy.
	DefaultStrategyName = "."
)

// Address joins host and port, substituting DefaultPort for port <= 0.
func Address(host string, port int) string {
	if port <= 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
