// Package dictprotocol provides a Go client for the DICT dictionary server
// protocol described in RFC 2229.
//
// # Protocol Overview
//
// DICT is a line-oriented text protocol over TCP (port 2628). Every reply
// starts with a status line holding a three-digit code. Codes 1yz announce a
// body, 2yz complete a command, and 5yz are negative replies. Bodies come in
// two shapes:
//
//	Text bodies (definitions, database info) end with a line holding "."
//	Listings (databases, strategies, matches) end with the line "250 ok"
//
// # Basic Usage
//
// Open a session and look up a word:
//
//	session, err := dictprotocol.Open("dict.org", dictprotocol.DefaultPort)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	defs, err := session.Definitions("hello", dictprotocol.AllDatabases)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range defs {
//	    fmt.Printf("From %s:\n%s\n", d.Database, d.Text())
//	}
//
// # Empty Results
//
// Replies such as 552 (no match), 550 (invalid database), 554 (no databases)
// and 555 (no strategies) are valid outcomes. They produce empty results,
// not errors.
//
// # Errors
//
// Failures are reported as *ConnectionError (the transport could not be
// opened, read or written, or the server refused the session) or
// *ProtocolError (a reply did not have the shape expected for the command,
// or the stream ended mid-reply). A failure that leaves the stream out of
// step makes the session unusable: Err returns its cause and later calls
// fail with an error wrapping ErrSessionBroken. A command longer than
// MaxLineLength fails with ErrCommandTooLong before anything is sent.
//
//	var pe *dictprotocol.ProtocolError
//	if errors.As(err, &pe) {
//	    fmt.Println("server sent something unexpected:", pe.Line)
//	}
//
// # Thread Safety
//
// A Session runs one command at a time. Operations hold a mutex across the
// whole send-then-read sequence, so concurrent callers are serialized. There
// is no cancellation at this layer; use WithCommandTimeout to put deadlines
// on the underlying connection.
package dictprotocol
