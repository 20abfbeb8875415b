// Package dicttest provides a scripted DICT server for tests.
//
// The server listens on a loopback TCP port, greets every connection with a
// banner, and answers each command line with whatever the handler returns.
package dicttest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// HangUp, appended to a handler's reply, makes the server close the
// connection after writing the rest of the reply.
const HangUp = "\x00hangup"

// DefaultBanner is the greeting sent when no banner is configured.
const DefaultBanner = "220 dicttest <mime.auth> <1.2@dicttest>"

// Handler returns the raw reply for one command line (without CRLF).
type Handler func(command string) string

// Server is a scripted DICT server.
type Server struct {
	listener net.Listener
	handler  Handler
	banner   string

	mu          sync.Mutex
	connections []net.Conn
	commands    []string

	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithBanner replaces the greeting line. It is sent as given, plus CRLF.
func WithBanner(banner string) Option {
	return func(s *Server) {
		s.banner = banner
	}
}

// Start launches a server and registers its shutdown with t.Cleanup.
// A nil handler serves the Fixture dictionary.
func Start(t testing.TB, handler Handler, opts ...Option) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	if handler == nil {
		handler = Fixture
	}

	s := &Server{
		listener: listener,
		handler:  handler,
		banner:   DefaultBanner,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Stop)
	return s
}

// Host returns the host the server listens on.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Commands returns every command line received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// Stop closes the listener and every open connection, then waits for the
// connection goroutines to exit.
func (s *Server) Stop() {
	s.listener.Close()

	s.mu.Lock()
	for _, conn := range s.connections {
		conn.Close()
	}
	s.connections = nil
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.connections = append(s.connections, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if !s.write(conn, s.banner+"\r\n") {
		return
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		command := strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, command)
		s.mu.Unlock()

		if strings.EqualFold(command, "QUIT") {
			s.write(conn, "221 bye\r\n")
			return
		}
		if !s.write(conn, s.handler(command)) {
			return
		}
	}
}

// write sends reply and reports whether the connection should stay open.
func (s *Server) write(conn net.Conn, reply string) bool {
	body, hangUp := strings.CutSuffix(reply, HangUp)
	if _, err := io.WriteString(conn, body); err != nil {
		return false
	}
	return !hangUp
}

// Lines joins lines with CRLF and terminates the last one.
func Lines(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

// Fixture answers a small fixed dictionary with two databases.
//
//	wn      defines "hello" and "world"
//	gcide   defines "hello"
func Fixture(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return Lines("500 syntax error, command not recognized")
	}

	switch strings.ToUpper(fields[0]) {
	case "CLIENT":
		return Lines("250 ok")
	case "SHOW":
		if len(fields) < 2 {
			return Lines("501 syntax error, illegal parameters")
		}
		return fixtureShow(fields[1:])
	case "DEFINE":
		if len(fields) != 3 {
			return Lines("501 syntax error, illegal parameters")
		}
		return fixtureDefine(fields[1], fields[2])
	case "MATCH":
		if len(fields) != 4 {
			return Lines("501 syntax error, illegal parameters")
		}
		return fixtureMatch(fields[1], fields[2], fields[3])
	default:
		return Lines("500 syntax error, command not recognized")
	}
}

type fixtureEntry struct {
	database string
	body     []string
}

var fixtureDatabases = []struct{ name, description string }{
	{"wn", "WordNet (r) 3.0 (2006)"},
	{"gcide", "The Collaborative International Dictionary of English v.0.48"},
}

var fixtureEntries = map[string][]fixtureEntry{
	"hello": {
		{"wn", []string{"hello", "    n 1: an expression of greeting"}},
		{"gcide", []string{"Hello \\Hel*lo\"\\, interj.", "   An exclamation used as a greeting."}},
	},
	"world": {
		{"wn", []string{"world", "    n 1: everything that exists anywhere"}},
	},
}

func fixtureShow(args []string) string {
	switch strings.ToUpper(args[0]) {
	case "DB", "DATABASES":
		lines := []string{fmt.Sprintf("110 %d databases present", len(fixtureDatabases))}
		for _, db := range fixtureDatabases {
			lines = append(lines, fmt.Sprintf("%s %q", db.name, db.description))
		}
		return Lines(append(lines, ".", "250 ok")...)
	case "STRAT", "STRATEGIES":
		return Lines(
			"111 2 strategies present",
			`exact "Match headwords exactly"`,
			`prefix "Match prefixes"`,
			".",
			"250 ok",
		)
	case "INFO":
		if len(args) < 2 {
			return Lines("501 syntax error, illegal parameters")
		}
		for _, db := range fixtureDatabases {
			if db.name == args[1] {
				return Lines("112 database information follows", db.description, "", "Fixture data.", ".", "250 ok")
			}
		}
		return Lines("550 invalid database, use SHOW DB for list")
	case "SERVER":
		return Lines("114 server information", "dicttest fixture server", ".", "250 ok")
	default:
		return Lines("501 syntax error, illegal parameters")
	}
}

func fixtureDefine(database, word string) string {
	if database != "*" && database != "!" && !isFixtureDatabase(database) {
		return Lines("550 invalid database, use SHOW DB for list")
	}

	var found []fixtureEntry
	for _, e := range fixtureEntries[strings.ToLower(word)] {
		if database == "*" || database == "!" || e.database == database {
			found = append(found, e)
			if database == "!" {
				break
			}
		}
	}
	if len(found) == 0 {
		return Lines("552 no match")
	}

	lines := []string{fmt.Sprintf("150 %d definitions retrieved", len(found))}
	for _, e := range found {
		lines = append(lines, fmt.Sprintf("151 %q %s %q", word, e.database, fixtureDescription(e.database)))
		lines = append(lines, e.body...)
		lines = append(lines, ".")
	}
	return Lines(append(lines, "250 ok [d/m/c = 1/0/20; 0.000r 0.000u 0.000s]")...)
}

func fixtureMatch(database, strategy, word string) string {
	if database != "*" && database != "!" && !isFixtureDatabase(database) {
		return Lines("550 invalid database, use SHOW DB for list")
	}
	if strategy != "." && strategy != "exact" && strategy != "prefix" {
		return Lines("551 invalid strategy, use SHOW STRAT for list")
	}

	var lines []string
	for _, headword := range []string{"hello", "world"} {
		ok := headword == strings.ToLower(word)
		if strategy == "prefix" {
			ok = strings.HasPrefix(headword, strings.ToLower(word))
		}
		if !ok {
			continue
		}
		for _, e := range fixtureEntries[headword] {
			if database == "*" || database == "!" || e.database == database {
				lines = append(lines, fmt.Sprintf("%s %q", e.database, headword))
			}
		}
	}
	if len(lines) == 0 {
		return Lines("552 no match")
	}

	lines = append([]string{fmt.Sprintf("152 %d matches found", len(lines))}, lines...)
	return Lines(append(lines, ".", "250 ok [d/m/c = 0/2/8; 0.000r 0.000u 0.000s]")...)
}

func isFixtureDatabase(name string) bool {
	for _, db := range fixtureDatabases {
		if db.name == name {
			return true
		}
	}
	return false
}

func fixtureDescription(name string) string {
	for _, db := range fixtureDatabases {
		if db.name == name {
			return db.description
		}
	}
	return ""
}
