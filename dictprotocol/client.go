package dictprotocol

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for protocol tracing.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCommandTimeout sets a deadline on the connection before the handshake
// and before every command. Zero disables deadlines.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.commandTimeout = d
	}
}

// WithClientName makes the session identify itself with CLIENT after the
// handshake.
func WithClientName(name string) Option {
	return func(s *Session) {
		s.clientName = name
	}
}

// Session is an open connection to a DICT server.
//
// Each operation writes one command and reads its complete response while
// holding the session lock, so a Session may be shared between goroutines;
// their commands run one at a time.
type Session struct {
	mu sync.Mutex

	conn   net.Conn
	reader *bufio.Reader
	banner Banner

	logger         *slog.Logger
	commandTimeout time.Duration
	clientName     string

	// pendingCompletion is set after a "."-terminated body; the server
	// follows it with a 2yz line that belongs to the finished command.
	pendingCompletion bool

	// broken holds the failure that desynchronized the stream.
	broken error

	closeOnce sync.Once
}

// Open connects to a DICT server and performs the handshake.
// A port <= 0 selects DefaultPort.
func Open(host string, port int, opts ...Option) (*Session, error) {
	return OpenContext(context.Background(), host, port, opts...)
}

// OpenContext connects to a DICT server with a context for cancellation of
// the dial.
func OpenContext(ctx context.Context, host string, port int, opts ...Option) (*Session, error) {
	connectCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(connectCtx, "tcp", Address(host, port))
	if err != nil {
		return nil, NewConnectionError("failed to connect", err)
	}
	return NewSession(conn, opts...)
}

// NewSession performs the handshake over an established connection.
// The session takes ownership of conn and closes it if the handshake fails.
func NewSession(conn net.Conn, opts ...Option) (*Session, error) {
	s := &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("remote", remoteAddr(conn))

	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake() error {
	s.applyDeadline()

	line, err := s.readLine("banner")
	if err != nil {
		return NewConnectionError("failed to read banner", err)
	}
	status, err := ParseStatus(line)
	if err != nil {
		return NewConnectionError("invalid banner", err)
	}
	if status.IsNegativeReply() {
		return NewConnectionError("server refused connection: "+status.String(), nil)
	}
	s.banner = parseBanner(status)
	s.logger.Info("dict.connected", "code", status.Code, "capabilities", s.banner.Capabilities)

	if s.clientName == "" {
		return nil
	}
	status, err = s.begin(NewClientCommand(s.clientName))
	if err != nil {
		return NewConnectionError("failed to identify client", err)
	}
	if status.Code != StatusOK {
		s.logger.Warn("dict.unexpected_status", "command", CmdClient.String(), "status", status.String())
	}
	return nil
}

// Banner returns the greeting the server sent when the session opened.
func (s *Session) Banner() Banner {
	return s.banner
}

// Err returns the failure that made the session unusable, or nil while
// commands can still be sent.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Close sends QUIT and closes the connection. Errors are discarded; Close
// always returns nil and may be called more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.conn.SetWriteDeadline(time.Now().Add(CloseTimeout))
		if _, err := io.WriteString(s.conn, NewQuitCommand().FormatLine()); err != nil {
			s.logger.Debug("dict.close_failed", "step", "quit", "error", err)
		}
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("dict.close_failed", "step", "close", "error", err)
		}
	})
	return nil
}

// Definitions looks up word in database. Use AllDatabases to search every
// database or FirstMatch to stop at the first one with a hit.
//
// An unknown database or a word without definitions yields an empty slice
// and no error.
func (s *Session) Definitions(word string, database Database) ([]Definition, error) {
	if strings.TrimSpace(word) == "" {
		return nil, ErrEmptyWord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := NewDefineCommand(database, word)
	status, err := s.begin(cmd)
	if err != nil {
		return nil, err
	}

	switch status.Code {
	case StatusInvalidDatabase, StatusInvalidStrategy, StatusNoMatch:
		return []Definition{}, nil
	case StatusDefinitionsFollow:
		return s.readDefinitions(word, status)
	default:
		if err := s.ignoreStatus(cmd, status); err != nil {
			return nil, err
		}
		return []Definition{}, nil
	}
}

// maxDefinitionsHint caps the capacity preallocated from the server's count.
const maxDefinitionsHint = 64

func (s *Session) readDefinitions(word string, status Status) ([]Definition, error) {
	atoms := SplitAtoms(status.Detail)
	if len(atoms) == 0 {
		return nil, s.fail(newInvalidCountError(status.String(), nil))
	}
	count, err := strconv.Atoi(atoms[0])
	if err != nil || count < 0 {
		return nil, s.fail(newInvalidCountError(status.String(), err))
	}

	definitions := make([]Definition, 0, min(count, maxDefinitionsHint))
	for i := 0; i < count; i++ {
		header, err := s.readLine("definition header")
		if err != nil {
			return nil, err
		}
		def, err := parseDefinitionHeader(word, header)
		if err != nil {
			return nil, s.fail(err)
		}

		for {
			line, err := s.readLine("definition body")
			if err != nil {
				return nil, err
			}
			if IsBlockTerminator(line) {
				break
			}
			def.AppendLine(line)
		}
		definitions = append(definitions, *def)
	}

	s.pendingCompletion = true
	return definitions, nil
}

// parseDefinitionHeader decodes a line of the form
// 151 "word" database "database description".
func parseDefinitionHeader(word, line string) (*Definition, error) {
	status, err := ParseStatus(line)
	if err != nil || status.Code != StatusDefinitionHeader {
		return nil, newMalformedHeaderError(line)
	}
	atoms := SplitAtoms(line)
	if len(atoms) < 3 {
		return nil, newMalformedHeaderError(line)
	}

	def := NewDefinition(word, atoms[2])
	if len(atoms) > 3 {
		def.DatabaseDescription = atoms[3]
	}
	return def, nil
}

// Matches lists the words in database that match word under strategy.
//
// An unknown database or strategy, or no match at all, yields an empty set
// and no error.
func (s *Session) Matches(word string, strategy Strategy, database Database) (*MatchSet, error) {
	if strings.TrimSpace(word) == "" {
		return nil, ErrEmptyWord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := NewMatchSet()
	cmd := NewMatchCommand(database, strategy, word)
	status, err := s.begin(cmd)
	if err != nil {
		return nil, err
	}

	switch status.Code {
	case StatusInvalidDatabase, StatusInvalidStrategy, StatusNoMatch:
		return matches, nil
	case StatusMatchesFollow:
		err := s.readList("match list", func(atoms []string) {
			matches.Add(atoms[1])
		})
		if err != nil {
			return nil, err
		}
		return matches, nil
	default:
		if err := s.ignoreStatus(cmd, status); err != nil {
			return nil, err
		}
		return matches, nil
	}
}

// Databases returns the databases offered by the server keyed by name.
// A server without databases yields an empty map.
func (s *Session) Databases() (map[string]Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	databases := make(map[string]Database)
	cmd := NewShowDatabasesCommand()
	status, err := s.begin(cmd)
	if err != nil {
		return nil, err
	}

	switch {
	case status.Code == StatusDatabasesPresent:
		err := s.readList("database list", func(atoms []string) {
			databases[atoms[0]] = Database{Name: atoms[0], Description: atoms[1]}
		})
		if err != nil {
			return nil, err
		}
		return databases, nil
	case status.Code == StatusNoDatabasesPresent || status.IsNegativeReply():
		return databases, nil
	default:
		if err := s.ignoreStatus(cmd, status); err != nil {
			return nil, err
		}
		return databases, nil
	}
}

// Strategies returns the matching strategies offered by the server in the
// order listed. A server without strategies yields an empty set.
func (s *Session) Strategies() (*StrategySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	strategies := NewStrategySet()
	cmd := NewShowStrategiesCommand()
	status, err := s.begin(cmd)
	if err != nil {
		return nil, err
	}

	switch {
	case status.Code == StatusStrategiesPresent:
		err := s.readList("strategy list", func(atoms []string) {
			strategies.Add(Strategy{Name: atoms[0], Description: atoms[1]})
		})
		if err != nil {
			return nil, err
		}
		return strategies, nil
	case status.Code == StatusNoStrategies || status.IsNegativeReply():
		return strategies, nil
	default:
		if err := s.ignoreStatus(cmd, status); err != nil {
			return nil, err
		}
		return strategies, nil
	}
}

// DatabaseInfo returns the server's description of database, line breaks
// preserved. An unknown database yields an empty string.
func (s *Session) DatabaseInfo(database Database) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := NewShowInfoCommand(database)
	status, err := s.begin(cmd)
	if err != nil {
		return "", err
	}

	switch {
	case status.Code == StatusDatabaseInfo:
		return s.readText("database information")
	case status.IsNegativeReply():
		return "", nil
	default:
		return "", s.unexpectedStatus(cmd, status)
	}
}

// ServerInfo returns the server's self-description from SHOW SERVER.
func (s *Session) ServerInfo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := NewShowServerCommand()
	status, err := s.begin(cmd)
	if err != nil {
		return "", err
	}
	if status.Code != StatusServerInfo {
		return "", s.unexpectedStatus(cmd, status)
	}
	return s.readText("server information")
}

// begin sends cmd and returns its status line. The caller holds s.mu,
// except during the handshake, before the session is shared.
func (s *Session) begin(cmd Command) (Status, error) {
	if s.broken != nil {
		return Status{}, NewConnectionError("cannot send "+cmd.Type.String(), errors.Join(ErrSessionBroken, s.broken))
	}

	line := cmd.FormatLine()
	if len(line)-len(LineTerminator) > MaxLineLength {
		return Status{}, ErrCommandTooLong
	}

	s.applyDeadline()
	s.logger.Debug("dict.command", "command", cmd.Format())
	if _, err := io.WriteString(s.conn, line); err != nil {
		return Status{}, s.fail(NewConnectionError("failed to send command", err))
	}
	return s.readStatus()
}

func (s *Session) readStatus() (Status, error) {
	for {
		line, err := s.readLine("status line")
		if err != nil {
			return Status{}, err
		}
		status, err := ParseStatus(line)
		if err != nil {
			return Status{}, s.fail(err)
		}

		if s.pendingCompletion {
			s.pendingCompletion = false
			if status.IsPositiveCompletion() {
				s.logger.Debug("dict.completion", "status", status.String())
				continue
			}
		}

		s.logger.Debug("dict.status", "code", status.Code, "detail", status.Detail)
		return status, nil
	}
}

// readList consumes listing lines up to the list terminator, passing every
// line of exactly two atoms to fn. Other lines are skipped.
func (s *Session) readList(what string, fn func(atoms []string)) error {
	for {
		line, err := s.readLine(what)
		if err != nil {
			return err
		}
		if IsListTerminator(line) {
			return nil
		}
		if atoms := SplitAtoms(line); len(atoms) == 2 {
			fn(atoms)
		}
	}
}

// readText consumes a "."-terminated body and joins it with newlines.
func (s *Session) readText(what string) (string, error) {
	var lines []string
	for {
		line, err := s.readLine(what)
		if err != nil {
			return "", err
		}
		if IsBlockTerminator(line) {
			break
		}
		lines = append(lines, line)
	}
	s.pendingCompletion = true
	return strings.Join(lines, "\n"), nil
}

// readLine returns the next line without its CRLF. A clean end of stream is
// a protocol error; any other read failure is a connection error.
func (s *Session) readLine(what string) (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line != "" {
				return strings.TrimRight(line, "\r"), nil
			}
			return "", s.fail(newUnexpectedEOFError(what, err))
		}
		return "", s.fail(NewConnectionError("failed to read "+what, err))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ignoreStatus handles a status the command has no case for. Without a
// body it is logged and treated as an empty result; a 1yz status announces
// a body we cannot frame, so the session is given up.
func (s *Session) ignoreStatus(cmd Command, status Status) error {
	if status.IsPositivePreliminary() {
		return s.fail(newUnexpectedStatusError(status, cmd.Type.String()))
	}
	s.logger.Warn("dict.unexpected_status", "command", cmd.Type.String(), "status", status.String())
	return nil
}

func (s *Session) unexpectedStatus(cmd Command, status Status) error {
	err := newUnexpectedStatusError(status, cmd.Type.String())
	if status.IsPositivePreliminary() {
		return s.fail(err)
	}
	return err
}

// fail records err as the reason the session is unusable and returns it.
func (s *Session) fail(err error) error {
	if s.broken == nil {
		s.broken = err
	}
	return err
}

func (s *Session) applyDeadline() {
	if s.commandTimeout > 0 {
		s.conn.SetDeadline(time.Now().Add(s.commandTimeout))
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
