package dictprotocol

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attic/dict/internal/dicttest"
)

// script answers exact command lines with canned replies.
func script(replies map[string]string) dicttest.Handler {
	return func(cmd string) string {
		if reply, ok := replies[cmd]; ok {
			return reply
		}
		return dicttest.Lines("500 syntax error, command not recognized")
	}
}

func openSession(t *testing.T, handler dicttest.Handler, opts ...Option) (*Session, *dicttest.Server) {
	t.Helper()

	srv := dicttest.Start(t, handler)
	s, err := Open(srv.Host(), srv.Port(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, srv
}

func requireProtocolError(t *testing.T, err error, kind ProtocolErrorKind) {
	t.Helper()
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe), "expected *ProtocolError, got %T: %v", err, err)
	assert.Equal(t, kind, pe.Kind)
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestOpenReadsBanner(t *testing.T) {
	s, _ := openSession(t, nil)

	banner := s.Banner()
	assert.Equal(t, StatusBanner, banner.Code)
	assert.Equal(t, []string{"mime", "auth"}, banner.Capabilities)
	assert.Equal(t, "<1.2@dicttest>", banner.MessageID)
}

func TestOpenNegativeBannerFails(t *testing.T) {
	srv := dicttest.Start(t, nil, dicttest.WithBanner("530 access denied"))

	s, err := Open(srv.Host(), srv.Port())
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "530 access denied")
}

func TestOpenMalformedBannerFails(t *testing.T) {
	srv := dicttest.Start(t, nil, dicttest.WithBanner("hello there"))

	_, err := Open(srv.Host(), srv.Port())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.True(t, IsProtocolError(err), "cause should be the malformed status")
}

func TestOpenUnreachableServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err = Open("127.0.0.1", port)
	require.Error(t, err)

	var ce *ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.NotNil(t, ce.Unwrap())
}

func TestCloseAfterZeroOperations(t *testing.T) {
	srv := dicttest.Start(t, nil)
	s, err := Open(srv.Host(), srv.Port())
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "second Close must not fail")

	assert.Eventually(t, func() bool {
		cmds := srv.Commands()
		return len(cmds) == 1 && cmds[0] == "QUIT"
	}, time.Second, 10*time.Millisecond)
}

func TestCloseSwallowsErrorsOnDeadConnection(t *testing.T) {
	srv := dicttest.Start(t, nil)
	s, err := Open(srv.Host(), srv.Port())
	require.NoError(t, err)

	srv.Stop()
	assert.NoError(t, s.Close())
}

func TestOperationAfterCloseFails(t *testing.T) {
	srv := dicttest.Start(t, nil)
	s, err := Open(srv.Host(), srv.Port())
	require.NoError(t, err)
	s.Close()

	_, err = s.Databases()
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
}

func TestWithClientNameIdentifies(t *testing.T) {
	_, srv := openSession(t, nil, WithClientName("dict-go"))

	assert.Equal(t, []string{"CLIENT dict-go"}, srv.Commands())
}

func TestWithLoggerTracesCommands(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, _ := openSession(t, nil, WithLogger(logger))
	_, err := s.Definitions("hello", AllDatabases)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "dict.connected")
	assert.Contains(t, out, "dict.command")
	assert.Contains(t, out, "DEFINE * hello")
}

func TestWithCommandTimeoutFailsOnSilentServer(t *testing.T) {
	silent := func(string) string { return "" }
	s, _ := openSession(t, silent, WithCommandTimeout(100*time.Millisecond))

	_, err := s.Databases()
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))

	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

// =============================================================================
// DEFINE
// =============================================================================

func TestDefinitionsSingleBlock(t *testing.T) {
	s, srv := openSession(t, script(map[string]string{
		"DEFINE db word": dicttest.Lines(
			"150 1 definitions found",
			`151 word db "Desc"`,
			"a definition",
			".",
		),
		"SHOW DB": dicttest.Lines("554 no databases present"),
	}))

	defs, err := s.Definitions("word", Database{Name: "db"})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "word", defs[0].Word)
	assert.Equal(t, "db", defs[0].Database)
	assert.Equal(t, "Desc", defs[0].DatabaseDescription)
	assert.Equal(t, []string{"a definition"}, defs[0].Body)

	// The server never sent a completion line; the next command must still
	// read its own status.
	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.Empty(t, dbs)
	assert.Equal(t, []string{"DEFINE db word", "SHOW DB"}, srv.Commands())
}

func TestDefinitionsCountMatchesDeclared(t *testing.T) {
	s, _ := openSession(t, nil)

	defs, err := s.Definitions("hello", AllDatabases)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "wn", defs[0].Database)
	assert.Equal(t, "WordNet (r) 3.0 (2006)", defs[0].DatabaseDescription)
	assert.Equal(t, []string{"hello", "    n 1: an expression of greeting"}, defs[0].Body)
	assert.Equal(t, "gcide", defs[1].Database)
	for _, d := range defs {
		assert.Equal(t, "hello", d.Word)
		assert.NotContains(t, d.Body, ".")
	}
}

func TestDefinitionsFirstMatch(t *testing.T) {
	s, srv := openSession(t, nil)

	defs, err := s.Definitions("hello", FirstMatch)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "wn", defs[0].Database)
	assert.Equal(t, []string{"DEFINE ! hello"}, srv.Commands())
}

func TestDefinitionsConsumesCompletionLine(t *testing.T) {
	s, _ := openSession(t, nil)

	for i := 0; i < 3; i++ {
		defs, err := s.Definitions("hello", Database{Name: "wn"})
		require.NoError(t, err)
		require.Len(t, defs, 1)

		matches, err := s.Matches("hello", DefaultStrategy, AllDatabases)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello"}, matches.Words())
	}
}

func TestDefinitionsEmptyResults(t *testing.T) {
	tests := []struct {
		name     string
		database string
		word     string
	}{
		{"no match", "wn", "zzyzx"},
		{"invalid database", "nosuchdb", "hello"},
	}

	s, _ := openSession(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := s.Definitions(tt.word, Database{Name: tt.database})
			require.NoError(t, err)
			assert.NotNil(t, defs)
			assert.Empty(t, defs)
		})
	}
}

func TestDefinitionsInvalidStrategyStatusIsEmpty(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE wn hello": dicttest.Lines("551 invalid strategy"),
	}))

	defs, err := s.Definitions("hello", Database{Name: "wn"})
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestDefinitionsUnrecognizedStatusIsEmpty(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE wn hello": dicttest.Lines("420 server temporarily unavailable"),
		"SHOW DB":         dicttest.Lines("554 no databases present"),
	}))

	defs, err := s.Definitions("hello", Database{Name: "wn"})
	require.NoError(t, err)
	assert.Empty(t, defs)

	_, err = s.Databases()
	assert.NoError(t, err, "session stays usable")
}

func TestDefinitionsUnexpectedPreliminaryStatusBreaksSession(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE wn hello": dicttest.Lines("152 1 matches found", `wn "hello"`, ".", "250 ok"),
	}))

	require.NoError(t, s.Err())
	_, err := s.Definitions("hello", Database{Name: "wn"})
	requireProtocolError(t, err, ErrKindUnexpectedStatus)
	assert.Equal(t, err, s.Err())

	_, err = s.Databases()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionBroken)
}

func TestDefinitionsInvalidCount(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE wn hello": dicttest.Lines("150 several definitions retrieved"),
	}))

	_, err := s.Definitions("hello", Database{Name: "wn"})
	requireProtocolError(t, err, ErrKindInvalidCount)
}

func TestDefinitionsHugeCountFailsCleanly(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE wn hello": dicttest.Lines("150 9000000000000 definitions retrieved") + dicttest.HangUp,
	}))

	var defs []Definition
	var err error
	require.NotPanics(t, func() {
		defs, err = s.Definitions("hello", Database{Name: "wn"})
	})
	assert.Nil(t, defs)
	requireProtocolError(t, err, ErrKindUnexpectedEOF)
}

func TestDefinitionsRejectsOverlongCommand(t *testing.T) {
	s, srv := openSession(t, nil)

	_, err := s.Definitions(strings.Repeat("a", 2000), AllDatabases)
	require.ErrorIs(t, err, ErrCommandTooLong)

	_, err = s.Matches(strings.Repeat("a", 2000), DefaultStrategy, AllDatabases)
	require.ErrorIs(t, err, ErrCommandTooLong)

	assert.NoError(t, s.Err(), "nothing was sent, so the session is intact")
	_, err = s.Databases()
	require.NoError(t, err)
	assert.Equal(t, []string{"SHOW DB"}, srv.Commands())
}

func TestDefinitionsCommandAtMaxLineLengthIsSent(t *testing.T) {
	s, srv := openSession(t, nil)

	// "DEFINE * " plus the word fills the line exactly.
	word := strings.Repeat("a", MaxLineLength-len("DEFINE * "))
	defs, err := s.Definitions(word, AllDatabases)
	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Equal(t, []string{"DEFINE * " + word}, srv.Commands())
}

func TestDefinitionsMalformedHeader(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE wn hello": dicttest.Lines("150 1 definitions retrieved", "151 hello", "body", "."),
	}))

	_, err := s.Definitions("hello", Database{Name: "wn"})
	requireProtocolError(t, err, ErrKindMalformedHeader)
}

func TestDefinitionsEndOfStreamMidBody(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"DEFINE * hello": dicttest.Lines(
			"150 2 definitions retrieved",
			`151 "hello" wn "WordNet"`,
			"hello",
			".",
			`151 "hello" gcide "GCIDE"`,
			"partial body",
		) + dicttest.HangUp,
	}))

	defs, err := s.Definitions("hello", AllDatabases)
	require.Error(t, err)
	assert.Nil(t, defs, "partial results are discarded")
	requireProtocolError(t, err, ErrKindUnexpectedEOF)

	_, err = s.Strategies()
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, ErrSessionBroken)
}

func TestDefinitionsEmptyWord(t *testing.T) {
	s, srv := openSession(t, nil)

	_, err := s.Definitions("  ", AllDatabases)
	assert.ErrorIs(t, err, ErrEmptyWord)
	assert.Empty(t, srv.Commands(), "nothing is sent")
}

func TestDefinitionsQuotesPhrases(t *testing.T) {
	s, srv := openSession(t, script(map[string]string{
		`DEFINE wn "ice cream"`: dicttest.Lines("552 no match"),
	}))

	_, err := s.Definitions("ice cream", Database{Name: "wn"})
	require.NoError(t, err)
	assert.Equal(t, []string{`DEFINE wn "ice cream"`}, srv.Commands())
}

// =============================================================================
// MATCH
// =============================================================================

func TestMatchesCollapsesDuplicates(t *testing.T) {
	s, srv := openSession(t, nil)

	matches, err := s.Matches("h", Strategy{Name: "prefix"}, AllDatabases)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, matches.Words())
	assert.Equal(t, []string{"MATCH * prefix h"}, srv.Commands())
}

func TestMatchesSkipsLinesWithoutTwoAtoms(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"MATCH * . x": dicttest.Lines(
			"152 4 matches found",
			`wn "alpha"`,
			"single",
			"too many atoms here",
			`gcide "beta"`,
			`wn "alpha"`,
			".",
			"250 ok",
		),
	}))

	matches, err := s.Matches("x", DefaultStrategy, AllDatabases)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, matches.Words())
	assert.False(t, matches.Contains("250"))
	assert.False(t, matches.Contains("ok"))
}

func TestMatchesEmptyResults(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		database string
	}{
		{"no match", "exact", "wn"},
		{"invalid strategy", "soundex", "wn"},
		{"invalid database", "exact", "nosuchdb"},
	}

	s, _ := openSession(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := s.Matches("zzyzx", Strategy{Name: tt.strategy}, Database{Name: tt.database})
			require.NoError(t, err)
			require.NotNil(t, matches)
			assert.Equal(t, 0, matches.Len())
		})
	}
}

func TestMatchesEndOfStreamBeforeTerminator(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"MATCH * . x": dicttest.Lines("152 1 matches found", `wn "alpha"`) + dicttest.HangUp,
	}))

	_, err := s.Matches("x", DefaultStrategy, AllDatabases)
	requireProtocolError(t, err, ErrKindUnexpectedEOF)
}

// =============================================================================
// SHOW DB / SHOW STRAT
// =============================================================================

func TestDatabases(t *testing.T) {
	s, _ := openSession(t, nil)

	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.Equal(t, map[string]Database{
		"wn":    {Name: "wn", Description: "WordNet (r) 3.0 (2006)"},
		"gcide": {Name: "gcide", Description: "The Collaborative International Dictionary of English v.0.48"},
	}, dbs)
}

func TestDatabasesLastDuplicateWins(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW DB": dicttest.Lines(
			"110 3 databases present",
			`wn "First"`,
			"a line with too many atoms",
			`wn "Second"`,
			`gcide "G"`,
			".",
			"250 ok",
		),
	}))

	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.Len(t, dbs, 2)
	assert.Equal(t, "Second", dbs["wn"].Description)
	assert.Equal(t, "G", dbs["gcide"].Description)
}

func TestDatabasesNonePresent(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW DB": dicttest.Lines("554 no databases present"),
	}))

	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.NotNil(t, dbs)
	assert.Empty(t, dbs)
}

func TestDatabasesOtherNegativeReply(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW DB": dicttest.Lines("502 command not implemented"),
	}))

	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.Empty(t, dbs)
}

func TestDatabasesUnexpectedStatusIsEmpty(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW DB":    dicttest.Lines("420 server temporarily unavailable"),
		"SHOW STRAT": dicttest.Lines("555 no strategies available"),
	}), WithCommandTimeout(time.Second))

	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.NotNil(t, dbs)
	assert.Empty(t, dbs)
	assert.NoError(t, s.Err())

	_, err = s.Strategies()
	assert.NoError(t, err, "session stays usable")
}

func TestDatabasesUnexpectedPreliminaryStatusBreaksSession(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW DB": dicttest.Lines("112 database information follows", "text", ".", "250 ok"),
	}))

	_, err := s.Databases()
	requireProtocolError(t, err, ErrKindUnexpectedStatus)
	assert.Equal(t, err, s.Err())
}

func TestStrategies(t *testing.T) {
	s, _ := openSession(t, nil)

	strategies, err := s.Strategies()
	require.NoError(t, err)
	assert.Equal(t, []Strategy{
		{Name: "exact", Description: "Match headwords exactly"},
		{Name: "prefix", Description: "Match prefixes"},
	}, strategies.Strategies())
}

func TestStrategiesNonePresent(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW STRAT": dicttest.Lines("555 no strategies available"),
	}))

	strategies, err := s.Strategies()
	require.NoError(t, err)
	assert.Equal(t, 0, strategies.Len())
}

func TestStrategiesUnexpectedStatusIsEmpty(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW STRAT": dicttest.Lines("420 server temporarily unavailable"),
		"SHOW DB":    dicttest.Lines("554 no databases present"),
	}), WithCommandTimeout(time.Second))

	strategies, err := s.Strategies()
	require.NoError(t, err)
	assert.Equal(t, 0, strategies.Len())
	assert.NoError(t, s.Err())

	_, err = s.Databases()
	assert.NoError(t, err, "session stays usable")
}

// =============================================================================
// SHOW INFO / SHOW SERVER
// =============================================================================

func TestDatabaseInfo(t *testing.T) {
	s, _ := openSession(t, nil)

	info, err := s.DatabaseInfo(Database{Name: "wn"})
	require.NoError(t, err)
	assert.Equal(t, "WordNet (r) 3.0 (2006)\n\nFixture data.", info)

	// The trailing "250 ok" must not leak into the next reply.
	dbs, err := s.Databases()
	require.NoError(t, err)
	assert.Len(t, dbs, 2)
}

func TestDatabaseInfoUnknownDatabase(t *testing.T) {
	s, _ := openSession(t, nil)

	info, err := s.DatabaseInfo(Database{Name: "nosuchdb"})
	require.NoError(t, err)
	assert.Empty(t, info)
}

func TestDatabaseInfoUnexpectedStatus(t *testing.T) {
	s, _ := openSession(t, script(map[string]string{
		"SHOW INFO wn": dicttest.Lines("250 ok"),
		"SHOW DB":      dicttest.Lines("554 no databases present"),
	}))

	_, err := s.DatabaseInfo(Database{Name: "wn"})
	requireProtocolError(t, err, ErrKindUnexpectedStatus)

	_, err = s.Databases()
	assert.NoError(t, err, "a status without a body does not break the session")
}

func TestServerInfo(t *testing.T) {
	s, _ := openSession(t, nil)

	info, err := s.ServerInfo()
	require.NoError(t, err)
	assert.Equal(t, "dicttest fixture server", info)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestConcurrentOperationsAreSerialized(t *testing.T) {
	s, _ := openSession(t, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defs, err := s.Definitions("hello", AllDatabases)
			if err != nil {
				errs <- err
				return
			}
			if len(defs) != 2 {
				errs <- errors.New("wrong definition count")
			}
			dbs, err := s.Databases()
			if err != nil {
				errs <- err
				return
			}
			if len(dbs) != 2 {
				errs <- errors.New("wrong database count")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
