package dictprotocol

import (
	"fmt"
	"strings"
)

// Status is a decoded status line: a three-digit code and its detail text.
type Status struct {
	Code   int
	Detail string
}

// IsNegativeReply returns true for 5yz codes, which the server uses when the
// requested operation cannot proceed as stated.
func (s Status) IsNegativeReply() bool {
	return s.Code >= 500
}

// IsPositivePreliminary returns true for 1yz codes, which announce a body.
func (s Status) IsPositivePreliminary() bool {
	return s.Code >= 100 && s.Code < 200
}

// IsPositiveCompletion returns true for 2yz codes.
func (s Status) IsPositiveCompletion() bool {
	return s.Code >= 200 && s.Code < 300
}

// String returns the status formatted as it appears on the wire.
func (s Status) String() string {
	if s.Detail == "" {
		return fmt.Sprintf("%03d", s.Code)
	}
	return fmt.Sprintf("%03d %s", s.Code, s.Detail)
}

// Banner is the server greeting read during the handshake.
type Banner struct {
	Status

	// Capabilities lists the extensions announced in the "<a.b.c>" section.
	Capabilities []string

	// MessageID is the "<...@...>" token used by the AUTH extension.
	MessageID string
}

// parseBanner extracts the angle-bracket sections from a 220 greeting.
// The capability block comes first and never contains '@'.
func parseBanner(status Status) Banner {
	banner := Banner{Status: status}
	rest := status.Detail
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			break
		}
		token := rest[start+1 : start+end]
		rest = rest[start+end+1:]

		if strings.Contains(token, "@") {
			banner.MessageID = "<" + token + ">"
			continue
		}
		if banner.Capabilities == nil && token != "" {
			banner.Capabilities = strings.Split(token, ".")
		}
	}
	return banner
}

// Database describes a dictionary database offered by the server.
type Database struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// AllDatabases searches every database.
var AllDatabases = Database{Name: AllDatabasesName, Description: "all databases"}

// FirstMatch stops at the first database with a result.
var FirstMatch = Database{Name: FirstMatchName, Description: "first database with a match"}

// NewDatabase returns a Database reference by name, for callers that only
// know the name.
func NewDatabase(name string) Database {
	switch name {
	case AllDatabasesName:
		return AllDatabases
	case FirstMatchName:
		return FirstMatch
	}
	return Database{Name: name}
}

// Strategy describes a matching strategy offered by the server.
type Strategy struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// DefaultStrategy lets the server pick its default strategy.
var DefaultStrategy = Strategy{Name: DefaultStrategyName, Description: "server default"}

// NewStrategy returns a Strategy reference by name.
func NewStrategy(name string) Strategy {
	if name == DefaultStrategyName {
		return DefaultStrategy
	}
	return Strategy{Name: name}
}

// Definition is one definition block returned by DEFINE.
type Definition struct {
	Word                string   `yaml:"word"`
	Database            string   `yaml:"database"`
	DatabaseDescription string   `yaml:"database_description,omitempty"`
	Body                []string `yaml:"body"`
}

// NewDefinition creates an empty definition of word from database.
func NewDefinition(word, database string) *Definition {
	return &Definition{Word: word, Database: database}
}

// AppendLine adds one body line verbatim.
func (d *Definition) AppendLine(line string) {
	d.Body = append(d.Body, line)
}

// Text returns the body joined with newlines.
func (d Definition) Text() string {
	return strings.Join(d.Body, "\n")
}

// MatchSet is an insertion-ordered set of matched words.
type MatchSet struct {
	words []string
	index map[string]struct{}
}

// NewMatchSet creates an empty match set.
func NewMatchSet() *MatchSet {
	return &MatchSet{index: make(map[string]struct{})}
}

// Add inserts word unless already present. Returns true if it was added.
func (m *MatchSet) Add(word string) bool {
	if _, ok := m.index[word]; ok {
		return false
	}
	m.index[word] = struct{}{}
	m.words = append(m.words, word)
	return true
}

// Contains reports whether word is in the set.
func (m *MatchSet) Contains(word string) bool {
	_, ok := m.index[word]
	return ok
}

// Len returns the number of distinct words.
func (m *MatchSet) Len() int {
	return len(m.words)
}

// Words returns the words in arrival order.
func (m *MatchSet) Words() []string {
	out := make([]string, len(m.words))
	copy(out, m.words)
	return out
}

// StrategySet is an insertion-ordered set of strategies keyed by name.
type StrategySet struct {
	items []Strategy
	index map[string]int
}

// NewStrategySet creates an empty strategy set.
func NewStrategySet() *StrategySet {
	return &StrategySet{index: make(map[string]int)}
}

// Add inserts s unless a strategy with the same name is present.
// Returns true if it was added.
func (ss *StrategySet) Add(s Strategy) bool {
	if _, ok := ss.index[s.Name]; ok {
		return false
	}
	ss.index[s.Name] = len(ss.items)
	ss.items = append(ss.items, s)
	return true
}

// Get returns the strategy with the given name.
func (ss *StrategySet) Get(name string) (Strategy, bool) {
	i, ok := ss.index[name]
	if !ok {
		return Strategy{}, false
	}
	return ss.items[i], true
}

// Len returns the number of strategies.
func (ss *StrategySet) Len() int {
	return len(ss.items)
}

// Strategies returns the strategies in arrival order.
func (ss *StrategySet) Strategies() []Strategy {
	out := make([]Strategy, len(ss.items))
	copy(out, ss.items)
	return out
}
