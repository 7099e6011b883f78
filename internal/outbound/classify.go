package outbound

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind is the delivery form chosen for a message.
type Kind int

const (
	KindSkip Kind = iota
	KindText
	KindRich
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindText:
		return "text"
	case KindRich:
		return "rich"
	default:
		return "unknown"
	}
}

// DefaultTextMaxRunes is the longest message sent as plain text.
const DefaultTextMaxRunes = 200

const maxTextLines = 2

// Skip sentinels produced by the backend when it has nothing to say.
const (
	SentinelNoReply     = "NO_REPLY"
	SentinelHeartbeatOK = "HEARTBEAT_OK"
	SentinelSkip        = "[[skip]]"
)

var skipSentinels = map[string]struct{}{
	SentinelNoReply:     {},
	SentinelHeartbeatOK: {},
	SentinelSkip:        {},
}

var (
	headingPattern    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s`)
	listPattern       = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s`)
	tableRowPattern   = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)
	linkPattern       = regexp.MustCompile(`\[[^\]]+\]\([^)]+\)`)
	emphasisPattern   = regexp.MustCompile(`\*\*[^*]+\*\*|__[^_]+__`)
	blockquotePattern = regexp.MustCompile(`(?m)^\s*>\s`)
)

// Classify picks the delivery form for text using DefaultTextMaxRunes.
func Classify(text string) Kind {
	return ClassifyWithLimit(text, DefaultTextMaxRunes)
}

// ClassifyWithLimit picks the delivery form for text. Empty text and skip
// sentinels are KindSkip; text of at most two lines and maxRunes runes with no
// markdown structure is KindText; everything else is KindRich.
func ClassifyWithLimit(text string, maxRunes int) Kind {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return KindSkip
	}
	if _, ok := skipSentinels[trimmed]; ok {
		return KindSkip
	}
	if maxRunes <= 0 {
		maxRunes = DefaultTextMaxRunes
	}
	if utf8.RuneCountInString(trimmed) > maxRunes {
		return KindRich
	}
	if strings.Count(trimmed, "\n")+1 > maxTextLines {
		return KindRich
	}
	if hasMarkdown(trimmed) {
		return KindRich
	}
	return KindText
}

func hasMarkdown(text string) bool {
	if strings.Contains(text, "```") {
		return true
	}
	for _, pattern := range []*regexp.Regexp{
		headingPattern,
		listPattern,
		tableRowPattern,
		linkPattern,
		emphasisPattern,
		blockquotePattern,
	} {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
