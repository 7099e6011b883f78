package outbound

import (
	"regexp"
	"strings"

	"chatbridge/internal/transport"
)

var cardHeadingPattern = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.*?)\s*#*\s*$`)

// RenderCard builds a header-less interactive card with the text as a single
// markdown element. Card markdown has no headings, so heading lines are
// rendered bold.
func RenderCard(text string) transport.Card {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := cardHeadingPattern.FindStringSubmatch(line); m != nil && m[1] != "" {
			lines[i] = "**" + m[1] + "**"
		}
	}
	return transport.Card{
		Config: transport.CardConfig{WideScreenMode: true, EnableForward: true},
		Elements: []transport.CardElement{
			{Tag: "markdown", Content: strings.Join(lines, "\n")},
		},
	}
}
