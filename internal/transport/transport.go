package transport

import "context"

// Result describes a successful delivery.
type Result struct {
	MessageID string
}

// Transport sends messages to a chat.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) (Result, error)
	SendCard(ctx context.Context, chatID string, card Card) (Result, error)
}

// Card is an interactive message card.
type Card struct {
	Config   CardConfig    `json:"config"`
	Header   *CardHeader   `json:"header,omitempty"`
	Elements []CardElement `json:"elements"`
}

// CardConfig holds card-wide display flags.
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
	EnableForward  bool `json:"enable_forward"`
}

// CardHeader is the optional colored title bar.
type CardHeader struct {
	Title    CardText `json:"title"`
	Template string   `json:"template,omitempty"`
}

// CardText is a plain-text label.
type CardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// CardElement is one block in the card body. Tag "markdown" renders Content
// as lark markdown; tag "hr" draws a divider.
type CardElement struct {
	Tag     string `json:"tag"`
	Content string `json:"content,omitempty"`
}
