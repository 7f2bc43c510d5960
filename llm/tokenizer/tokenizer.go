package tokenizer

import "strings"

// Counter counts the tokens of a text.
type Counter interface {
	Count(text string) int
	Name() string
}

// Message is a rendered chat turn.
type Message struct {
	Role    string
	Content string
}

// Per-message and per-conversation framing overhead of chat formats.
const (
	messageOverhead      = 4
	conversationOverhead = 3
)

// CountMessages returns the prompt cost of msgs including framing.
func CountMessages(c Counter, msgs []Message) int {
	total := conversationOverhead
	for _, m := range msgs {
		total += messageOverhead + c.Count(m.Role) + c.Count(m.Content)
	}
	return total
}

// Trim keeps the newest messages whose combined cost fits budget. The last
// message is always kept. A non-positive budget disables trimming.
func Trim(c Counter, msgs []Message, budget int) []Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}
	used := conversationOverhead
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := messageOverhead + c.Count(msgs[i].Role) + c.Count(msgs[i].Content)
		if used+cost > budget && start < len(msgs) {
			break
		}
		used += cost
		start = i
	}
	return msgs[start:]
}

// ForModel returns the counter for model: tiktoken for known OpenAI model
// families, the estimator otherwise.
func ForModel(model string) Counter {
	if enc, ok := encodingFor(model); ok {
		return newTiktoken(enc)
	}
	return NewEstimator()
}

func encodingFor(model string) (string, bool) {
	model = strings.ToLower(model)
	for _, p := range encodingPrefixes {
		if strings.HasPrefix(model, p.prefix) {
			return p.encoding, true
		}
	}
	return "", false
}

// encodingPrefixes is ordered longest prefix first.
var encodingPrefixes = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"gpt-4.1", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
}
