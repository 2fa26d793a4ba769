package agent

import (
	"log/slog"
	"regexp"
	"strings"
)

// replyFilters run in order over every generated reply.
var replyFilters = []struct {
	name string
	fn   func(string) string
}{
	{"thinking", stripThinkingTags},
	{"final", stripFinalTags},
	{"markup", toWhatsAppMarkup},
	{"duplicates", dropRepeatedParagraphs},
}

// SanitizeReply cleans model output before it is sent to a lead over WhatsApp.
// Reasoning blocks and <final> wrappers are removed, Markdown is rewritten to
// WhatsApp markup and a paragraph repeated back to back is kept once.
// It may return "".
func SanitizeReply(content string) string {
	if content == "" {
		return content
	}
	original := content
	var applied []string
	for _, f := range replyFilters {
		next := f.fn(content)
		if next != content {
			applied = append(applied, f.name)
		}
		content = next
	}
	content = strings.TrimSpace(content)

	if content != original {
		slog.Debug("agent.reply.sanitized", "filters", applied, "original_len", len(original), "cleaned_len", len(content))
	}
	return content
}

// No backreferences in RE2: one pattern per tag.
var thinkingTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<thought>.*?</thought>`),
}

func stripThinkingTags(content string) string {
	if !strings.Contains(strings.ToLower(content), "<th") {
		return content
	}
	for _, pat := range thinkingTagPatterns {
		content = pat.ReplaceAllString(content, "")
	}
	return content
}

var finalTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*final\s*>`)

func stripFinalTags(content string) string {
	return finalTagPattern.ReplaceAllString(content, "")
}

var (
	mdBold    = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	mdHeading = regexp.MustCompile(`(?m)^#{1,6}[ \t]+\**(.+?)\**[ \t]*$`)
	mdLink    = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
)

// toWhatsAppMarkup rewrites the Markdown models like to emit into what WhatsApp
// renders: single-asterisk bold, bold lines for headings, "text (url)" for links.
func toWhatsAppMarkup(content string) string {
	content = mdBold.ReplaceAllString(content, "*$2*")
	content = mdHeading.ReplaceAllString(content, "*$1*")
	return mdLink.ReplaceAllString(content, "$1 ($2)")
}

func dropRepeatedParagraphs(content string) string {
	if !strings.Contains(content, "\n\n") {
		return content
	}
	var kept []string
	prev := ""
	for _, p := range strings.Split(content, "\n\n") {
		t := strings.TrimSpace(p)
		if t == "" || t == prev {
			continue
		}
		kept = append(kept, p)
		prev = t
	}
	return strings.Join(kept, "\n\n")
}
