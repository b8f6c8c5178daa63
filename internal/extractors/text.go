package extractors

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

var errNotUTF8 = errors.New("content is not valid UTF-8")

// PlainTextExtractor handles plain text files.
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) Extract(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errNotUTF8
	}
	// Strip a UTF-8 byte order mark
	return strings.TrimPrefix(string(content), "\uFEFF"), nil
}

func (e *PlainTextExtractor) Extensions() []string { return []string{".txt", ".text"} }

func (e *PlainTextExtractor) Priority() int { return 1 }

// MarkdownExtractor reads Markdown as text, dropping heading markers,
// emphasis runs and fenced code delimiters.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	text, err := (&PlainTextExtractor{}).Extract(ctx, content)
	if err != nil {
		return "", err
	}

	lines := strings.Split(normaliseNewlines(text), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "#")
		trimmed = strings.NewReplacer("**", "", "__", "", "`", "").Replace(trimmed)
		out = append(out, strings.TrimSpace(trimmed))
	}
	return strings.Join(out, "\n"), nil
}

func (e *MarkdownExtractor) Extensions() []string { return []string{".md", ".markdown"} }

func (e *MarkdownExtractor) Priority() int { return 50 }
