package prompts

import (
	"fmt"
	"strings"

	"github.com/amoisekai/engine/pkg/chat"
)

type section struct {
	title string
	body  string
}

// Builder assembles the user half of a prompt as ordered markdown sections
// using a fluent interface. Empty sections are dropped.
type Builder struct {
	system   string
	sections []section
	footer   string
	maxChars int
}

// New starts a builder for the given system prompt.
func New(system string) *Builder {
	return &Builder{system: system}
}

// WithSystem replaces the system prompt.
func (b *Builder) WithSystem(system string) *Builder {
	b.system = system
	return b
}

// WithSection appends a titled block. Blank bodies are ignored.
func (b *Builder) WithSection(title, body string) *Builder {
	body = strings.TrimSpace(body)
	if body == "" {
		return b
	}
	b.sections = append(b.sections, section{title: title, body: body})
	return b
}

// WithSectionf appends a titled block built with fmt.Sprintf.
func (b *Builder) WithSectionf(title, format string, args ...any) *Builder {
	return b.WithSection(title, fmt.Sprintf(format, args...))
}

// WithList appends a titled bullet list. Empty items are skipped.
func (b *Builder) WithList(title string, items []string) *Builder {
	var sb strings.Builder
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(it)
		sb.WriteByte('\n')
	}
	return b.WithSection(title, sb.String())
}

// WithFooter sets the closing instruction placed after every section.
func (b *Builder) WithFooter(text string) *Builder {
	b.footer = strings.TrimSpace(text)
	return b
}

// WithMaxChars caps the user prompt. Later sections are cut first.
func (b *Builder) WithMaxChars(n int) *Builder {
	b.maxChars = n
	return b
}

// User renders the user prompt.
func (b *Builder) User() string {
	var sb strings.Builder
	for _, s := range b.sections {
		block := "## " + s.title + "\n" + s.body + "\n\n"
		if b.maxChars > 0 && sb.Len()+len(block)+len(b.footer) > b.maxChars {
			break
		}
		sb.WriteString(block)
	}
	sb.WriteString(b.footer)
	return strings.TrimSpace(sb.String())
}

// Titles lists the section titles in order.
func (b *Builder) Titles() []string {
	out := make([]string, len(b.sections))
	for i, s := range b.sections {
		out[i] = s.title
	}
	return out
}

// Build returns the (system, user) message pair.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if strings.TrimSpace(b.system) == "" {
		return nil, fmt.Errorf("system prompt is required")
	}
	user := b.User()
	if user == "" {
		return nil, fmt.Errorf("user prompt is empty")
	}
	return chat.Pair(b.system, user), nil
}
