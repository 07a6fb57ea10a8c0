package article

import (
	"strings"
)

// Markdown renders the full post: title, italic summary, then the body.
func Markdown(p Post) string {
	parts := make([]string, 0, 3)
	if p.Title != "" {
		parts = append(parts, "# "+p.Title)
	}
	if p.Summary != "" {
		parts = append(parts, "_"+p.Summary+"_")
	}
	if body := MarkdownBody(p.Body); body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// MarkdownBody renders blocks separated by blank lines.
func MarkdownBody(blocks []Block) string {
	rendered := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if text := markdownBlock(block); text != "" {
			rendered = append(rendered, text)
		}
	}
	return strings.Join(rendered, "\n\n")
}

func markdownBlock(b Block) string {
	switch b.Type {
	case BlockParagraph:
		return strings.TrimSpace(b.Content)
	case BlockHeading:
		level := min(max(b.Level, 1), 6)
		return strings.Repeat("#", level) + " " + strings.TrimSpace(b.Content)
	case BlockList:
		lines := make([]string, 0, len(b.Items))
		for _, item := range b.Items {
			lines = append(lines, "- "+strings.TrimSpace(item))
		}
		return strings.Join(lines, "\n")
	case BlockCode:
		fence := "```"
		for strings.Contains(b.Content, fence) {
			fence += "`"
		}
		return fence + strings.TrimSpace(b.Language) + "\n" + strings.TrimRight(b.Content, "\n") + "\n" + fence
	default:
		return ""
	}
}
