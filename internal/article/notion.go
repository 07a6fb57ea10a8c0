package article

import (
	"strings"
	"unicode/utf8"
)

// notionTextLimit is the maximum length of one rich_text content string.
const notionTextLimit = 2000

// notionLanguages is the subset of Notion code languages worth mapping; any
// other language renders as "plain text".
var notionLanguages = map[string]string{
	"bash": "bash", "sh": "shell", "shell": "shell", "c": "c", "c++": "c++", "cpp": "c++",
	"c#": "c#", "csharp": "c#", "css": "css", "diff": "diff", "docker": "docker",
	"dockerfile": "docker", "go": "go", "golang": "go", "graphql": "graphql", "html": "html",
	"java": "java", "javascript": "javascript", "js": "javascript", "json": "json",
	"kotlin": "kotlin", "makefile": "makefile", "markdown": "markdown", "md": "markdown",
	"php": "php", "python": "python", "py": "python", "ruby": "ruby", "rb": "ruby",
	"rust": "rust", "rs": "rust", "scala": "scala", "sql": "sql", "swift": "swift",
	"toml": "toml", "typescript": "typescript", "ts": "typescript", "yaml": "yaml", "yml": "yaml",
	"xml": "xml",
}

// NotionBlocks renders body blocks as Notion block objects. Heading levels are
// clamped into 1-3, lists become bulleted_list_item blocks, and text longer
// than the rich_text limit is split across several text objects.
func NotionBlocks(blocks []Block) []map[string]any {
	out := make([]map[string]any, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case BlockParagraph:
			out = append(out, notionTextBlock("paragraph", block.Content))
		case BlockHeading:
			level := min(max(block.Level, 1), 3)
			out = append(out, notionTextBlock("heading_"+string(rune('0'+level)), block.Content))
		case BlockList:
			for _, item := range block.Items {
				out = append(out, notionTextBlock("bulleted_list_item", item))
			}
		case BlockCode:
			out = append(out, map[string]any{
				"object": "block",
				"type":   "code",
				"code": map[string]any{
					"rich_text": RichText(block.Content),
					"language":  NotionLanguage(block.Language),
				},
			})
		}
	}
	return out
}

// NotionLanguage maps a code language onto Notion's accepted values.
func NotionLanguage(language string) string {
	if mapped, ok := notionLanguages[strings.ToLower(strings.TrimSpace(language))]; ok {
		return mapped
	}
	return "plain text"
}

// RichText splits text into rich_text objects of at most 2000 characters.
func RichText(text string) []map[string]any {
	chunks := splitRunes(text, notionTextLimit)
	out := make([]map[string]any, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, map[string]any{
			"type": "text",
			"text": map[string]any{"content": chunk},
		})
	}
	return out
}

func notionTextBlock(kind, text string) map[string]any {
	return map[string]any{
		"object": "block",
		"type":   kind,
		kind: map[string]any{
			"rich_text": RichText(strings.TrimSpace(text)),
		},
	}
}

func splitRunes(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
