package article

import (
	"html"
	"strconv"
	"strings"
)

// HTML renders the body blocks as an HTML fragment suitable for the Ghost
// Admin API html source. All text is escaped.
func HTML(blocks []Block) string {
	var b strings.Builder
	for _, block := range blocks {
		switch block.Type {
		case BlockParagraph:
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(strings.TrimSpace(block.Content)))
			b.WriteString("</p>\n")
		case BlockHeading:
			tag := "h" + strconv.Itoa(min(max(block.Level, 1), 6))
			b.WriteString("<" + tag + ">")
			b.WriteString(html.EscapeString(strings.TrimSpace(block.Content)))
			b.WriteString("</" + tag + ">\n")
		case BlockList:
			b.WriteString("<ul>\n")
			for _, item := range block.Items {
				b.WriteString("<li>")
				b.WriteString(html.EscapeString(strings.TrimSpace(item)))
				b.WriteString("</li>\n")
			}
			b.WriteString("</ul>\n")
		case BlockCode:
			b.WriteString("<pre><code")
			if lang := strings.TrimSpace(block.Language); lang != "" {
				b.WriteString(` class="language-`)
				b.WriteString(html.EscapeString(strings.ToLower(lang)))
				b.WriteString(`"`)
			}
			b.WriteString(">")
			b.WriteString(html.EscapeString(block.Content))
			b.WriteString("</code></pre>\n")
		}
	}
	return b.String()
}

// HTMLDocument renders a standalone page with title, metadata, summary, and
// body, used for local drafts.
func HTMLDocument(p Post) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>" + html.EscapeString(p.Title) + "</title>\n")
	if p.Author != "" {
		b.WriteString(`<meta name="author" content="` + html.EscapeString(p.Author) + "\">\n")
	}
	if len(p.Tags) > 0 {
		b.WriteString(`<meta name="keywords" content="` + html.EscapeString(strings.Join(p.Tags, ", ")) + "\">\n")
	}
	b.WriteString("</head>\n<body>\n<article>\n")
	b.WriteString("<h1>" + html.EscapeString(p.Title) + "</h1>\n")
	if p.Author != "" || p.Date != "" {
		b.WriteString("<p class=\"byline\">")
		b.WriteString(html.EscapeString(byline(p.Author, p.Date)))
		b.WriteString("</p>\n")
	}
	if p.Summary != "" {
		b.WriteString("<p class=\"summary\"><em>" + html.EscapeString(p.Summary) + "</em></p>\n")
	}
	b.WriteString(HTML(p.Body))
	b.WriteString("</article>\n</body>\n</html>\n")
	return b.String()
}

func byline(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " · ")
}
