package article

import (
	"errors"
	"fmt"
	"strings"
)

// BlockType names the kind of a content block.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeading   BlockType = "heading"
	BlockList      BlockType = "list"
	BlockCode      BlockType = "code"
)

// Block is one typed unit of body content. Only the fields relevant to Type
// are populated: Content for paragraph, heading, and code; Level for heading;
// Items for list; Language for code.
type Block struct {
	Type     BlockType `json:"type" yaml:"type"`
	Level    int       `json:"level,omitempty" yaml:"level,omitempty"`
	Content  string    `json:"content,omitempty" yaml:"content,omitempty"`
	Items    []string  `json:"items,omitempty" yaml:"items,omitempty"`
	Language string    `json:"language,omitempty" yaml:"language,omitempty"`
}

// Paragraph builds a paragraph block.
func Paragraph(text string) Block { return Block{Type: BlockParagraph, Content: text} }

// Heading builds a heading block.
func Heading(level int, text string) Block { return Block{Type: BlockHeading, Level: level, Content: text} }

// List builds a list block.
func List(items ...string) Block { return Block{Type: BlockList, Items: items} }

// Code builds a code block.
func Code(language, content string) Block {
	return Block{Type: BlockCode, Language: language, Content: content}
}

// Validate reports a block whose populated fields do not match its type.
func (b Block) Validate() error {
	switch b.Type {
	case BlockParagraph:
		if strings.TrimSpace(b.Content) == "" {
			return errors.New("paragraph block has no content")
		}
	case BlockHeading:
		if strings.TrimSpace(b.Content) == "" {
			return errors.New("heading block has no content")
		}
		if b.Level < 1 || b.Level > 6 {
			return fmt.Errorf("heading level %d out of range 1-6", b.Level)
		}
	case BlockList:
		if len(b.Items) == 0 {
			return errors.New("list block has no items")
		}
	case BlockCode:
		if b.Content == "" {
			return errors.New("code block has no content")
		}
	default:
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

// Post is a generated article.
type Post struct {
	Title   string   `json:"title" yaml:"title"`
	Author  string   `json:"author" yaml:"author"`
	Date    string   `json:"date" yaml:"date"`
	Tags    []string `json:"tags" yaml:"tags"`
	Summary string   `json:"summary" yaml:"summary"`
	Body    []Block  `json:"body" yaml:"-"`
}

// Validate checks the post has a title, a body, and well-formed blocks.
func (p Post) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New("post has no title")
	}
	if len(p.Body) == 0 {
		return errors.New("post has no body")
	}
	for i, block := range p.Body {
		if err := block.Validate(); err != nil {
			return fmt.Errorf("body block %d: %w", i, err)
		}
	}
	return nil
}

// Normalize trims metadata, lowercases the block type, clamps heading levels
// into 1-6, and drops blank tags and empty list items.
func (p Post) Normalize() Post {
	p.Title = strings.TrimSpace(p.Title)
	p.Author = strings.TrimSpace(p.Author)
	p.Date = strings.TrimSpace(p.Date)
	p.Summary = strings.TrimSpace(p.Summary)
	tags := make([]string, 0, len(p.Tags))
	for _, tag := range p.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	p.Tags = tags
	body := make([]Block, 0, len(p.Body))
	for _, block := range p.Body {
		block.Type = BlockType(strings.ToLower(strings.TrimSpace(string(block.Type))))
		if block.Type == BlockHeading {
			block.Level = min(max(block.Level, 1), 6)
		}
		if block.Type == BlockList {
			items := make([]string, 0, len(block.Items))
			for _, item := range block.Items {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			block.Items = items
		}
		body = append(body, block)
	}
	p.Body = body
	return p
}

// WordCount approximates the readable length of the body.
func (p Post) WordCount() int {
	count := 0
	for _, block := range p.Body {
		switch block.Type {
		case BlockList:
			for _, item := range block.Items {
				count += len(strings.Fields(item))
			}
		case BlockCode:
		default:
			count += len(strings.Fields(block.Content))
		}
	}
	return count
}
