package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"

	"bluestar/internal/article"
	"bluestar/internal/textutil"
)

const (
	defaultWidth = 100
	minWidth     = 40
	maxWidth     = 120
)

var targetLabels = map[string]string{
	"ghost":   "Publish to Ghost (draft)",
	"notion":  "Publish to Notion",
	"local":   "Save locally",
	"discard": "Discard",
}

// Console reviews drafts over a terminal.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	width    int
	renderer *lipgloss.Renderer
}

// NewConsole builds a console reviewer reading from in and writing to out.
// The preview width follows the terminal when out is one.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:       bufio.NewReader(in),
		out:      out,
		width:    terminalWidth(out),
		renderer: lipgloss.NewRenderer(out),
	}
}

// Interactive reports whether in is attached to a terminal.
func Interactive(in io.Reader) bool {
	file, ok := in.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PresentAndCollect implements Presenter. End of input counts as approval.
func (c *Console) PresentAndCollect(ctx context.Context, draft Draft) (Outcome, error) {
	fmt.Fprintln(c.out, c.renderDraft(draft))
	for {
		answer, err := c.readLine(ctx, "Approve this draft? [y/n]: ")
		if errors.Is(err, io.EOF) {
			return Outcome{Approved: true}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return Outcome{Approved: true}, nil
		case "n", "no":
			feedback, err := c.readLine(ctx, "What should change? ")
			if err != nil && !errors.Is(err, io.EOF) {
				return Outcome{}, err
			}
			return Outcome{Feedback: feedback}.Normalize(), nil
		default:
			fmt.Fprintln(c.out, "Please answer y or n.")
		}
	}
}

// Decide implements Decider with a numbered menu. End of input picks the
// local save when offered so an approved draft is never lost.
func (c *Console) Decide(ctx context.Context, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("review: no publish targets offered")
	}
	fmt.Fprintln(c.out, c.renderer.NewStyle().Bold(true).Render("Where should this draft go?"))
	for i, option := range options {
		label := targetLabels[option]
		if label == "" {
			label = textutil.TitleCase(option)
		}
		fmt.Fprintf(c.out, "  %d) %s\n", i+1, label)
	}
	prompt := fmt.Sprintf("Choose 1-%d: ", len(options))
	for {
		answer, err := c.readLine(ctx, prompt)
		if errors.Is(err, io.EOF) {
			return fallbackTarget(options), nil
		}
		if err != nil {
			return "", err
		}
		if n, convErr := strconv.Atoi(answer); convErr == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		for _, option := range options {
			if strings.EqualFold(answer, option) {
				return option, nil
			}
		}
		fmt.Fprintf(c.out, "Please enter a number from 1 to %d.\n", len(options))
	}
}

func (c *Console) readLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) renderDraft(draft Draft) string {
	title := fmt.Sprintf("Draft for %s", draft.Subject)
	if draft.MaxIterations > 0 {
		title += fmt.Sprintf("  (revision %d of %d)", draft.Iteration, draft.MaxIterations)
	}
	header := c.renderer.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Render(title)

	body := c.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1).
		Width(c.width - 2).
		Render(strings.TrimRight(article.Markdown(draft.Post), "\n"))

	return strings.Join([]string{header, c.analysisTable(draft), body}, "\n")
}

func (c *Console) analysisTable(draft Draft) string {
	interp := draft.Interpretation
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Analysis", ""})
	tw.AppendRow(table.Row{"Category", textutil.TitleCase(string(interp.Category))})
	tw.AppendRow(table.Row{"Summary", interp.Summary})
	if interp.Impact != "" {
		tw.AppendRow(table.Row{"Impact", interp.Impact})
	}
	tw.AppendRow(table.Row{"Completeness", fmt.Sprintf("%.0f%%", interp.Completeness*100)})
	tw.AppendRow(table.Row{"Words", strconv.Itoa(draft.Post.WordCount())})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, WidthMax: 14},
		{Number: 2, Align: text.AlignLeft, WidthMax: max(c.width-22, 20)},
	})
	return tw.Render()
}

func fallbackTarget(options []string) string {
	for _, option := range options {
		if option == "local" {
			return option
		}
	}
	return options[len(options)-1]
}

func terminalWidth(out io.Writer) int {
	file, ok := out.(*os.File)
	if !ok || !isatty.IsTerminal(file.Fd()) {
		return defaultWidth
	}
	ws, err := unix.IoctlGetWinsize(int(file.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return defaultWidth
	}
	return min(max(int(ws.Col), minWidth), maxWidth)
}
