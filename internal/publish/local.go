package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"bluestar/internal/article"
	"bluestar/internal/fileutil"
	"bluestar/internal/logging"
	"bluestar/internal/services"
	"bluestar/internal/textutil"
)

const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"

	lockFileName   = ".bluestar.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// LocalConfig describes where drafts are written.
type LocalConfig struct {
	Dir    string
	Format string
	Logger *slog.Logger
	Now    func() time.Time
}

// Local saves drafts as files in a directory. Writers from concurrent runs
// are serialized through a lock file in the directory.
type Local struct {
	dir    string
	format string
	logger *slog.Logger
	now    func() time.Time
}

// NewLocal constructs the local save target.
func NewLocal(cfg LocalConfig) (*Local, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("%w: local: output directory is required", services.ErrConfiguration)
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	switch format {
	case "", FormatHTML:
		format = FormatHTML
	case FormatMarkdown, "md":
		format = FormatMarkdown
	default:
		return nil, fmt.Errorf("%w: local: unsupported format %q", services.ErrConfiguration, cfg.Format)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Local{
		dir:    dir,
		format: format,
		logger: logging.NewComponentLogger(cfg.Logger, "local"),
		now:    now,
	}, nil
}

type frontmatter struct {
	Title    string   `yaml:"title"`
	Author   string   `yaml:"author,omitempty"`
	Date     string   `yaml:"date,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Summary  string   `yaml:"summary,omitempty"`
	Repo     string   `yaml:"repo,omitempty"`
	Commit   string   `yaml:"commit,omitempty"`
	Category string   `yaml:"category,omitempty"`
}

// Save writes post to {date}_{sha7}_{slug}.{html|md} and returns the path.
func (l *Local) Save(ctx context.Context, post article.Post, meta Metadata) (Result, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("local: create output dir: %w", err)
	}
	content, err := l.render(post, meta)
	if err != nil {
		return Result{}, err
	}

	lock := flock.New(filepath.Join(l.dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Result{}, fmt.Errorf("local: acquire output lock: %w", err)
	}
	if !locked {
		return Result{}, fmt.Errorf("%w: local: output directory is locked", services.ErrTransient)
	}
	defer func() { _ = lock.Unlock() }()

	path := fileutil.UniquePath(filepath.Join(l.dir, l.FileName(post, meta)))
	if err := fileutil.WriteFileAtomic(path, content, 0o644); err != nil {
		return Result{}, fmt.Errorf("local: write draft: %w", err)
	}
	l.logger.Info("draft saved",
		logging.String("path", path),
		logging.String("format", l.format),
		logging.Int("bytes", len(content)),
	)
	return Result{Target: TargetLocal, Path: path}, nil
}

// FileName builds the draft filename for post.
func (l *Local) FileName(post article.Post, meta Metadata) string {
	when := meta.When
	if when.IsZero() {
		when = l.now()
	}
	sha := meta.SHA
	if sha == "" {
		sha = meta.Subject.SHA
	}
	if len(sha) > 7 {
		sha = sha[:7]
	}
	ext := ".html"
	if l.format == FormatMarkdown {
		ext = ".md"
	}
	name := when.Format(time.DateOnly) + "_" + sha + "_" + textutil.Slugify(post.Title) + ext
	return textutil.SanitizeFileName(name)
}

func (l *Local) render(post article.Post, meta Metadata) ([]byte, error) {
	if l.format == FormatHTML {
		return []byte(article.HTMLDocument(post)), nil
	}
	sha := meta.SHA
	if sha == "" {
		sha = meta.Subject.SHA
	}
	front, err := yaml.Marshal(frontmatter{
		Title:    post.Title,
		Author:   post.Author,
		Date:     post.Date,
		Tags:     post.Tags,
		Summary:  post.Summary,
		Repo:     meta.Subject.Repo,
		Commit:   sha,
		Category: string(meta.Category),
	})
	if err != nil {
		return nil, fmt.Errorf("local: encode frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString(article.Markdown(post))
	return []byte(b.String()), nil
}
