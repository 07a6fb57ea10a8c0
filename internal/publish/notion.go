package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"bluestar/internal/article"
	"bluestar/internal/logging"
	"bluestar/internal/services"
	"bluestar/internal/services/retry"
)

const (
	defaultNotionBaseURL = "https://api.notion.com/v1"
	notionVersion        = "2022-06-28"
	notionChildrenLimit  = 100
)

var notionIDPattern = regexp.MustCompile(`[0-9a-fA-F]{32}|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// NotionConfig describes the Notion API connection.
type NotionConfig struct {
	Token string
	// DatabaseID may be a database or page id, or a Notion URL containing one.
	DatabaseID string
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Policy
	Logger     *slog.Logger
}

// Notion creates pages in a Notion database, or under a page when the
// configured id refers to one.
type Notion struct {
	token    string
	parentID string
	baseURL  string
	http     *http.Client
	policy   retry.Policy
	logger   *slog.Logger
}

// NewNotion validates cfg and constructs a Notion publisher.
func NewNotion(cfg NotionConfig) (*Notion, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: notion: token is required", services.ErrConfiguration)
	}
	parentID := NotionID(cfg.DatabaseID)
	if parentID == "" {
		return nil, fmt.Errorf("%w: notion: database id is required", services.ErrConfiguration)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultNotionBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Notion{
		token:    token,
		parentID: parentID,
		baseURL:  base,
		http:     client,
		policy:   policy,
		logger:   logging.NewComponentLogger(cfg.Logger, "notion"),
	}, nil
}

// NotionID extracts the object id from a raw id or a Notion URL. The last
// id in the value wins since Notion URLs end with the page id.
func NotionID(value string) string {
	matches := notionIDPattern.FindAllString(strings.TrimSpace(value), -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(matches[len(matches)-1], "-", ""))
}

// Name implements Publisher.
func (n *Notion) Name() string { return TargetNotion }

type notionSchema struct {
	titleProperty string
	properties    map[string]string
	pageParent    bool
}

// Publish creates a page for post and returns its URL.
func (n *Notion) Publish(ctx context.Context, post article.Post, _ Metadata) (Result, error) {
	schema, err := n.discoverSchema(ctx)
	if err != nil {
		return Result{}, err
	}
	blocks := article.NotionBlocks(post.Body)
	inline := blocks
	if len(inline) > notionChildrenLimit {
		inline = blocks[:notionChildrenLimit]
	}

	parent := map[string]any{"database_id": n.parentID}
	if schema.pageParent {
		parent = map[string]any{"page_id": n.parentID}
	}
	payload := map[string]any{
		"parent":     parent,
		"properties": notionProperties(post, schema),
		"children":   inline,
	}
	var created struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := n.call(ctx, http.MethodPost, "/pages", payload, &created); err != nil {
		return Result{}, err
	}
	if created.ID == "" {
		return Result{}, fmt.Errorf("%w: notion: response contained no page id", services.ErrExternalTool)
	}
	for start := len(inline); start < len(blocks); start += notionChildrenLimit {
		end := min(start+notionChildrenLimit, len(blocks))
		chunk := map[string]any{"children": blocks[start:end]}
		if err := n.call(ctx, http.MethodPatch, "/blocks/"+created.ID+"/children", chunk, nil); err != nil {
			return Result{}, fmt.Errorf("notion: append blocks %d-%d: %w", start, end, err)
		}
	}
	url := created.URL
	if url == "" {
		url = created.ID
	}
	n.logger.Info("notion page created",
		logging.String("page_id", created.ID),
		logging.String("url", url),
		logging.Int("blocks", len(blocks)),
		logging.Bool("page_parent", schema.pageParent),
	)
	return Result{Target: TargetNotion, ID: created.ID, URL: url}, nil
}

func (n *Notion) discoverSchema(ctx context.Context) (notionSchema, error) {
	var db struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	err := n.call(ctx, http.MethodGet, "/databases/"+n.parentID, nil, &db)
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) && strings.Contains(statusErr.Body, "is a page") {
			n.logger.Debug("notion id refers to a page; creating a child page")
			return notionSchema{titleProperty: "title", pageParent: true}, nil
		}
		return notionSchema{}, fmt.Errorf("notion: read database: %w", err)
	}
	schema := notionSchema{properties: make(map[string]string, len(db.Properties))}
	for name, prop := range db.Properties {
		schema.properties[name] = prop.Type
		if prop.Type == "title" {
			schema.titleProperty = name
		}
	}
	if schema.titleProperty == "" {
		return notionSchema{}, fmt.Errorf("%w: notion: database has no title property", services.ErrConfiguration)
	}
	return schema, nil
}

func notionProperties(post article.Post, schema notionSchema) map[string]any {
	props := map[string]any{
		schema.titleProperty: map[string]any{"title": article.RichText(post.Title)},
	}
	if schema.properties["Summary"] == "rich_text" && post.Summary != "" {
		props["Summary"] = map[string]any{"rich_text": article.RichText(post.Summary)}
	}
	if schema.properties["Tags"] == "multi_select" && len(post.Tags) > 0 {
		tags := make([]map[string]string, 0, len(post.Tags))
		for _, tag := range post.Tags {
			// multi_select option names may not contain commas.
			tags = append(tags, map[string]string{"name": strings.ReplaceAll(tag, ",", " ")})
		}
		props["Tags"] = map[string]any{"multi_select": tags}
	}
	if schema.properties["Author"] == "rich_text" && post.Author != "" {
		props["Author"] = map[string]any{"rich_text": article.RichText(post.Author)}
	}
	if schema.properties["Status"] == "select" {
		props["Status"] = map[string]any{"select": map[string]string{"name": "Draft"}}
	}
	return props
}

func (n *Notion) call(ctx context.Context, method, path string, payload, dst any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("notion: encode %s: %w", path, err)
		}
	}
	err := n.policy.Do(ctx, "notion: "+method+" "+path, retry.Transient, func(int) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("notion: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+n.token)
		req.Header.Set("Notion-Version", notionVersion)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := n.http.Do(req)
		if err != nil {
			return fmt.Errorf("notion: request failed: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("notion: read response: %w", err)
		}
		if resp.StatusCode >= 300 {
			return retry.NewStatusError(resp, data)
		}
		if dst == nil {
			return nil
		}
		return json.Unmarshal(data, dst)
	})
	if err != nil {
		return markError(err)
	}
	return nil
}
