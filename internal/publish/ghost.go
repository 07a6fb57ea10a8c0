package publish

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bluestar/internal/article"
	"bluestar/internal/logging"
	"bluestar/internal/services"
	"bluestar/internal/services/retry"
)

const (
	ghostTokenTTL      = 5 * time.Minute
	ghostExcerptLimit  = 300
	defaultHTTPTimeout = 30 * time.Second
)

// GhostConfig describes the Ghost Admin API connection.
type GhostConfig struct {
	APIURL string
	// AdminAPIKey is the "id:secret" pair from a Ghost custom integration;
	// the secret is hex encoded.
	AdminAPIKey string
	HTTPClient  *http.Client
	Retry       retry.Policy
	Logger      *slog.Logger
	Now         func() time.Time
}

// Ghost creates draft posts through the Ghost Admin API.
type Ghost struct {
	apiURL string
	keyID  string
	secret []byte
	http   *http.Client
	policy retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewGhost validates cfg and constructs a Ghost publisher.
func NewGhost(cfg GhostConfig) (*Ghost, error) {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("%w: ghost: api url is required", services.ErrConfiguration)
	}
	id, secretHex, ok := strings.Cut(strings.TrimSpace(cfg.AdminAPIKey), ":")
	if !ok || id == "" || secretHex == "" {
		return nil, fmt.Errorf("%w: ghost: admin api key must be id:secret", services.ErrConfiguration)
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: ghost: admin api key secret is not hex: %w", services.ErrConfiguration, err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	policy := cfg.Retry
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ghost{
		apiURL: apiURL,
		keyID:  id,
		secret: secret,
		http:   client,
		policy: policy,
		logger: logging.NewComponentLogger(cfg.Logger, "ghost"),
		now:    now,
	}, nil
}

// Name implements Publisher.
func (g *Ghost) Name() string { return TargetGhost }

type ghostTag struct {
	Name string `json:"name"`
}

type ghostPost struct {
	Title         string     `json:"title"`
	HTML          string     `json:"html"`
	Status        string     `json:"status"`
	Tags          []ghostTag `json:"tags,omitempty"`
	CustomExcerpt string     `json:"custom_excerpt,omitempty"`
}

type ghostResponse struct {
	Posts []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"posts"`
}

// Publish creates the post as a Ghost draft and returns its URL.
func (g *Ghost) Publish(ctx context.Context, post article.Post, _ Metadata) (Result, error) {
	payload := ghostPost{
		Title:         post.Title,
		HTML:          article.HTML(post.Body),
		Status:        "draft",
		CustomExcerpt: truncate(post.Summary, ghostExcerptLimit),
	}
	for _, tag := range post.Tags {
		payload.Tags = append(payload.Tags, ghostTag{Name: tag})
	}
	body, err := json.Marshal(map[string][]ghostPost{"posts": {payload}})
	if err != nil {
		return Result{}, fmt.Errorf("ghost: encode post: %w", err)
	}
	endpoint := g.apiURL + "/ghost/api/admin/posts/?source=html"

	var created ghostResponse
	err = g.policy.Do(ctx, "ghost: create post", retry.Transient, func(int) error {
		token, err := g.Token()
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("ghost: build request: %w", err)
		}
		req.Header.Set("Authorization", "Ghost "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept-Version", "v5.0")
		resp, err := g.http.Do(req)
		if err != nil {
			return fmt.Errorf("ghost: request failed: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ghost: read response: %w", err)
		}
		if resp.StatusCode >= 300 {
			return retry.NewStatusError(resp, data)
		}
		return json.Unmarshal(data, &created)
	})
	if err != nil {
		return Result{}, markError(err)
	}
	if len(created.Posts) == 0 {
		return Result{}, fmt.Errorf("%w: ghost: response contained no post", services.ErrExternalTool)
	}
	result := Result{Target: TargetGhost, ID: created.Posts[0].ID, URL: created.Posts[0].URL}
	g.logger.Info("ghost draft created",
		logging.String("post_id", result.ID),
		logging.String("url", result.URL),
	)
	return result, nil
}

// Token signs a short-lived Admin API JWT.
func (g *Ghost) Token() (string, error) {
	if len(g.secret) == 0 {
		return "", errors.New("ghost: missing signing secret")
	}
	now := g.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ghostTokenTTL).Unix(),
		"aud": "/admin/",
	})
	token.Header["kid"] = g.keyID
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("ghost: sign token: %w", err)
	}
	return signed, nil
}
