// Package hfdatasets reads rows of a Hugging Face dataset through the
// datasets-server REST API. It backs the index build (caption texts) and item
// display (image URL for an id).
package hfdatasets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/lookbook/internal/domain"
	"github.com/kailas-cloud/lookbook/internal/retry"
)

// Defaults for the public datasets-server.
const (
	DefaultBaseURL     = "https://datasets-server.huggingface.co"
	DefaultDataset     = "tomytjandra/h-and-m-fashion-caption"
	DefaultConfig      = "default"
	DefaultSplit       = "train"
	DefaultTextColumn  = "text"
	DefaultImageColumn = "image"
	// MaxPageSize is the largest "length" the rows endpoint accepts.
	MaxPageSize = 100
)

// Config selects the dataset and tunes the client.
type Config struct {
	BaseURL     string
	Dataset     string
	Config      string
	Split       string
	TextColumn  string
	ImageColumn string
	Token       string        // optional Hugging Face token for gated datasets
	Timeout     time.Duration // per request
	RateLimit   float64       // requests per second, 0 = unlimited
	Attempts    int
	Logger      *zap.Logger
}

// Row is one dataset row. Index is the row offset in the split and doubles as
// the catalog item id.
type Row struct {
	Index    int
	Text     string
	ImageURL string
}

// Client talks to the datasets-server rows endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *zap.Logger
}

// New creates a dataset client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultDataset
	}
	if cfg.Config == "" {
		cfg.Config = DefaultConfig
	}
	if cfg.Split == "" {
		cfg.Split = DefaultSplit
	}
	if cfg.TextColumn == "" {
		cfg.TextColumn = DefaultTextColumn
	}
	if cfg.ImageColumn == "" {
		cfg.ImageColumn = DefaultImageColumn
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		policy: retry.Policy{
			Attempts:  cfg.Attempts,
			BaseDelay: time.Second,
			MaxDelay:  10 * time.Second,
			Jitter:    true,
		},
		logger: logger,
	}
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int                        `json:"row_idx"`
		Row    map[string]json.RawMessage `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

type imageCell struct {
	Src string `json:"src"`
}

// Rows returns up to length rows starting at offset, and the split size.
func (c *Client) Rows(ctx context.Context, offset, length int) ([]Row, int, error) {
	if offset < 0 || length < 1 || length > MaxPageSize {
		return nil, 0, fmt.Errorf("%w: offset %d length %d (max %d)", domain.ErrInvalidRequest, offset, length, MaxPageSize)
	}

	var resp rowsResponse
	err := retry.Do(ctx, c.policy, func(ctx context.Context, _ int) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(fmt.Errorf("rate limiter: %w", err))
		}
		return c.get(ctx, offset, length, &resp)
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("Dataset rows request failed, retrying",
			zap.Int("offset", offset),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fetch rows %d+%d: %w", offset, length, err)
	}

	rows := make([]Row, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		row := Row{Index: r.RowIdx}
		if raw, ok := r.Row[c.cfg.TextColumn]; ok {
			// Null or non-string cells leave Text empty; the builder skips them.
			_ = json.Unmarshal(raw, &row.Text)
		}
		if raw, ok := r.Row[c.cfg.ImageColumn]; ok {
			var img imageCell
			if json.Unmarshal(raw, &img) == nil {
				row.ImageURL = img.Src
			}
		}
		rows = append(rows, row)
	}
	return rows, resp.NumRowsTotal, nil
}

// Row returns the row at idx.
func (c *Client) Row(ctx context.Context, idx int) (Row, error) {
	rows, _, err := c.Rows(ctx, idx, 1)
	if err != nil {
		return Row{}, err
	}
	for _, r := range rows {
		if r.Index == idx {
			return r, nil
		}
	}
	return Row{}, fmt.Errorf("%w: row %d", domain.ErrItemNotFound, idx)
}

// Texts pages through the split and returns the text column; texts[i] is row i.
// limit > 0 stops after that many rows.
func (c *Client) Texts(ctx context.Context, limit int) ([]string, error) {
	var texts []string
	total := -1
	for offset := 0; total < 0 || offset < total; offset += MaxPageSize {
		if limit > 0 && offset >= limit {
			break
		}
		length := MaxPageSize
		if limit > 0 {
			length = min(length, limit-offset)
		}
		rows, n, err := c.Rows(ctx, offset, length)
		if err != nil {
			return nil, err
		}
		if total < 0 {
			total = n
			if limit > 0 {
				total = min(total, limit)
			}
			texts = make([]string, total)
			c.logger.Info("Reading dataset", zap.String("dataset", c.cfg.Dataset), zap.Int("rows", total))
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			if r.Index >= 0 && r.Index < len(texts) {
				texts[r.Index] = r.Text
			}
		}
	}
	return texts, nil
}

func (c *Client) get(ctx context.Context, offset, length int, out *rowsResponse) error {
	q := url.Values{}
	q.Set("dataset", c.cfg.Dataset)
	q.Set("config", c.cfg.Config)
	q.Set("split", c.cfg.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/rows?"+q.Encode(), nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("datasets-server: status %d: %s", resp.StatusCode, body)
		if isPermanentStatus(resp.StatusCode) {
			return retry.Permanent(err)
		}
		return err
	}

	*out = rowsResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func isPermanentStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}
