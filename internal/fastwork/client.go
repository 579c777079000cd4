// Package fastwork is a client for the Fastwork job-board API.
package fastwork

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/korrio/jobradar/internal/model"
)

const defaultBaseURL = "https://jobboard-api.fastwork.co/api"

// Built-in category partitions with their Fastwork tag UUIDs.
var (
	CategoryApplicationDevelopment = model.CategoryInfo{
		ID:     "c82d3ff0-c1c1-4b39-b9e3-124e513eb66c",
		Name:   "พัฒนาแอปพลิเคชัน",
		NameEn: "Application Development",
	}
	CategoryWebDevelopment = model.CategoryInfo{
		ID:     "4c7ee9da-5509-4ff1-b7c2-df81fb2ef06c",
		Name:   "พัฒนาเว็บไซต์",
		NameEn: "Web Development",
	}
	CategoryITSolutions = model.CategoryInfo{
		ID:     "2a0001e2-d5d9-4fb8-92da-f4a805c47044",
		Name:   "ไอทีโซลูชั่น",
		NameEn: "IT Solutions",
	}
	CategoryIoTWork = model.CategoryInfo{
		ID:     "9f240bc1-fde2-4217-a5f5-f6fc02ba3f54",
		Name:   "งาน IoT",
		NameEn: "IoT Work",
	}
)

// AllCategories lists every known partition in board order.
var AllCategories = []model.CategoryInfo{
	CategoryApplicationDevelopment,
	CategoryWebDevelopment,
	CategoryITSolutions,
	CategoryIoTWork,
}

// CategoryByID looks a partition up by its tag UUID.
func CategoryByID(id string) (model.CategoryInfo, bool) {
	for _, c := range AllCategories {
		if c.ID == id {
			return c, true
		}
	}
	return model.CategoryInfo{}, false
}

// FetchOptions controls one jobs query.
type FetchOptions struct {
	Page           int
	PageSize       int
	TagIDs         []string
	OrderBy        string // defaults to inserted_at
	OrderDirection string // defaults to desc
}

// FetchResult is the normalized response of one jobs query.
type FetchResult struct {
	Listings []model.Listing
	Meta     Meta
}

// Meta mirrors the pagination block of the API response.
type Meta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// Client fetches job listings from the Fastwork job-board API.
type Client struct {
	baseURL    string
	categories []model.CategoryInfo
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client polling the given enabled categories.
func NewClient(categories []model.CategoryInfo, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		categories: categories,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Categories returns the enabled category partitions.
func (c *Client) Categories() []model.CategoryInfo {
	return c.categories
}

// jobsResponse is the top-level API response: {data: [...], meta: {...}}.
// Data is kept raw so each listing's original JSON survives into storage.
type jobsResponse struct {
	Data []json.RawMessage `json:"data"`
	Meta Meta              `json:"meta"`
}

// FetchJobs runs one paginated jobs query. A response with no data block is
// treated as empty, not as an error.
func (c *Client) FetchJobs(ctx context.Context, opts FetchOptions) (FetchResult, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.OrderBy == "" {
		opts.OrderBy = "inserted_at"
	}
	if opts.OrderDirection == "" {
		opts.OrderDirection = "desc"
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(opts.Page))
	params.Set("page_size", strconv.Itoa(opts.PageSize))
	params.Set("order_by[]", opts.OrderBy)
	params.Set("order_directions[]", opts.OrderDirection)
	for i, tagID := range opts.TagIDs {
		params.Set(fmt.Sprintf("filters[%d][field]", i), "tag_id")
		params.Set(fmt.Sprintf("filters[%d][value]", i), tagID)
	}

	reqURL := c.baseURL + "/jobs?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fastwork fetch: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "jobradar/1.0")

	c.logger.Debug("fastwork request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fastwork fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FetchResult{}, fmt.Errorf("fastwork fetch: unexpected status %d", resp.StatusCode)
	}

	var jr jobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return FetchResult{}, fmt.Errorf("fastwork fetch: %w", err)
	}

	listings := make([]model.Listing, 0, len(jr.Data))
	for _, raw := range jr.Data {
		var l model.Listing
		if err := json.Unmarshal(raw, &l); err != nil {
			c.logger.Warn("skipping malformed listing", "error", err)
			continue
		}
		l.Raw = raw
		l.URL = JobURL(l.ID)
		listings = append(listings, l)
	}

	return FetchResult{Listings: listings, Meta: jr.Meta}, nil
}

// FetchCategory fetches one page of listings for a single category partition
// and tags each listing with the category's English label.
func (c *Client) FetchCategory(ctx context.Context, category model.CategoryInfo, pageSize int) ([]model.Listing, error) {
	result, err := c.FetchJobs(ctx, FetchOptions{
		PageSize: pageSize,
		TagIDs:   []string{category.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", category.NameEn, err)
	}

	for i := range result.Listings {
		result.Listings[i].Category = category.NameEn
		if result.Listings[i].TagID == "" {
			result.Listings[i].TagID = category.ID
		}
	}
	return result.Listings, nil
}

// FetchAllCategories iterates every enabled category and concatenates the
// results. A failure on one category does not abort the rest; the error list
// reports which partitions failed.
func (c *Client) FetchAllCategories(ctx context.Context, pageSize int) ([]model.Listing, []error) {
	var all []model.Listing
	var errs []error

	for _, category := range c.categories {
		listings, err := c.FetchCategory(ctx, category, pageSize)
		if err != nil {
			c.logger.Error("category fetch failed", "category", category.NameEn, "error", err)
			errs = append(errs, err)
			continue
		}
		c.logger.Debug("category fetched", "category", category.NameEn, "listings", len(listings))
		all = append(all, listings...)
	}

	return all, errs
}

// JobURL builds the canonical public URL for a listing.
func JobURL(id string) string {
	return "https://jobboard.fastwork.co/jobs/" + id
}
