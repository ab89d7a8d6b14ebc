// Package catalog talks to the commerce platform's admin REST API. The
// storefront is the source of truth for products; everything downstream
// (rankings, metadata, achievements) works from the snapshot fetched here.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jerkyranks/jerkyranks-backend/pkg/config"
	pkgerrors "github.com/jerkyranks/jerkyranks-backend/pkg/errors"
	"github.com/jerkyranks/jerkyranks-backend/pkg/logger"
)

var (
	errShopDomainRequired  = errors.New("catalog shop domain is required")
	errAccessTokenRequired = errors.New("catalog access token is required")
	errLoggerRequired      = errors.New("catalog logger is required")
)

// Product is one storefront product as the admin API reports it.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	ProductType string    `json:"product_type"`
	Vendor      string    `json:"vendor"`
	Body        string    `json:"body,omitempty"`
	Tags        []string  `json:"tags"`
	ImageURL    string    `json:"image_url,omitempty"`
	Price       string    `json:"price,omitempty"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasTag reports whether the product carries the tag, case-insensitively.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Client pages through the admin products endpoint with centralized auth,
// logging, and error mapping.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	pageSize    int
	rankableTag string
	logg        *logger.Logger
}

// NewClient validates the credentials and builds the API wrapper.
func NewClient(cfg config.CatalogConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	domain := strings.TrimSpace(cfg.ShopDomain)
	if domain == "" {
		return nil, errShopDomainRequired
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 250
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	base := domain
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}
	base = strings.TrimSuffix(base, "/") + "/admin/api/" + cfg.APIVersion

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     base,
		accessToken: token,
		pageSize:    pageSize,
		rankableTag: cfg.RankableTag,
		logg:        logg,
	}, nil
}

// FetchRankable returns every active product carrying the rankable tag,
// walking all pages of the products endpoint.
func (c *Client) FetchRankable(ctx context.Context) ([]Product, error) {
	all, err := c.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	rankable := make([]Product, 0, len(all))
	for _, p := range all {
		if p.Status != "" && p.Status != "active" {
			continue
		}
		if c.rankableTag == "" || p.HasTag(c.rankableTag) {
			rankable = append(rankable, p)
		}
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"total":    len(all),
		"rankable": len(rankable),
	})
	c.logg.Debug(ctx, "catalog fetch complete")
	return rankable, nil
}

func (c *Client) fetchAll(ctx context.Context) ([]Product, error) {
	var (
		products []Product
		pageInfo string
	)
	for {
		page, next, err := c.fetchPage(ctx, pageInfo)
		if err != nil {
			return nil, err
		}
		products = append(products, page...)
		if next == "" {
			return products, nil
		}
		pageInfo = next
	}
}

// apiProduct is the wire shape; tags arrive as one comma-separated string.
type apiProduct struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	ProductType string    `json:"product_type"`
	Vendor      string    `json:"vendor"`
	BodyHTML    string    `json:"body_html"`
	Tags        string    `json:"tags"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
	Image       *struct {
		Src string `json:"src"`
	} `json:"image"`
	Variants []struct {
		Price string `json:"price"`
	} `json:"variants"`
}

func (c *Client) fetchPage(ctx context.Context, pageInfo string) ([]Product, string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
	} else {
		q.Set("status", "active")
	}

	endpoint := c.baseURL + "/products.json?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build catalog request")
	}
	req.Header.Set("X-Access-Token", c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "catalog request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, "", pkgerrors.New(pkgerrors.CodeDependency, "catalog rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("catalog responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload struct {
		Products []apiProduct `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode catalog response")
	}

	page := make([]Product, 0, len(payload.Products))
	for _, ap := range payload.Products {
		page = append(page, normalizeProduct(ap))
	}
	return page, nextPageInfo(resp.Header.Get("Link")), nil
}

func normalizeProduct(ap apiProduct) Product {
	p := Product{
		ID:          strconv.FormatInt(ap.ID, 10),
		Title:       ap.Title,
		Handle:      ap.Handle,
		ProductType: ap.ProductType,
		Vendor:      ap.Vendor,
		Body:        ap.BodyHTML,
		Status:      ap.Status,
		UpdatedAt:   ap.UpdatedAt,
	}
	if ap.Image != nil {
		p.ImageURL = ap.Image.Src
	}
	if len(ap.Variants) > 0 {
		p.Price = ap.Variants[0].Price
	}
	for _, tag := range strings.Split(ap.Tags, ",") {
		if t := strings.TrimSpace(tag); t != "" {
			p.Tags = append(p.Tags, t)
		}
	}
	return p
}

// nextPageInfo extracts the page_info cursor from the rel="next" entry of a
// Link header, empty when this was the last page.
func nextPageInfo(header string) string {
	for _, part := range strings.Split(header, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}
