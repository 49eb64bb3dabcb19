package portal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/pkg/config"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

// PageExtractor turns a live search page into snapshots.
type PageExtractor interface {
	Snapshots(body []byte) ([]models.EnrollmentSnapshot, error)
}

// CatalogExtractor turns the catalog export into rows.
type CatalogExtractor interface {
	CatalogRows(body []byte) ([]models.CatalogRow, error)
}

// Client talks to the registration portal. Every call is a single request
// bounded by its own timeout and is never retried.
type Client struct {
	http    *resty.Client
	cfg     config.PortalConfig
	pages   PageExtractor
	catalog CatalogExtractor
	logger  *zap.Logger
}

// NewClient builds a portal client.
func NewClient(cfg config.PortalConfig, pages PageExtractor, catalog CatalogExtractor, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = 10 * time.Second
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 3 * time.Second
	}
	http := resty.New().
		SetRetryCount(0).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/vnd.ms-excel")
	return &Client{http: http, cfg: cfg, pages: pages, catalog: catalog, logger: logger}
}

// FetchFullCatalog downloads and extracts the catalog export.
func (c *Client) FetchFullCatalog(ctx context.Context) ([]models.CatalogRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CatalogTimeout)
	defer cancel()

	params := c.formParams()
	params["workType"] = "EX"

	body, err := c.post(ctx, c.cfg.CatalogURL, params)
	if err != nil {
		return nil, err
	}
	rows, err := c.catalog.CatalogRows(body)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrParse, err, "failed to extract catalog export")
	}
	c.logger.Debug("catalog fetched", zap.Int("rows", len(rows)), zap.Int("bytes", len(body)))
	return rows, nil
}

// FetchEnrollmentPage downloads one page of live counts.
func (c *Client) FetchEnrollmentPage(ctx context.Context, page int) ([]models.EnrollmentSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PageTimeout)
	defer cancel()

	params := c.formParams()
	params["workType"] = "S"
	params["pageNo"] = strconv.Itoa(page)

	body, err := c.post(ctx, c.cfg.SearchURL, params)
	if err != nil {
		return nil, err
	}
	snapshots, err := c.pages.Snapshots(body)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrParse, err, fmt.Sprintf("failed to extract page %d", page))
	}
	return snapshots, nil
}

func (c *Client) post(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(params).
		Post(url)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrTransport, err, fmt.Sprintf("request to %s failed", url))
	}
	if !res.IsSuccess() {
		return nil, appErrors.WrapAs(appErrors.ErrTransport,
			fmt.Errorf("unexpected status %d", res.StatusCode()),
			fmt.Sprintf("request to %s failed", url))
	}
	return res.Body(), nil
}

// formParams returns the fixed term parameters, with operator supplied
// extras layered on top.
func (c *Client) formParams() map[string]string {
	params := map[string]string{
		"srchOpenSchyy": c.cfg.Year,
		"srchOpenShtm":  c.cfg.Semester,
	}
	if c.cfg.SectionGroup != "" {
		params["srchOpenUpDeptCd"] = c.cfg.SectionGroup
	}
	for k, v := range c.cfg.ExtraParams {
		params[k] = v
	}
	return params
}
