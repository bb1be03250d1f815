// Package zbooks scrapes paid invoice records out of the Zoho Books
// accounting demo's invoice table.
package zbooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"zbooks-collector/lib/restyutil"
)

const DefaultBaseUrl = "https://www.zoho.com/books/accounting-software-demo/invoices"
const DefaultMaxPages = 5

type Status string

const (
	StatusPaid          Status = "Paid"
	StatusPartiallyPaid Status = "Partially Paid"
)

// InvoiceRecord is one collected invoice row, fields are kept exactly
// as the page renders them (amount like "$25116", paid date like
// "18 Sep 2025").
type InvoiceRecord struct {
	InvoiceID string
	Customer  string
	Amount    string
	PaidAt    string
	Status    Status
}

// Cursor identifies a page of the invoice table, the zero value is the
// first page.
type Cursor int

type Client struct {
	BaseUrl  *url.URL
	Http     *resty.Client
	MaxPages int
}

type ClientOptions struct {
	BaseUrl string
	// MaxPages bounds pagination, 0 falls back to DefaultMaxPages.
	MaxPages int
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		BaseUrl:  baseUrl,
		Http:     client,
		MaxPages: opts.MaxPages,
	}, nil
}

// NavigateToInvoices loads the invoices view, priming the session
// cookie jar. Must be called once before ListRows.
func (c *Client) NavigateToInvoices(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:NavigateToInvoices")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.BaseUrl.String())
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch invoices view")
		return err
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "invoices view returned an error status")
		return &StatusError{Code: res.StatusCode()}
	}

	slog.DebugContext(ctx, "navigated to invoices view", "url", c.BaseUrl.String())
	return nil
}

// ListRows fetches one page of the invoice table and extracts the rows
// with status Paid / Partially Paid. done reports that pagination is
// finished, either because the next button is exhausted or because the
// MaxPages safety bound has been reached.
func (c *Client) ListRows(ctx context.Context, cursor Cursor) (rows []InvoiceRecord, next Cursor, done bool, err error) {
	ctx, span := tracer.Start(ctx, "client:ListRows")
	defer span.End()

	link := *c.BaseUrl
	query := link.Query()
	query.Set("page", strconv.Itoa(int(cursor)+1))
	link.RawQuery = query.Encode()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(link.String())
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch invoice page")
		return nil, cursor, false, err
	}
	if res.StatusCode() >= 400 {
		span.SetStatus(codes.Error, "invoice page returned an error status")
		return nil, cursor, false, &StatusError{Code: res.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, cursor, false, err
	}

	rows, err = extractInvoices(ctx, doc)
	if err != nil {
		span.SetStatus(codes.Error, "failed to extract invoices")
		return nil, cursor, false, err
	}

	next = cursor + 1
	done = int(next) >= c.MaxPages || lastPage(doc)
	return rows, next, done, nil
}

// cell layout of the demo's invoice table:
// 1: DATE, 2: INVOICE#, 4: CUSTOMER, 5: STATUS, 7: AMOUNT
func extractInvoices(ctx context.Context, doc *goquery.Document) ([]InvoiceRecord, error) {
	table := doc.Find("table tbody tr")
	if doc.Find("table").Length() == 0 {
		return nil, fmt.Errorf("malformed invoices page: no table found")
	}

	var invoices []InvoiceRecord
	table.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		// skip incomplete rows
		if cells.Length() < 8 {
			return
		}

		record := InvoiceRecord{
			InvoiceID: strings.TrimSpace(cells.Eq(2).Text()),
			Customer:  strings.TrimSpace(cells.Eq(4).Text()),
			Amount:    strings.TrimSpace(cells.Eq(7).Text()),
			PaidAt:    strings.TrimSpace(cells.Eq(1).Text()),
			Status:    Status(strings.TrimSpace(cells.Eq(5).Text())),
		}
		if record.Status != StatusPaid && record.Status != StatusPartiallyPaid {
			return
		}

		slog.DebugContext(
			ctx, "collected invoice",
			"invoice_id", record.InvoiceID,
			"customer", record.Customer,
			"amount", record.Amount,
			"status", record.Status,
		)
		invoices = append(invoices, record)
	})

	return invoices, nil
}

// the demo renders prev/page/next buttons inside #pagination, the
// next button is the third one and carries `disabled` on the last page
func lastPage(doc *goquery.Document) bool {
	nextButton := doc.Find("#pagination button").Eq(2)
	if nextButton.Length() == 0 {
		return true
	}
	_, disabled := nextButton.Attr("disabled")
	return disabled
}
