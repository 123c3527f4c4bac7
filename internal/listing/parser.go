// Package listing scrapes a BeForward vehicle page into a structured record:
// car name, spec table, destination-port price and the photo bundle URL.
// The pipeline consumes it through the Source interface, so any other
// extraction method can be dropped in.
package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/daniarmadeit/idi-motors-bot/internal/config"
)

const siteBase = "https://www.beforward.jp"

// Spec keys that carry no value for a buyer.
var excludedSpecKeys = []string{"chassis", "sub ref", "ref. no", "ref no"}

type SpecRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type CarData struct {
	URL              string    `json:"url"`
	Name             string    `json:"name"`
	Price            string    `json:"price,omitempty"`
	Specs            []SpecRow `json:"specs"`
	PhotoDownloadURL string    `json:"photo_download_url,omitempty"`
	PhotoPageURLs    []string  `json:"photo_page_urls,omitempty"`
}

// Source is the scrape capability the pipeline depends on.
type Source interface {
	Parse(ctx context.Context, pageURL string) (*CarData, error)
}

type Parser struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	countryID int
}

func NewParser(client *http.Client, cfg config.ScraperConfig) *Parser {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.CountryID == 0 {
		cfg.CountryID = 88 // Zambia, the primary export destination
	}
	return &Parser{
		client:    client,
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout * time.Second,
		countryID: cfg.CountryID,
	}
}

func (p *Parser) Parse(ctx context.Context, pageURL string) (*CarData, error) {
	fetchURL := p.withCountryParam(pageURL)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	data := &CarData{
		URL:              pageURL,
		Name:             extractName(doc),
		Price:            extractPortPrice(doc),
		Specs:            extractSpecs(doc),
		PhotoDownloadURL: extractPhotoDownloadURL(doc),
	}
	if data.PhotoDownloadURL == "" {
		data.PhotoPageURLs = collectPhotoURLs(doc)
	}
	return data, nil
}

// withCountryParam pins the destination country so the page renders African
// port prices.
func (p *Parser) withCountryParam(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	q := u.Query()
	q.Set("tp_country_id", fmt.Sprint(p.countryID))
	u.RawQuery = q.Encode()
	return u.String()
}

// extractName handles both page layouts the site serves: a single h1 on the
// renewal layout, split make/model blocks on the older one.
func extractName(doc *goquery.Document) string {
	if h1 := doc.Find("#list-detail div.car-info-flex-area h1").First(); h1.Length() > 0 {
		return strings.TrimSpace(h1.Text())
	}

	make_ := strings.TrimSpace(doc.Find("#content > h1 > div.make").First().Text())
	model := strings.TrimSpace(doc.Find("#content > h1 > div.model-year").First().Text())
	if make_ != "" && model != "" {
		if i := strings.Index(strings.ToLower(model), "part model:"); i >= 0 {
			model = strings.TrimSpace(strings.SplitN(model, "\n", 2)[0])
		}
		return make_ + " " + model
	}

	return strings.TrimSpace(doc.Find("#content > h1").First().Text())
}

// extractPortPrice takes the total price of the first port row; the first
// listed port is the one the country param selects.
func extractPortPrice(doc *goquery.Document) string {
	first := doc.Find("p.port-list-title").First()
	if first.Length() == 0 {
		return ""
	}

	row := first.Closest("tr")
	if row.Length() == 0 {
		return ""
	}

	price := row.Find("td.table-total-price span.fn-total-price-display").First().Text()
	price = strings.ReplaceAll(price, "\u00a0", "")
	return strings.ReplaceAll(strings.TrimSpace(price), " ", "")
}

func extractSpecs(doc *goquery.Document) []SpecRow {
	table := doc.Find("#spec > table").First()
	if table.Length() == 0 {
		table = doc.Find("#content > div.specs > table").First()
	}
	if table.Length() == 0 {
		return nil
	}

	var specs []SpecRow
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		// cells come in key/value pairs
		for i := 0; i+1 < cells.Length(); i += 2 {
			key := strings.TrimSpace(cells.Eq(i).Text())
			value := strings.TrimSpace(cells.Eq(i + 1).Text())
			if key == "" || value == "" || value == "-" {
				continue
			}
			if excludedKey(key) {
				continue
			}
			value = strings.TrimSpace(strings.ReplaceAll(value, "Find parts for this model code", ""))
			if value == "" || value == "-" {
				continue
			}
			specs = append(specs, SpecRow{Key: key, Value: value})
		}
	})
	return specs
}

func excludedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range excludedSpecKeys {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractPhotoDownloadURL finds the direct bundle link on the renewal
// layout. Older pages only have a photo slider; those fall back to
// collectPhotoURLs.
func extractPhotoDownloadURL(doc *goquery.Document) string {
	link := doc.Find("#list-detail div.dl-pic-area > a").First()
	href, ok := link.Attr("href")
	if !ok {
		return ""
	}
	return absoluteURL(href)
}

func collectPhotoURLs(doc *goquery.Document) []string {
	seen := map[string]struct{}{}
	var urls []string

	doc.Find("#vehicle-photo-slider div.swiper-wrapper div.swiper-slide img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if src, ok := img.Attr(attr); ok && src != "" {
				abs := absoluteURL(src)
				if _, dup := seen[abs]; !dup {
					seen[abs] = struct{}{}
					urls = append(urls, abs)
				}
			}
		}
	})
	return urls
}

func absoluteURL(href string) string {
	switch {
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return siteBase + href
	default:
		return href
	}
}
