package pokedex

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"pokedex-pipeline/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// IndexEntry is one row of a listing page: just enough to schedule the
// detail-page fetch.
type IndexEntry struct {
	ID        string
	Name      string
	DetailURL string
}

// listingShape pins down the structural selectors for the catalog's
// listing markup. A site markup change should only ever touch the
// shape definitions, not the crawl logic.
type listingShape struct {
	table   string
	row     string
	anchor  string
	subName string
}

var defaultListingShape = listingShape{
	table:   "table#pokedex",
	row:     "tbody tr",
	anchor:  "td.cell-name a.ent-name",
	subName: "td.cell-name small.text-muted",
}

// ParseListing extracts the index entries of a listing page. The
// listing table itself is required; malformed rows are skipped with a
// warning rather than failing the page.
func ParseListing(body []byte, pageUrl *url.URL) ([]IndexEntry, error) {
	return defaultListingShape.parse(body, pageUrl)
}

func (s listingShape) parse(body []byte, pageUrl *url.URL) ([]IndexEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, &ParseError{URL: pageUrl.String(), Field: "document"}
	}

	table := doc.Find(s.table)
	if len(table.Nodes) == 0 {
		return nil, &ParseError{URL: pageUrl.String(), Field: s.table}
	}

	var entries []IndexEntry
	table.Find(s.row).Each(func(i int, row *goquery.Selection) {
		anchors := htmlutil.GetAnchors(row.Find(s.anchor), pageUrl)
		if len(anchors) == 0 || anchors[0].Name == "" {
			slog.Warn("skipping listing row without a detail link", "row", i, "url", pageUrl)
			return
		}
		a := anchors[0]

		name := a.Name
		if sub := htmlutil.CleanText(row.Find(s.subName).Text()); sub != "" {
			name = name + " (" + sub + ")"
		}

		entries = append(entries, IndexEntry{
			ID:        slugFromURL(a.Href),
			Name:      name,
			DetailURL: a.Href,
		})
	})
	return entries, nil
}

// slugFromURL takes the last path segment of a detail link as the
// entity's stable identifier.
func slugFromURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	path := strings.Trim(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
