package pokedex

import (
	"bytes"
	"net/url"
	"strings"

	"pokedex-pipeline/internal/dataset"
	"pokedex-pipeline/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// detailShape pins down the structural selectors for a detail page.
// Vitals and base-stat rows share the same th/td table markup, so one
// label mapping covers both.
type detailShape struct {
	title      string
	vitalsRow  string
	typeAnchor string
	icon       string
	// th label -> raw field it populates
	labels map[string]dataset.Field
}

var defaultDetailShape = detailShape{
	title:      "h1",
	vitalsRow:  "table.vitals-table tr",
	typeAnchor: "a.type-icon",
	icon:       `meta[property="og:image"]`,
	labels: map[string]dataset.Field{
		"National №": dataset.FieldRank,
		"Species":    dataset.FieldSpecies,
		"Height":     dataset.FieldHeight,
		"Weight":     dataset.FieldWeight,
		"HP":         dataset.FieldHitPoints,
		"Attack":     dataset.FieldAttack,
		"Defense":    dataset.FieldDefense,
		"Sp. Atk":    dataset.FieldSpecialAttack,
		"Sp. Def":    dataset.FieldSpecialDefense,
		"Speed":      dataset.FieldSpeed,
		"Total":      dataset.FieldTotalPower,
	},
}

// detailRequired are the fields a detail page must carry for its
// record to be kept.
var detailRequired = []dataset.Field{
	dataset.FieldRank,
	dataset.FieldName,
	dataset.FieldTypes,
	dataset.FieldTotalPower,
	dataset.FieldHitPoints,
	dataset.FieldAttack,
	dataset.FieldDefense,
	dataset.FieldSpecialAttack,
	dataset.FieldSpecialDefense,
	dataset.FieldSpeed,
}

// ParseDetail extracts one RawRecord from a detail page. A missing
// required field yields *ParseError and no record; optional fields
// absent from the page stay at the Missing sentinel so the raw schema
// is uniform across records.
func ParseDetail(body []byte, pageUrl *url.URL) (dataset.RawRecord, error) {
	return defaultDetailShape.parse(body, pageUrl)
}

func (s detailShape) parse(body []byte, pageUrl *url.URL) (dataset.RawRecord, error) {
	record := dataset.NewRawRecord(slugFromURL(pageUrl.String()))

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return dataset.RawRecord{}, &ParseError{URL: pageUrl.String(), Field: "document"}
	}

	if name := htmlutil.CleanText(doc.Find(s.title).First().Text()); name != "" {
		record.Fields[dataset.FieldName] = name
	}

	doc.Find(s.vitalsRow).Each(func(_ int, row *goquery.Selection) {
		label := htmlutil.CleanText(row.Find("th").First().Text())
		cell := row.Find("td").First()

		if label == "Type" {
			var names []string
			cell.Find(s.typeAnchor).Each(func(_ int, t *goquery.Selection) {
				names = append(names, htmlutil.CleanText(t.Text()))
			})
			if len(names) > 0 {
				record.Fields[dataset.FieldTypes] = strings.Join(names, ", ")
			}
			return
		}

		field, ok := s.labels[label]
		if !ok {
			return
		}
		if value := htmlutil.CleanText(cell.Text()); value != "" {
			record.Fields[field] = value
		}
	})

	if icon, ok := doc.Find(s.icon).Attr("content"); ok && icon != "" {
		record.Fields[dataset.FieldIconURL] = icon
	}
	record.Fields[dataset.FieldDetailsURL] = pageUrl.String()

	for _, field := range detailRequired {
		if record.Fields[field] == dataset.Missing {
			return dataset.RawRecord{}, &ParseError{URL: pageUrl.String(), Field: string(field)}
		}
	}
	return record, nil
}
