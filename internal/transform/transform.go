// Package transform turns the as-scraped raw dataset into the fixed
// processed schema: typed fields, explicit missing markers, derived
// columns and a stable ordering.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pokedex-pipeline/internal/dataset"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("internal/transform")

// TransformError means a schema invariant was violated; it is fatal
// and no processed artifact may be written.
type TransformError struct {
	Reason string
}

func (e *TransformError) Error() string {
	return "transform: " + e.Reason
}

var knownTypes = map[string]bool{
	"Normal": true, "Fire": true, "Water": true, "Electric": true,
	"Grass": true, "Ice": true, "Fighting": true, "Poison": true,
	"Ground": true, "Flying": true, "Psychic": true, "Bug": true,
	"Rock": true, "Ghost": true, "Dragon": true, "Dark": true,
	"Steel": true, "Fairy": true,
}

// Transform coerces every raw record, computes the derived columns and
// sorts by identifier. A value that fails coercion becomes the missing
// marker for its type, never a zero; the only fatal conditions are an
// empty dataset and duplicate identifiers.
func Transform(ctx context.Context, raw dataset.RawDataset) (dataset.ProcessedDataset, error) {
	_, span := tracer.Start(ctx, "Transform")
	defer span.End()
	span.SetAttributes(attribute.Int("raw_records", len(raw)))

	if len(raw) == 0 {
		return nil, &TransformError{Reason: "empty raw dataset"}
	}

	out := make(dataset.ProcessedDataset, 0, len(raw))
	for _, record := range raw {
		out = append(out, coerce(record))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	seen := map[string]bool{}
	for _, record := range out {
		if record.ID == "" {
			return nil, &TransformError{Reason: "record with empty identifier"}
		}
		if seen[record.ID] {
			return nil, &TransformError{
				Reason: fmt.Sprintf("duplicate identifier %q", record.ID),
			}
		}
		seen[record.ID] = true
	}

	return out, nil
}

func coerce(r dataset.RawRecord) dataset.ProcessedRecord {
	p := dataset.ProcessedRecord{ID: r.ID}

	p.Rank = coerceInt(r.Fields[dataset.FieldRank])
	p.Name = r.Fields[dataset.FieldName]
	p.PrimaryType, p.SecondaryType = coerceTypes(r.Fields[dataset.FieldTypes])
	p.Species = r.Fields[dataset.FieldSpecies]
	p.HeightM = coerceLeadingFloat(r.Fields[dataset.FieldHeight])
	p.WeightKG = coerceLeadingFloat(r.Fields[dataset.FieldWeight])

	p.HitPoints = coerceInt(r.Fields[dataset.FieldHitPoints])
	p.Attack = coerceInt(r.Fields[dataset.FieldAttack])
	p.Defense = coerceInt(r.Fields[dataset.FieldDefense])
	p.SpecialAttack = coerceInt(r.Fields[dataset.FieldSpecialAttack])
	p.SpecialDefense = coerceInt(r.Fields[dataset.FieldSpecialDefense])
	p.Speed = coerceInt(r.Fields[dataset.FieldSpeed])
	p.TotalPower = coerceInt(r.Fields[dataset.FieldTotalPower])

	// derived columns are only computed from fully-present inputs
	p.TotalAttack = addNullable(p.Attack, p.SpecialAttack)
	p.TotalDefense = addNullable(p.Defense, p.SpecialDefense)
	if p.TotalAttack.Valid && p.TotalDefense.Valid && p.TotalDefense.Int != 0 {
		p.OffenseRatio = dataset.Float(
			float64(p.TotalAttack.Int) / float64(p.TotalDefense.Int),
		)
	}

	p.IconURL = r.Fields[dataset.FieldIconURL]
	p.DetailsURL = r.Fields[dataset.FieldDetailsURL]
	p.ScrapedAt = r.Fields[dataset.FieldScrapeTS]
	return p
}

func coerceInt(raw string) dataset.NullInt {
	if raw == dataset.Missing {
		return dataset.NullInt{}
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return dataset.NullInt{}
	}
	return dataset.Int(v)
}

// coerceLeadingFloat parses values like "6.9 kg (15.2 lbs)" where the
// magnitude leads and units trail.
func coerceLeadingFloat(raw string) dataset.NullFloat {
	if raw == dataset.Missing {
		return dataset.NullFloat{}
	}
	token, _, _ := strings.Cut(strings.TrimSpace(raw), " ")
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return dataset.NullFloat{}
	}
	return dataset.Float(v)
}

// coerceTypes splits the comma-joined raw type list into the two
// categorical slots; names outside the known set are coercion failures
// and become missing.
func coerceTypes(raw string) (primary, secondary string) {
	primary, secondary = dataset.Missing, dataset.Missing
	if raw == dataset.Missing {
		return primary, secondary
	}

	var names []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 && knownTypes[names[0]] {
		primary = names[0]
	}
	if len(names) > 1 && knownTypes[names[1]] {
		secondary = names[1]
	}
	return primary, secondary
}

func addNullable(a, b dataset.NullInt) dataset.NullInt {
	if !a.Valid || !b.Valid {
		return dataset.NullInt{}
	}
	return dataset.Int(a.Int + b.Int)
}
