// Package dataset holds the record types flowing through the pipeline:
// uncoerced raw records as captured from the catalog pages, and the
// fixed-schema processed records handed to the visualization layer.
package dataset

import "strconv"

// Missing marks a field whose value could not be captured or derived.
// It is written to output files literally so downstream consumers can
// tell "not derivable" apart from an empty string or a zero.
const Missing = "<missing>"

type Field string

const (
	FieldRank           Field = "rank"
	FieldName           Field = "name"
	FieldTypes          Field = "types"
	FieldSpecies        Field = "species"
	FieldHeight         Field = "height"
	FieldWeight         Field = "weight"
	FieldTotalPower     Field = "total_power"
	FieldHitPoints      Field = "hit_points"
	FieldAttack         Field = "attack"
	FieldDefense        Field = "defense"
	FieldSpecialAttack  Field = "special_attack"
	FieldSpecialDefense Field = "special_defense"
	FieldSpeed          Field = "speed"
	FieldIconURL        Field = "icon_url"
	FieldDetailsURL     Field = "details_url"
	FieldScrapeTS       Field = "scrape_ts"
)

// RawFields is the declared raw column set, in staging output order.
var RawFields = []Field{
	FieldRank,
	FieldName,
	FieldTypes,
	FieldSpecies,
	FieldHeight,
	FieldWeight,
	FieldTotalPower,
	FieldHitPoints,
	FieldAttack,
	FieldDefense,
	FieldSpecialAttack,
	FieldSpecialDefense,
	FieldSpeed,
	FieldIconURL,
	FieldDetailsURL,
	FieldScrapeTS,
}

// RawRecord is one entity exactly as captured from its detail page,
// no coercion applied. Every field in RawFields is always present in
// Fields; optional ones that the page did not carry hold Missing.
type RawRecord struct {
	ID     string
	Fields map[Field]string
}

// NewRawRecord returns a record with every declared field initialized
// to Missing.
func NewRawRecord(id string) RawRecord {
	fields := make(map[Field]string, len(RawFields))
	for _, f := range RawFields {
		fields[f] = Missing
	}
	return RawRecord{ID: id, Fields: fields}
}

// RawDataset is ordered by crawl completion; identifiers may repeat
// until the collector deduplicates.
type RawDataset []RawRecord

// NullInt is an integer that distinguishes zero from missing.
type NullInt struct {
	Int   int
	Valid bool
}

func Int(v int) NullInt {
	return NullInt{Int: v, Valid: true}
}

func (n NullInt) String() string {
	if !n.Valid {
		return Missing
	}
	return strconv.Itoa(n.Int)
}

// NullFloat is a float that distinguishes zero from missing.
type NullFloat struct {
	Float float64
	Valid bool
}

func Float(v float64) NullFloat {
	return NullFloat{Float: v, Valid: true}
}

func (n NullFloat) String() string {
	if !n.Valid {
		return Missing
	}
	return strconv.FormatFloat(n.Float, 'f', -1, 64)
}

// ProcessedRecord is one entity after coercion and derivation. The
// field set is identical for every record.
type ProcessedRecord struct {
	ID            string
	Rank          NullInt
	Name          string
	PrimaryType   string
	SecondaryType string
	Species       string
	HeightM       NullFloat
	WeightKG      NullFloat

	HitPoints      NullInt
	Attack         NullInt
	Defense        NullInt
	SpecialAttack  NullInt
	SpecialDefense NullInt
	Speed          NullInt
	TotalPower     NullInt

	// derived, missing whenever any input is missing
	TotalAttack  NullInt
	TotalDefense NullInt
	OffenseRatio NullFloat

	IconURL    string
	DetailsURL string
	ScrapedAt  string
}

// ProcessedHeader is the processed artifact's column order; it is the
// contract with the visualization layer.
var ProcessedHeader = []string{
	"id",
	"rank",
	"name",
	"primary_type",
	"secondary_type",
	"species",
	"height_m",
	"weight_kg",
	"hit_points",
	"attack",
	"defense",
	"special_attack",
	"special_defense",
	"speed",
	"total_power",
	"total_attack",
	"total_defense",
	"offense_ratio",
	"icon_url",
	"details_url",
	"scraped_at",
}

// Row renders the record as one tabular row in ProcessedHeader order.
func (p ProcessedRecord) Row() []string {
	return []string{
		p.ID,
		p.Rank.String(),
		p.Name,
		p.PrimaryType,
		p.SecondaryType,
		p.Species,
		p.HeightM.String(),
		p.WeightKG.String(),
		p.HitPoints.String(),
		p.Attack.String(),
		p.Defense.String(),
		p.SpecialAttack.String(),
		p.SpecialDefense.String(),
		p.Speed.String(),
		p.TotalPower.String(),
		p.TotalAttack.String(),
		p.TotalDefense.String(),
		p.OffenseRatio.String(),
		p.IconURL,
		p.DetailsURL,
		p.ScrapedAt,
	}
}

// ProcessedDataset is sorted by ID before it is persisted so repeat
// runs over unchanged input produce byte-stable output.
type ProcessedDataset []ProcessedRecord
