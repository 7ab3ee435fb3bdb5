package transform

import (
	"context"
	"testing"

	"pokedex-pipeline/internal/dataset"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func rawRecord(id string, overrides map[dataset.Field]string) dataset.RawRecord {
	r := dataset.NewRawRecord(id)
	base := map[dataset.Field]string{
		dataset.FieldRank:           "0001",
		dataset.FieldName:           "Bulbasaur",
		dataset.FieldTypes:          "Grass, Poison",
		dataset.FieldSpecies:        "Seed Pokémon",
		dataset.FieldHeight:         "0.7 m (2′04″)",
		dataset.FieldWeight:         "6.9 kg (15.2 lbs)",
		dataset.FieldTotalPower:     "318",
		dataset.FieldHitPoints:      "45",
		dataset.FieldAttack:         "49",
		dataset.FieldDefense:        "49",
		dataset.FieldSpecialAttack:  "65",
		dataset.FieldSpecialDefense: "65",
		dataset.FieldSpeed:          "45",
		dataset.FieldIconURL:        "https://img.pokemondb.net/artwork/bulbasaur.jpg",
		dataset.FieldDetailsURL:     "https://pokemondb.net/pokedex/bulbasaur",
		dataset.FieldScrapeTS:       "2024-05-01T00:00:00Z",
	}
	for f, v := range base {
		r.Fields[f] = v
	}
	for f, v := range overrides {
		r.Fields[f] = v
	}
	return r
}

func TestTransformCoercesAndDerives(t *testing.T) {
	out, err := Transform(context.Background(), dataset.RawDataset{rawRecord("bulbasaur", nil)})
	require.NoError(t, err)
	require.Len(t, out, 1)

	p := out[0]
	require.Equal(t, "bulbasaur", p.ID)
	require.Equal(t, dataset.Int(1), p.Rank)
	require.Equal(t, "Grass", p.PrimaryType)
	require.Equal(t, "Poison", p.SecondaryType)
	require.Equal(t, dataset.Float(0.7), p.HeightM)
	require.Equal(t, dataset.Float(6.9), p.WeightKG)
	require.Equal(t, dataset.Int(49+65), p.TotalAttack)
	require.Equal(t, dataset.Int(49+65), p.TotalDefense)
	require.Equal(t, dataset.Float(1), p.OffenseRatio)
}

func TestTransformIsDeterministic(t *testing.T) {
	raw := dataset.RawDataset{
		rawRecord("venusaur", nil),
		rawRecord("bulbasaur", nil),
		rawRecord("ivysaur", nil),
	}

	first, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	second, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	diff := cmp.Diff(first, second)
	require.Empty(t, diff)

	// sorted by identifier regardless of crawl order
	require.Equal(t, "bulbasaur", first[0].ID)
	require.Equal(t, "ivysaur", first[1].ID)
	require.Equal(t, "venusaur", first[2].ID)
}

func TestTransformMarksFailedCoercionsMissing(t *testing.T) {
	raw := dataset.RawDataset{rawRecord("bulbasaur", map[dataset.Field]string{
		dataset.FieldAttack: "not-a-number",
	})}

	out, err := Transform(context.Background(), raw)
	require.NoError(t, err)

	p := out[0]
	require.False(t, p.Attack.Valid)
	require.Equal(t, dataset.Missing, p.Attack.String())
	// derived columns depending on the bad input go missing too
	require.False(t, p.TotalAttack.Valid)
	require.False(t, p.OffenseRatio.Valid)
	// unrelated derived columns survive
	require.True(t, p.TotalDefense.Valid)
}

func TestTransformKeepsMissingSentinel(t *testing.T) {
	raw := dataset.RawDataset{rawRecord("bulbasaur", map[dataset.Field]string{
		dataset.FieldSpecies: dataset.Missing,
		dataset.FieldHeight:  dataset.Missing,
	})}

	out, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, dataset.Missing, out[0].Species)
	require.False(t, out[0].HeightM.Valid)
}

func TestTransformSingleTypeSecondaryMissing(t *testing.T) {
	raw := dataset.RawDataset{rawRecord("charmander", map[dataset.Field]string{
		dataset.FieldTypes: "Fire",
	})}

	out, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "Fire", out[0].PrimaryType)
	require.Equal(t, dataset.Missing, out[0].SecondaryType)
}

func TestTransformRejectsUnknownTypeNames(t *testing.T) {
	raw := dataset.RawDataset{rawRecord("glitch", map[dataset.Field]string{
		dataset.FieldTypes: "Bird, Poison",
	})}

	out, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, dataset.Missing, out[0].PrimaryType)
	require.Equal(t, "Poison", out[0].SecondaryType)
}

func TestTransformFailsOnDuplicateIdentifiers(t *testing.T) {
	raw := dataset.RawDataset{
		rawRecord("bulbasaur", nil),
		rawRecord("bulbasaur", nil),
	}

	_, err := Transform(context.Background(), raw)
	var transformErr *TransformError
	require.ErrorAs(t, err, &transformErr)
	require.Contains(t, transformErr.Reason, "duplicate identifier")
}

func TestTransformFailsOnEmptyDataset(t *testing.T) {
	_, err := Transform(context.Background(), nil)
	var transformErr *TransformError
	require.ErrorAs(t, err, &transformErr)
}

func TestTransformZeroDefenseRatioMissing(t *testing.T) {
	raw := dataset.RawDataset{rawRecord("shell", map[dataset.Field]string{
		dataset.FieldDefense:        "0",
		dataset.FieldSpecialDefense: "0",
	})}

	out, err := Transform(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, dataset.Int(0), out[0].TotalDefense)
	require.False(t, out[0].OffenseRatio.Valid)
}
