package crop

import (
	"fmt"
	"io"
	"log"
	"strings"
)

var fertilizerColumns = []string{
	"Crop", "N_Required_kg_ha", "P_Required_kg_ha", "K_Required_kg_ha", "Fertilizers", "Usage_Period",
}

// Fertilizer holds the nutrient requirements and fertilizer advice for a crop.
type Fertilizer struct {
	Crop        string  `json:"crop"`
	NitrogenKg  float64 `json:"nRequiredKgHa"`
	PhosphorKg  float64 `json:"pRequiredKgHa"`
	PotassiumKg float64 `json:"kRequiredKgHa"`
	Fertilizers string  `json:"fertilizers"`
	UsagePeriod string  `json:"usagePeriod"`
}

// FertilizerTable is a read-only, case-insensitive index of fertilizer rows.
type FertilizerTable struct {
	rows map[string]Fertilizer
}

// LoadFertilizers reads the fertilizer dataset. A missing file yields an empty table.
func LoadFertilizers(path string) (*FertilizerTable, error) {
	t, err := openTable(path, fertilizerColumns)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &FertilizerTable{rows: map[string]Fertilizer{}}, nil
	}
	ft, err := fertilizersFromTable(t)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: loaded %d fertilizer rows from %s", len(ft.rows), path)
	return ft, nil
}

// ParseFertilizers reads a fertilizer table from CSV data.
func ParseFertilizers(r io.Reader) (*FertilizerTable, error) {
	t, err := readTable(r, fertilizerColumns)
	if err != nil {
		return nil, err
	}
	return fertilizersFromTable(t)
}

func fertilizersFromTable(t *table) (*FertilizerTable, error) {
	ft := &FertilizerTable{rows: make(map[string]Fertilizer, len(t.rows))}
	for i := range t.rows {
		r := t.row(i)
		f := Fertilizer{
			Crop:        r.str("Crop"),
			NitrogenKg:  r.float("N_Required_kg_ha"),
			PhosphorKg:  r.float("P_Required_kg_ha"),
			PotassiumKg: r.float("K_Required_kg_ha"),
			Fertilizers: r.str("Fertilizers"),
			UsagePeriod: r.str("Usage_Period"),
		}
		if r.err != nil {
			return nil, r.err
		}
		if f.Crop == "" {
			return nil, fmt.Errorf("%w: row %d has an empty crop name", ErrCatalogLoad, i+1)
		}
		key := strings.ToLower(f.Crop)
		if _, dup := ft.rows[key]; dup {
			// First row wins, matching the catalog's lookup behaviour.
			continue
		}
		ft.rows[key] = f
	}
	return ft, nil
}

// Lookup finds fertilizer advice by crop name, ignoring case.
func (t *FertilizerTable) Lookup(name string) (Fertilizer, bool) {
	if t == nil {
		return Fertilizer{}, false
	}
	f, ok := t.rows[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}
