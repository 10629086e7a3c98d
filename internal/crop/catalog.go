package crop

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Column names of the crop ecology dataset.
const (
	colCrop            = "Crop"
	colImage           = "Image"
	colPlantingStart   = "Planting_Start_Month"
	colPlantingEnd     = "Planting_End_Month"
	colHarvestingStart = "Harvesting_Start_Month"
	colHarvestingEnd   = "Harvesting_End_Month"

	prefixTemp     = "Ecology_Temp"
	prefixRainfall = "Ecology_Rainfall_Annual"
	prefixSoilPH   = "Ecology_Soil_PH"
	prefixLatitude = "Ecology_Latitude"
	prefixAltitude = "Ecology_Altitude"
)

var catalogColumns = func() []string {
	cols := []string{colCrop, colPlantingStart, colPlantingEnd, colHarvestingStart, colHarvestingEnd}
	for _, p := range []string{prefixTemp, prefixRainfall, prefixSoilPH, prefixLatitude, prefixAltitude} {
		cols = append(cols,
			p+"_Optimal_Min", p+"_Optimal_Max",
			p+"_Absolute_Min", p+"_Absolute_Max",
		)
	}
	return cols
}()

var validate = newRecordValidator()

func newRecordValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		t := sl.Current().Interface().(Tolerance)
		if !t.Optimal.Within(t.Absolute) {
			sl.ReportError(t.Optimal, "Optimal", "Optimal", "within_absolute", "")
		}
	}, Tolerance{})
	return v
}

// Catalog is the immutable, ordered set of crop ecology records.
// It is safe for concurrent use once constructed.
type Catalog struct {
	records []Record
	index   map[string]int // lower-cased crop name -> position
}

// NewCatalog validates records and builds a catalog preserving their order.
// The first invalid record aborts construction with a *ValidationError.
func NewCatalog(records []Record) (*Catalog, error) {
	c := &Catalog{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for i, rec := range records {
		rec.Name = strings.TrimSpace(rec.Name)
		if err := validateRecord(rec); err != nil {
			return nil, &ValidationError{Row: i + 1, Crop: rec.Name, Err: err}
		}
		key := strings.ToLower(rec.Name)
		if prev, dup := c.index[key]; dup {
			return nil, &ValidationError{
				Row:  i + 1,
				Crop: rec.Name,
				Err:  fmt.Errorf("duplicate crop name, first seen at row %d", prev+1),
			}
		}
		c.index[key] = len(c.records)
		c.records = append(c.records, rec)
	}
	return c, nil
}

// Load reads the catalog from a CSV file. A missing file yields an empty
// catalog; a file with a wrong schema, unparsable cells or invalid records
// fails with an error wrapping ErrCatalogLoad.
func Load(path string) (*Catalog, error) {
	t, err := openTable(path, catalogColumns)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &Catalog{index: map[string]int{}}, nil
	}

	c, err := fromTable(t)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: loaded %d crops from %s", c.Len(), path)
	return c, nil
}

// Parse reads a catalog from CSV data.
func Parse(r io.Reader) (*Catalog, error) {
	t, err := readTable(r, catalogColumns)
	if err != nil {
		return nil, err
	}
	return fromTable(t)
}

func fromTable(t *table) (*Catalog, error) {
	records := make([]Record, 0, len(t.rows))
	for i := range t.rows {
		r := t.row(i)
		rec := Record{
			Name:        r.str(colCrop),
			Temperature: r.tolerance(prefixTemp),
			Rainfall:    r.tolerance(prefixRainfall),
			SoilPH:      r.tolerance(prefixSoilPH),
			Latitude:    r.tolerance(prefixLatitude),
			Altitude:    r.tolerance(prefixAltitude),
			Planting:    Window{Start: r.month(colPlantingStart), End: r.month(colPlantingEnd)},
			Harvesting:  Window{Start: r.month(colHarvestingStart), End: r.month(colHarvestingEnd)},
			Image:       r.str(colImage),
		}
		if r.err != nil {
			return nil, r.err
		}
		records = append(records, rec)
	}

	c, err := NewCatalog(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogLoad, err)
	}
	return c, nil
}

func validateRecord(rec Record) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Record.")
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, describeTag(fe)))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "max":
		return fmt.Sprintf("%s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	case "gtefield":
		return "min <= max"
	case "within_absolute":
		return "optimal range within absolute range"
	default:
		return fe.Tag()
	}
}

// Len returns the number of crops.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns the records in source row order. The slice is a copy.
func (c *Catalog) Records() []Record {
	if c == nil {
		return nil
	}
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Lookup finds a crop by name, ignoring case.
func (c *Catalog) Lookup(name string) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Record{}, false
	}
	return c.records[i], true
}
