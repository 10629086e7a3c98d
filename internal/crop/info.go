package crop

import "fmt"

// OptimalConditions is the optimal half of a catalog record, as shown to growers.
type OptimalConditions struct {
	Temperature Range  `json:"temperature"`
	Rainfall    Range  `json:"rainfall"`
	Latitude    Range  `json:"latitude"`
	Altitude    Range  `json:"altitude"`
	SoilPH      Range  `json:"soilPh"`
	Planting    Window `json:"planting"`
	Harvesting  Window `json:"harvesting"`
}

// Info merges what the ecology catalog and the fertilizer table know about a crop.
// Either part may be nil when only one dataset lists the crop.
type Info struct {
	Crop       string             `json:"crop"`
	Optimal    *OptimalConditions `json:"optimal,omitempty"`
	Fertilizer *Fertilizer        `json:"fertilizer,omitempty"`
}

// LookupInfo returns the merged information for name, or ErrCropNotFound
// when neither dataset lists it.
func LookupInfo(c *Catalog, ft *FertilizerTable, name string) (Info, error) {
	info := Info{Crop: name}

	if rec, ok := c.Lookup(name); ok {
		info.Crop = rec.Name
		info.Optimal = &OptimalConditions{
			Temperature: rec.Temperature.Optimal,
			Rainfall:    rec.Rainfall.Optimal,
			Latitude:    rec.Latitude.Optimal,
			Altitude:    rec.Altitude.Optimal,
			SoilPH:      rec.SoilPH.Optimal,
			Planting:    rec.Planting,
			Harvesting:  rec.Harvesting,
		}
	}
	if f, ok := ft.Lookup(name); ok {
		if info.Optimal == nil {
			info.Crop = f.Crop
		}
		info.Fertilizer = &f
	}

	if info.Optimal == nil && info.Fertilizer == nil {
		return Info{}, fmt.Errorf("%w: %q", ErrCropNotFound, name)
	}
	return info, nil
}
