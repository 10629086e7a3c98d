package crop

// Range is an inclusive [Min, Max] interval for one environmental factor.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max" validate:"gtefield=Min"`
}

// Contains reports whether v lies inside the range. Both bounds are inclusive.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Within reports whether r is fully enclosed by outer.
func (r Range) Within(outer Range) bool {
	return outer.Min <= r.Min && r.Max <= outer.Max
}

// Tolerance holds the optimal and the wider absolute range of a factor.
// The optimal range must sit inside the absolute one.
type Tolerance struct {
	Optimal  Range `json:"optimal"`
	Absolute Range `json:"absolute"`
}

// Window is a month interval (1-12). Start > End means the window wraps
// across the year boundary, e.g. {11, 2} is November through February.
type Window struct {
	Start int `json:"start" validate:"min=1,max=12"`
	End   int `json:"end" validate:"min=1,max=12"`
}

// Contains reports whether month falls inside the window.
func (w Window) Contains(month int) bool {
	if w.Start <= w.End {
		return w.Start <= month && month <= w.End
	}
	return month >= w.Start || month <= w.End
}

// Record is one row of the crop ecology catalog.
type Record struct {
	Name string `json:"crop" validate:"required"`

	Temperature Tolerance `json:"temperature"` // °C
	Rainfall    Tolerance `json:"rainfall"`    // annual mm
	SoilPH      Tolerance `json:"soilPh"`
	Latitude    Tolerance `json:"latitude"` // degrees
	Altitude    Tolerance `json:"altitude"` // metres

	Planting   Window `json:"planting"`
	Harvesting Window `json:"harvesting"`

	// Image is display metadata only; it never affects scoring.
	Image string `json:"image,omitempty"`
}

// Reading is the set of environmental values a recommendation is computed for.
// Month is the current calendar month in UTC.
type Reading struct {
	Temperature float64 `json:"temperatureC"`
	Rainfall    float64 `json:"rainfallMm"`
	SoilPH      float64 `json:"soilPh"`
	Latitude    float64 `json:"latitude"`
	Altitude    float64 `json:"altitudeM"`
	Month       int     `json:"month"`
}

// ScoredCrop is a single entry of the ranked recommendation list.
// Field names are part of the public client contract.
type ScoredCrop struct {
	Crop  string `json:"Crop"`
	Score int    `json:"Score"`
	Image string `json:"Image"`
}
