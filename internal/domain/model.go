package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// GridScheme identifies the native computational grid of a model.
type GridScheme string

const (
	// SchemeROMS is a curvilinear structured grid with staggered velocities.
	SchemeROMS GridScheme = "roms"
	// SchemeFVCOM is an unstructured triangular mesh with element-centre velocities.
	SchemeFVCOM GridScheme = "fvcom"
)

// Model describes one Operational Forecast System: its native grid scheme,
// forecast hour range, daily cycle schedule, and archive availability delay.
type Model struct {
	ID      string
	Region  string
	Product string
	Scheme  GridScheme

	// Forecast lead hours: FirstHour through LastHour inclusive, every HourStep.
	FirstHour int
	LastHour  int
	HourStep  int

	// CycleHours are the UTC hours of day at which the model is issued.
	CycleHours []int

	// AvailabilityDelay is how long after cycle time the last fields file is
	// expected on the archive.
	AvailabilityDelay time.Duration
}

// ForecastHours returns the configured lead hours in ascending order.
func (m Model) ForecastHours() []int {
	hours := make([]int, 0, (m.LastHour-m.FirstHour)/m.HourStep+1)
	for h := m.FirstHour; h <= m.LastHour; h += m.HourStep {
		hours = append(hours, h)
	}
	return hours
}

// registry holds the supported models, keyed by lower-case identifier.
// Hour ranges and cycle schedules follow the operational NOS configuration.
var registry = map[string]Model{
	"cbofs": {
		ID: "cbofs", Region: "Chesapeake_Bay", Product: "ROMS_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeROMS, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{0, 6, 12, 18}, AvailabilityDelay: 85 * time.Minute,
	},
	"dbofs": {
		ID: "dbofs", Region: "Delaware_Bay", Product: "ROMS_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeROMS, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{0, 6, 12, 18}, AvailabilityDelay: 80 * time.Minute,
	},
	"tbofs": {
		ID: "tbofs", Region: "Tampa_Bay", Product: "ROMS_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeROMS, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{0, 6, 12, 18}, AvailabilityDelay: 74 * time.Minute,
	},
	"gomofs": {
		// 3-hourly output out to +72.
		ID: "gomofs", Region: "Gulf_of_Maine", Product: "ROMS_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeROMS, FirstHour: 0, LastHour: 72, HourStep: 3,
		CycleHours: []int{0, 6, 12, 18}, AvailabilityDelay: 134 * time.Minute,
	},
	"negofs": {
		ID: "negofs", Region: "Northeast_Gulf_of_Mexico", Product: "FVCOM_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeFVCOM, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{3, 9, 15, 21}, AvailabilityDelay: 95 * time.Minute,
	},
	"nwgofs": {
		ID: "nwgofs", Region: "Northwest_Gulf_of_Mexico", Product: "FVCOM_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeFVCOM, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{3, 9, 15, 21}, AvailabilityDelay: 90 * time.Minute,
	},
	"ngofs": {
		ID: "ngofs", Region: "Northern_Gulf_of_Mexico", Product: "FVCOM_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeFVCOM, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{3, 9, 15, 21}, AvailabilityDelay: 50 * time.Minute,
	},
	"sfbofs": {
		ID: "sfbofs", Region: "San_Francisco_Bay", Product: "FVCOM_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeFVCOM, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{3, 9, 15, 21}, AvailabilityDelay: 55 * time.Minute,
	},
	"leofs": {
		ID: "leofs", Region: "Lake_Erie", Product: "FVCOM_Hydrodynamic_Model_Forecasts",
		Scheme: SchemeFVCOM, FirstHour: 0, LastHour: 48, HourStep: 1,
		CycleHours: []int{0, 6, 12, 18}, AvailabilityDelay: 100 * time.Minute,
	},
}

// Lookup returns the model for the given identifier (case-insensitive).
func Lookup(id string) (Model, error) {
	m, ok := registry[strings.ToLower(id)]
	if !ok {
		return Model{}, fmt.Errorf("unknown model %q (supported: %s)", id, strings.Join(ModelIDs(), ", "))
	}
	return m, nil
}

// ModelIDs returns all supported model identifiers, sorted.
func ModelIDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
