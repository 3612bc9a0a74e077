package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

type Variable string

const (
	PM25 Variable = "PM2.5"
	PM10 Variable = "PM10"
	TEMP Variable = "TEMP"
	PRES Variable = "PRES"
	DEWP Variable = "DEWP"
	RAIN Variable = "RAIN"
	WSPM Variable = "WSPM"
)

// AllVariables is the canonical column order.
var AllVariables = []Variable{PM25, PM10, TEMP, PRES, DEWP, RAIN, WSPM}

var Pollutants = []Variable{PM25, PM10}

var variableIndex = func() map[Variable]int {
	idx := make(map[Variable]int, len(AllVariables))
	for i, v := range AllVariables {
		idx[v] = i
	}
	return idx
}()

var variableDescriptions = map[Variable]string{
	PM25: "Fine particulate matter (ug/m3)",
	PM10: "Coarse particulate matter (ug/m3)",
	TEMP: "Temperature (degree Celsius)",
	PRES: "Pressure (hPa)",
	DEWP: "Dew point temperature (degree Celsius)",
	RAIN: "Precipitation (mm)",
	WSPM: "Wind speed (m/s)",
}

func (v Variable) Index() int {
	if i, ok := variableIndex[v]; ok {
		return i
	}
	return -1
}

func (v Variable) Valid() bool {
	return v.Index() >= 0
}

func (v Variable) Description() string {
	return variableDescriptions[v]
}

func ParseVariable(s string) (Variable, error) {
	v := Variable(strings.TrimSpace(s))
	if !v.Valid() {
		return "", fmt.Errorf("unknown variable %q", s)
	}
	return v, nil
}

// Float is a nullable float64. Null marshals to JSON null.
type Float struct {
	Value float64
	Valid bool
}

func Some(v float64) Float {
	return Float{Value: v, Valid: true}
}

func Null() Float {
	return Float{}
}

// Finite reports whether the value is present and neither NaN nor infinite.
func (f Float) Finite() bool {
	return f.Valid && !math.IsNaN(f.Value) && !math.IsInf(f.Value, 0)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Finite() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}

// NumVariables is len(AllVariables).
const NumVariables = 7

type Record struct {
	Year   int                 `json:"year"`
	Month  int                 `json:"month"`
	Day    int                 `json:"day"`
	Hour   int                 `json:"hour"`
	Time   time.Time           `json:"date"`
	Values [NumVariables]Float `json:"-"`
}

func (r Record) Value(v Variable) Float {
	i := v.Index()
	if i < 0 {
		return Float{}
	}
	return r.Values[i]
}

func (r *Record) Set(v Variable, f Float) {
	if i := v.Index(); i >= 0 {
		r.Values[i] = f
	}
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 5+len(AllVariables))
	out["year"] = r.Year
	out["month"] = r.Month
	out["day"] = r.Day
	out["hour"] = r.Hour
	out["date"] = r.Time
	for i, v := range AllVariables {
		out[string(v)] = r.Values[i]
	}
	return json.Marshal(out)
}

// Dataset is an immutable ordered set of records. All accessors copy.
type Dataset struct {
	source   string
	loadedAt time.Time
	records  []Record
}

func NewDataset(source string, loadedAt time.Time, records []Record) *Dataset {
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Dataset{source: source, loadedAt: loadedAt, records: cp}
}

// Derive builds a dataset sharing this dataset's metadata. The slice is
// owned by the new dataset and must not be modified by the caller afterwards.
func (d *Dataset) Derive(records []Record) *Dataset {
	if d == nil {
		return &Dataset{records: records}
	}
	return &Dataset{source: d.source, loadedAt: d.loadedAt, records: records}
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

func (d *Dataset) At(i int) Record {
	return d.records[i]
}

func (d *Dataset) Source() string {
	if d == nil {
		return ""
	}
	return d.source
}

func (d *Dataset) LoadedAt() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.loadedAt
}

func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	cp := make([]Record, len(d.records))
	copy(cp, d.records)
	return cp
}

func (d *Dataset) Head(n int) []Record {
	if n > d.Len() {
		n = d.Len()
	}
	if n <= 0 {
		return []Record{}
	}
	cp := make([]Record, n)
	copy(cp, d.records[:n])
	return cp
}

// Column returns the values of v in row order.
func (d *Dataset) Column(v Variable) []Float {
	out := make([]Float, d.Len())
	for i := 0; i < d.Len(); i++ {
		out[i] = d.records[i].Value(v)
	}
	return out
}

type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (r Range) Valid() bool {
	return r.Low <= r.High
}

func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// FilterSpec holds the user-selected constraints. Empty Months or Variables
// select nothing.
type FilterSpec struct {
	Start     time.Time          `json:"start,omitempty"`
	End       time.Time          `json:"end,omitempty"`
	Months    []int              `json:"months" validate:"dive,min=1,max=12"`
	Variables []Variable         `json:"variables" validate:"dive,oneof=PM2.5 PM10 TEMP PRES DEWP RAIN WSPM"`
	Ranges    map[Variable]Range `json:"ranges,omitempty" validate:"dive,keys,oneof=PM2.5 PM10 TEMP PRES DEWP RAIN WSPM,endkeys"`
}

// MarshalJSON leaves out an unbounded Start or End.
func (s FilterSpec) MarshalJSON() ([]byte, error) {
	type plain FilterSpec
	out := struct {
		Start *time.Time `json:"start,omitempty"`
		End   *time.Time `json:"end,omitempty"`
		plain
	}{plain: plain(s)}
	if !s.Start.IsZero() {
		out.Start = &s.Start
	}
	if !s.End.IsZero() {
		out.End = &s.End
	}
	return json.Marshal(out)
}

func AllMonths() []int {
	return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}

func DefaultFilterSpec() FilterSpec {
	vars := make([]Variable, len(AllVariables))
	copy(vars, AllVariables)
	return FilterSpec{
		Months:    AllMonths(),
		Variables: vars,
	}
}

// Canonical returns a deep copy with sorted, deduplicated months and variables.
func (s FilterSpec) Canonical() FilterSpec {
	out := FilterSpec{Start: s.Start.UTC(), End: s.End.UTC()}

	seenMonth := make(map[int]bool, len(s.Months))
	out.Months = make([]int, 0, len(s.Months))
	for _, m := range s.Months {
		if !seenMonth[m] {
			seenMonth[m] = true
			out.Months = append(out.Months, m)
		}
	}
	sort.Ints(out.Months)

	seenVar := make(map[Variable]bool, len(s.Variables))
	out.Variables = make([]Variable, 0, len(s.Variables))
	for _, v := range s.Variables {
		if !seenVar[v] {
			seenVar[v] = true
			out.Variables = append(out.Variables, v)
		}
	}
	sort.SliceStable(out.Variables, func(i, j int) bool {
		return out.Variables[i].Index() < out.Variables[j].Index()
	})

	if len(s.Ranges) > 0 {
		out.Ranges = make(map[Variable]Range, len(s.Ranges))
		for v, r := range s.Ranges {
			out.Ranges[v] = r
		}
	}
	return out
}

func (s FilterSpec) HasVariable(v Variable) bool {
	for _, sv := range s.Variables {
		if sv == v {
			return true
		}
	}
	return false
}
