package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
)

// unclassifiedPreviewSize is how many unclassified names the summary shows
const unclassifiedPreviewSize = 20

// Result groups hospital names by region and city
type Result struct {
	Regions      map[Region]map[string][]string
	Unclassified []string
}

// NewResult returns an empty result with every region present
func NewResult() *Result {
	r := &Result{Regions: make(map[Region]map[string][]string, len(Regions))}
	for _, region := range Regions {
		r.Regions[region] = make(map[string][]string)
	}
	return r
}

func (r *Result) add(region Region, city, hospital string) {
	cities, ok := r.Regions[region]
	if !ok {
		cities = make(map[string][]string)
		r.Regions[region] = cities
	}
	cities[city] = append(cities[city], hospital)
}

// normalize sorts every city list and drops repeated names
func (r *Result) normalize() {
	for _, cities := range r.Regions {
		for city, hospitals := range cities {
			slices.Sort(hospitals)
			cities[city] = slices.Compact(hospitals)
		}
	}
}

// Cities returns the city names of a region in sorted order
func (r *Result) Cities(region Region) []string {
	return slices.Sorted(maps.Keys(r.Regions[region]))
}

// Hospitals returns the sorted hospitals of a city
func (r *Result) Hospitals(region Region, city string) []string {
	return r.Regions[region][city]
}

// RegionCount returns the number of hospitals classified under a region
func (r *Result) RegionCount(region Region) int {
	total := 0
	for _, hospitals := range r.Regions[region] {
		total += len(hospitals)
	}
	return total
}

// TotalClassified returns the number of hospitals placed in a city
func (r *Result) TotalClassified() int {
	total := 0
	for _, region := range Regions {
		total += r.RegionCount(region)
	}
	return total
}

// MarshalJSON writes {region: {city: [hospital, ...]}} with regions in their fixed
// order and cities sorted, so equal results always encode to equal bytes.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, region := range Regions {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONValue(&buf, string(region)); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		for j, city := range r.Cities(region) {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(&buf, city); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := writeJSONValue(&buf, r.Regions[region][city]); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSONValue encodes v without HTML escaping
func writeJSONValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// CitySummary is the hospital count of one city
type CitySummary struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}

// RegionSummary is the hospital count of one region and its cities
type RegionSummary struct {
	Region Region        `json:"region"`
	Count  int           `json:"count"`
	Cities []CitySummary `json:"cities"`
}

// Summary holds the statistics printed after a classification run
type Summary struct {
	Regions             []RegionSummary `json:"regions"`
	TotalClassified     int             `json:"total_classified"`
	TotalUnclassified   int             `json:"total_unclassified"`
	UnclassifiedPreview []string        `json:"unclassified_preview"`
}

// Summary computes per region and per city counts
func (r *Result) Summary() Summary {
	s := Summary{
		TotalUnclassified:   len(r.Unclassified),
		UnclassifiedPreview: r.Unclassified[:min(len(r.Unclassified), unclassifiedPreviewSize)],
	}

	for _, region := range Regions {
		rs := RegionSummary{Region: region, Cities: []CitySummary{}}
		for _, city := range r.Cities(region) {
			count := len(r.Regions[region][city])
			rs.Cities = append(rs.Cities, CitySummary{City: city, Count: count})
			rs.Count += count
		}
		s.TotalClassified += rs.Count
		s.Regions = append(s.Regions, rs)
	}

	return s
}

// Print writes the summary in a human readable form
func (s Summary) Print(w io.Writer) {
	for _, rs := range s.Regions {
		fmt.Fprintf(w, "\n%s: %d hospitals in %d cities\n", rs.Region, rs.Count, len(rs.Cities))
		for _, cs := range rs.Cities {
			fmt.Fprintf(w, "  %s: %d hospitals\n", cs.City, cs.Count)
		}
	}

	fmt.Fprintf(w, "\nTotal classified: %d\n", s.TotalClassified)
	fmt.Fprintf(w, "Unclassified: %d\n", s.TotalUnclassified)

	if len(s.UnclassifiedPreview) > 0 {
		fmt.Fprintf(w, "\nUnclassified hospitals (first %d):\n", unclassifiedPreviewSize)
		for _, name := range s.UnclassifiedPreview {
			fmt.Fprintf(w, "  - %s\n", name)
		}
	}
}
