package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"dicomroi/internal/models"
)

// highlightFields are the exposure fields shown by FormatSingle when present
var highlightFields = []struct {
	name  string
	label string
	unit  string
}{
	{"ExposureIndex", "Exposure index (EI)", ""},
	{"TargetExposureIndex", "Target EI", ""},
	{"DeviationIndex", "Deviation index (DI)", ""},
	{"KVP", "Tube voltage", " kVp"},
}

func field(rec *models.AnalysisRecord, name string) string {
	if v, ok := rec.Get(name); ok {
		return v.Format()
	}
	return ""
}

// FormatSingle renders the multi-ROI records of one image as a text block
func FormatSingle(records []*models.AnalysisRecord) string {
	if len(records) == 0 {
		return "no results\n"
	}
	first := records[0]

	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", field(first, models.FieldFileName))
	if w := field(first, models.FieldDecodeWarning); w != "" {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}

	for _, rec := range records {
		fmt.Fprintf(&b, "\nROI #%s\n", field(rec, models.FieldROIID))
		fmt.Fprintf(&b, "  Mean:       %s\n", field(rec, models.FieldROIMean))
		fmt.Fprintf(&b, "  SD (noise): %s\n", field(rec, models.FieldROINoiseSD))
		fmt.Fprintf(&b, "  Center:     (%s, %s)\n", field(rec, models.FieldROIX), field(rec, models.FieldROIY))
		fmt.Fprintf(&b, "  Radius:     %s\n", field(rec, models.FieldROIR))
	}

	b.WriteString("\nWhole image\n")
	fmt.Fprintf(&b, "  Mean: %s\n", field(first, models.FieldFullImageMean))
	fmt.Fprintf(&b, "  SD:   %s\n", field(first, models.FieldFullImageSD))
	for _, h := range highlightFields {
		if v := field(first, h.name); v != "" {
			fmt.Fprintf(&b, "  %s: %s%s\n", h.label, v, h.unit)
		}
	}
	return b.String()
}

// ROISummary aggregates one ROI across the images of a run
type ROISummary struct {
	ROIID  int64
	Images int

	// MeanOfMeans and SDOfMeans describe ROI_Mean across images
	MeanOfMeans float64
	SDOfMeans   float64

	// MeanNoise and SDNoise describe ROI_Noise_SD across images
	MeanNoise float64
	SDNoise   float64
}

// Summarize groups records by ROI_ID and returns the sample mean and
// standard deviation of the ROI statistics, ordered by ROI_ID
func Summarize(records []*models.AnalysisRecord) []ROISummary {
	means := make(map[int64][]float64)
	noise := make(map[int64][]float64)

	for _, rec := range records {
		idv, ok := rec.Get(models.FieldROIID)
		if !ok || idv.Kind != models.KindInt {
			continue
		}
		m, okM := valueOf(rec, models.FieldROIMean)
		n, okN := valueOf(rec, models.FieldROINoiseSD)
		if !okM || !okN {
			continue
		}
		means[idv.Int] = append(means[idv.Int], m)
		noise[idv.Int] = append(noise[idv.Int], n)
	}

	ids := make([]int64, 0, len(means))
	for id := range means {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]ROISummary, 0, len(ids))
	for _, id := range ids {
		s := ROISummary{ROIID: id, Images: len(means[id])}
		s.MeanOfMeans, s.SDOfMeans = meanStdDev(means[id])
		s.MeanNoise, s.SDNoise = meanStdDev(noise[id])
		out = append(out, s)
	}
	return out
}

func valueOf(rec *models.AnalysisRecord, name string) (float64, bool) {
	v, ok := rec.Get(name)
	if !ok {
		return 0, false
	}
	f, ok := v.Float64()
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// meanStdDev returns the mean and the sample standard deviation. A single
// value has a deviation of 0.
func meanStdDev(x []float64) (mean, sd float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}

// FormatSummary renders per-ROI aggregates as a text table
func FormatSummary(summaries []ROISummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-7s %-12s %-12s %-12s %-12s\n", "ROI", "Images", "Mean", "Mean SD", "Noise", "Noise SD")
	for _, s := range summaries {
		fmt.Fprintf(&b, "#%-5d %-7d %-12.4f %-12.4f %-12.4f %-12.4f\n",
			s.ROIID, s.Images, s.MeanOfMeans, s.SDOfMeans, s.MeanNoise, s.SDNoise)
	}
	return b.String()
}
