package output

import (
	"strconv"

	"github.com/yairfalse/ktelemetry/pkg/domain"
)

// FormatPoints turns snap into one point per row, plus one total point when
// spec.EmitTotal is set. Every point of a measurement carries the same tag keys.
func FormatPoints(snap *domain.WindowSnapshot, spec domain.TableSpec) []domain.MetricPoint {
	n := len(snap.Rows)
	if spec.EmitTotal {
		n++
	}
	points := make([]domain.MetricPoint, 0, n)

	for _, row := range snap.Rows {
		tags := baseTags(spec)
		for i, name := range spec.KeyFields {
			tags[name] = strconv.FormatUint(uint64(row.Key[i]), 10)
		}
		points = append(points, domain.MetricPoint{
			Measurement: spec.Measurement,
			Tags:        tags,
			Fields:      fields(spec, row),
			Timestamp:   snap.At,
		})
	}

	if spec.EmitTotal {
		tags := baseTags(spec)
		for _, name := range spec.KeyFields {
			tags[name] = domain.TotalTagValue
		}
		f := fields(spec, snap.Total)
		if d := snap.Distribution; d != nil && d.Samples > 0 {
			f["p50"] = float64(d.P50)
			f["p90"] = float64(d.P90)
			f["p99"] = float64(d.P99)
			f["max"] = float64(d.Max)
			f["mean"] = d.Mean
		}
		points = append(points, domain.MetricPoint{
			Measurement: spec.Measurement,
			Tags:        tags,
			Fields:      f,
			Timestamp:   snap.At,
		})
	}
	return points
}

func baseTags(spec domain.TableSpec) map[string]string {
	tags := make(map[string]string, len(spec.Tags)+len(spec.KeyFields))
	for k, v := range spec.Tags {
		tags[k] = v
	}
	return tags
}

func fields(spec domain.TableSpec, s domain.DerivedStat) map[string]float64 {
	f := make(map[string]float64, len(spec.Fields))
	for _, c := range spec.Fields {
		f[c.Name] = c.Value(s)
	}
	return f
}
