package domain

import "time"

// MetricPoint is one timestamped, tagged observation handed to a sink.
type MetricPoint struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags"`
	Fields      map[string]float64 `json:"fields"`
	Timestamp   time.Time          `json:"timestamp"`
}

// TotalTagValue marks the aggregate point of a window.
const TotalTagValue = "total"
