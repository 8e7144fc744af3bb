package domain

// StatFunc extracts one number from a derived stat.
type StatFunc func(DerivedStat) float64

// Standard extractors shared by every table type.
var (
	StatSum       StatFunc = func(s DerivedStat) float64 { return float64(s.Counters.Sum) }
	StatCount     StatFunc = func(s DerivedStat) float64 { return float64(s.Counters.Count) }
	StatSumRate   StatFunc = func(s DerivedStat) float64 { return s.SumRate }
	StatCountRate StatFunc = func(s DerivedStat) float64 { return s.CountRate }
	StatAverage   StatFunc = func(s DerivedStat) float64 { return s.Average }
)

// Column is one console column or one metric field.
type Column struct {
	Name  string
	Value StatFunc
}

// TableSpec is everything that differs between table types. The aggregator,
// formatter and sinks are shared; only this configuration changes.
type TableSpec struct {
	// Name is the table identity ("tx_q", "dist", ...).
	Name string
	// Title is printed above the console section. Empty prints no title.
	Title string
	// Measurement is the fixed measurement name for points.
	Measurement string

	// KeyFields names the used key components; they become point tags.
	KeyFields []string
	// KeyHeaders are the console headers for the key columns.
	KeyHeaders []string
	// KeySpace selects bounded or discovered keys.
	KeySpace KeySpace

	// Columns are rendered on the console after the key columns.
	Columns []Column
	// Fields are emitted on every point.
	Fields []Column
	// Tags are constant tags added to every point.
	Tags map[string]string
	// EmitTotal adds a point tagged TotalTagValue per window.
	EmitTotal bool
}

// QueueTableSpec describes a NIC queue throughput table.
func QueueTableSpec(name, title, device, direction string, queues int) TableSpec {
	return TableSpec{
		Name:        name,
		Title:       title,
		Measurement: "nic_throughput",
		KeyFields:   []string{"queue"},
		KeyHeaders:  []string{"QueueID"},
		KeySpace:    BoundedKeySpace{N: queues},
		Columns: []Column{
			{Name: "avg_size", Value: StatAverage},
			{Name: "BPS", Value: StatSumRate},
			{Name: "PPS", Value: StatCountRate},
		},
		Fields: []Column{
			{Name: "avg_size", Value: StatAverage},
			{Name: "bps", Value: StatSumRate},
			{Name: "pps", Value: StatCountRate},
			{Name: "bytes", Value: StatSum},
			{Name: "packets", Value: StatCount},
		},
		Tags:      map[string]string{"device": device, "direction": direction},
		EmitTotal: true,
	}
}

// PickLatencyTableSpec describes the pick_next_task latency table.
func PickLatencyTableSpec(name string) TableSpec {
	return TableSpec{
		Name:        name,
		Title:       "PICKNEXT",
		Measurement: "picknext",
		KeyFields:   []string{"cpu", "pid", "tgid"},
		KeyHeaders:  []string{"CPU", "PID", "TGID"},
		KeySpace:    DiscoveredKeySpace{},
		Columns: []Column{
			{Name: "avg_ns", Value: StatAverage},
			{Name: "total_ns", Value: StatSum},
			{Name: "count", Value: StatCount},
		},
		Fields: []Column{
			{Name: "duration", Value: StatSum},
			{Name: "count", Value: StatCount},
			{Name: "avg_ns", Value: StatAverage},
		},
		Tags: map[string]string{"glob": "glob"},
	}
}

// RunQueueTableSpec describes the run-queue length histogram.
func RunQueueTableSpec(name string) TableSpec {
	return TableSpec{
		Name:        name,
		Title:       "RUNQLEN",
		Measurement: "runqlen",
		KeyFields:   []string{"runqlen"},
		KeyHeaders:  []string{"runqlen"},
		KeySpace:    DiscoveredKeySpace{},
		Columns: []Column{
			{Name: "count", Value: StatCount},
			{Name: "rate", Value: StatCountRate},
		},
		Fields: []Column{
			{Name: "count", Value: StatCount},
			{Name: "rate", Value: StatCountRate},
		},
		Tags:      map[string]string{"glob": "glob"},
		EmitTotal: true,
	}
}
