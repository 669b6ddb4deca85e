package telemetry

import (
	"math"
	"time"
)

// Kind identifies an organism; its value is also the publish topic
type Kind string

const (
	KindTrucha  Kind = "truchas"
	KindLechuga Kind = "lechugas"
)

// ParseKind validates a path or CLI argument
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTrucha:
		return KindTrucha, true
	case KindLechuga:
		return KindLechuga, true
	}
	return "", false
}

func (k Kind) String() string { return string(k) }

// EventName is the stream event name used for live updates of this organism
func (k Kind) EventName() string {
	if k == KindTrucha {
		return "TruchaDataUpdate"
	}
	return "LechugaDataUpdate"
}

// TruchaRecord is one fish measurement
type TruchaRecord struct {
	ID               int64     `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	LengthCm         float64   `json:"length_cm"`
	TemperatureC     float64   `json:"temperature_c"`
	ConductivityUsCm float64   `json:"conductivity_us_cm"`
	PH               float64   `json:"ph"`
	Anomaly          bool      `json:"anomaly"`
}

// LechugaRecord is one crop measurement
type LechugaRecord struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	HeightCm       float64   `json:"height_cm"`
	LeafAreaCm2    float64   `json:"leaf_area_cm2"`
	TemperatureC   float64   `json:"temperature_c"`
	HumidityPct    float64   `json:"humidity_pct"`
	PH             float64   `json:"ph"`
}

// TruchaStats aggregates the whole fish series
type TruchaStats struct {
	Count               int64   `json:"count"`
	AvgLengthCm         float64 `json:"avg_length_cm"`
	MaxLengthCm         float64 `json:"max_length_cm"`
	MinLengthCm         float64 `json:"min_length_cm"`
	AvgTemperatureC     float64 `json:"avg_temperature_c"`
	AvgConductivityUsCm float64 `json:"avg_conductivity_us_cm"`
	AvgPH               float64 `json:"avg_ph"`
	Anomalies           int64   `json:"anomalies"`
	TotalElapsedSeconds int64   `json:"total_elapsed_seconds"`
}

// LechugaStats aggregates the whole crop series
type LechugaStats struct {
	Count               int64   `json:"count"`
	AvgHeightCm         float64 `json:"avg_height_cm"`
	MaxHeightCm         float64 `json:"max_height_cm"`
	MinHeightCm         float64 `json:"min_height_cm"`
	AvgLeafAreaCm2      float64 `json:"avg_leaf_area_cm2"`
	AvgTemperatureC     float64 `json:"avg_temperature_c"`
	AvgHumidityPct      float64 `json:"avg_humidity_pct"`
	AvgPH               float64 `json:"avg_ph"`
	TotalElapsedSeconds int64   `json:"total_elapsed_seconds"`
}

// Round4 rounds half away from zero to 4 decimal places, the stored precision
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
