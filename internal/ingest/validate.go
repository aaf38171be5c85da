package ingest

import (
	"encoding/json"
	"time"

	"github.com/lox/harvesthorizon/internal/models"
)

const (
	FlagTempOutOfRange      = "temp_out_of_range"
	FlagPrecipNegative      = "precip_negative"
	FlagPrecipUnlikely      = "precip_unlikely"
	FlagSoilMoistureInvalid = "soil_moisture_invalid"
	FlagSolarNegative       = "solar_negative"
	FlagSolarUnlikely       = "solar_unlikely"
)

// DayFlags lists the quality problems found on one day.
type DayFlags struct {
	Date  time.Time
	Flags []string
}

// ValidateSeries checks each day of a live series for physically implausible
// values. Days with no problems are omitted.
func ValidateSeries(s models.ClimateSeries) []DayFlags {
	var out []DayFlags
	for i := 0; i < s.Len(); i++ {
		var flags []string

		if t := s.Temperature[i]; t < -60 || t > 60 {
			flags = append(flags, FlagTempOutOfRange)
		}

		if i < len(s.Precipitation) {
			switch p := s.Precipitation[i]; {
			case p < 0:
				flags = append(flags, FlagPrecipNegative)
			case p > 500:
				flags = append(flags, FlagPrecipUnlikely)
			}
		}

		if i < len(s.SoilMoisture) {
			if m := s.SoilMoisture[i]; m < 0 || m > 1 {
				flags = append(flags, FlagSoilMoistureInvalid)
			}
		}

		if i < len(s.SolarRadiation) {
			switch r := s.SolarRadiation[i]; {
			case r < 0:
				flags = append(flags, FlagSolarNegative)
			case r > 12:
				flags = append(flags, FlagSolarUnlikely)
			}
		}

		if len(flags) > 0 {
			var date time.Time
			if i < len(s.Dates) {
				date = s.Dates[i]
			}
			out = append(out, DayFlags{Date: date, Flags: flags})
		}
	}
	return out
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
