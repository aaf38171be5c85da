package climate

import (
	"math"
	"time"

	"github.com/lox/harvesthorizon/internal/models"
)

// Synthetic builds a plausible series of the given length ending on end's date.
// Values depend only on the day index, so equal arguments give equal series.
func Synthetic(end time.Time, days int) models.ClimateSeries {
	if days < 1 {
		days = DefaultWindowDays
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	series := models.ClimateSeries{
		Dates:          make([]time.Time, days),
		Temperature:    make([]float64, days),
		Precipitation:  make([]float64, days),
		SoilMoisture:   make([]float64, days),
		SolarRadiation: make([]float64, days),
	}
	// Ranges: temperature 20-30 °C, precipitation 2.5-7.5 mm/day,
	// soil moisture 0.3-0.6, solar radiation 5.5-6.5 kWh/m²/day.
	for i := 0; i < days; i++ {
		fi := float64(i)
		series.Dates[i] = end.AddDate(0, 0, i-(days-1))
		series.Temperature[i] = round2(20 + float64(i%10) + wave(fi, 1.0))
		series.Precipitation[i] = round2(2.5 + float64(i%5) + wave(fi, 1.3))
		series.SoilMoisture[i] = round2(0.3 + float64(i%3)*0.1 + 0.1*wave(fi, 0.7))
		series.SolarRadiation[i] = round2(5.5 + wave(fi, 0.9))
	}
	return series
}

// wave is a smooth value in [0, 1].
func wave(i, freq float64) float64 {
	return 0.5 + 0.5*math.Sin(i*freq)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
