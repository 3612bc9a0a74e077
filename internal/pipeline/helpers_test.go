package pipeline

import (
	"math"
	"time"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

// row builds a record at the given timestamp; values are keyed by variable
// and NaN means null.
func row(year, month, day, hour int, values map[models.Variable]float64) models.Record {
	rec := models.Record{
		Year:  year,
		Month: month,
		Day:   day,
		Hour:  hour,
		Time:  time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC),
	}
	for v, f := range values {
		if math.IsNaN(f) {
			rec.Set(v, models.Null())
			continue
		}
		rec.Set(v, models.Some(f))
	}
	return rec
}

func dataset(records ...models.Record) *models.Dataset {
	return models.NewDataset("test", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records)
}

func pm(month int, pm25, pm10 float64) models.Record {
	return row(2014, month, 1, 0, map[models.Variable]float64{models.PM25: pm25, models.PM10: pm10})
}

func specFor(vars ...models.Variable) models.FilterSpec {
	return models.FilterSpec{
		Months:    models.AllMonths(),
		Variables: vars,
	}
}

// hundredRows has five PM2.5 outliers (rows 0-4) and three PM10 outliers
// (rows 4-6); row 4 is an outlier for both.
func hundredRows() *models.Dataset {
	records := make([]models.Record, 100)
	for i := range records {
		pm25 := 50 + float64(i%10)
		pm10 := 100 + float64(i%10)
		if i < 5 {
			pm25 = 1000
		}
		if i >= 4 && i <= 6 {
			pm10 = 5000
		}
		records[i] = row(2014, 1+i%12, 1, i%24, map[models.Variable]float64{models.PM25: pm25, models.PM10: pm10})
	}
	return dataset(records...)
}
