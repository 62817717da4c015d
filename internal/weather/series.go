// Package weather provides outdoor conditions over time, loaded from CSV.
package weather

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/Agrid-Dev/acmock/internal/thermal"
)

var (
	ErrEmptySeries        = errors.New("weather series is empty")
	ErrUnorderedSeries    = errors.New("weather hours must be strictly increasing")
	ErrInvalidHumidity    = errors.New("relative humidity must be within [0, 100]")
	ErrInvalidTemperature = thermal.ErrInvalidTemperature
	ErrInvalidSampleRow   = errors.New("weather sample is not a finite number")
)

// Sample is one CSV row: hours since the start of the series.
type Sample struct {
	Hour             float64 `csv:"hour"`
	Temperature      float64 `csv:"temperature"`
	RelativeHumidity float64 `csv:"relative_humidity"`
}

type Series struct {
	samples []Sample
	Loop    bool // wrap elapsed time around the series span instead of clamping
}

func New(samples []Sample, loop bool) (*Series, error) {
	s := &Series{samples: append([]Sample(nil), samples...), Loop: loop}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Load(path string, loop bool) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weather file: %w", err)
	}
	defer f.Close()
	return Parse(f, loop)
}

func Parse(r io.Reader, loop bool) (*Series, error) {
	var samples []Sample
	if err := gocsv.Unmarshal(r, &samples); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, ErrEmptySeries
		}
		return nil, fmt.Errorf("parse weather csv: %w", err)
	}
	return New(samples, loop)
}

func (s *Series) Validate() error {
	if len(s.samples) == 0 {
		return ErrEmptySeries
	}
	for i, smp := range s.samples {
		if !finite(smp.Hour) || !finite(smp.Temperature) || !finite(smp.RelativeHumidity) {
			return fmt.Errorf("row %d: %w", i+1, ErrInvalidSampleRow)
		}
		if smp.RelativeHumidity < 0 || smp.RelativeHumidity > 100 {
			return fmt.Errorf("row %d: %w", i+1, ErrInvalidHumidity)
		}
		if !thermal.ValidTemperature(smp.Temperature) {
			return fmt.Errorf("row %d: %w", i+1, ErrInvalidTemperature)
		}
		if i > 0 && smp.Hour <= s.samples[i-1].Hour {
			return fmt.Errorf("row %d: %w", i+1, ErrUnorderedSeries)
		}
	}
	return nil
}

func (s *Series) Samples() []Sample { return append([]Sample(nil), s.samples...) }

// Span is the time between the first and last sample.
func (s *Series) Span() time.Duration {
	first, last := s.samples[0].Hour, s.samples[len(s.samples)-1].Hour
	return time.Duration((last - first) * float64(time.Hour))
}

// At returns outdoor temperature and relative humidity at elapsed time,
// measured from the first sample.
func (s *Series) At(elapsed time.Duration) (temperature, humidity float64) {
	first := s.samples[0]
	if len(s.samples) == 1 {
		return first.Temperature, first.RelativeHumidity
	}
	last := s.samples[len(s.samples)-1]

	h := first.Hour + elapsed.Hours()
	if s.Loop {
		span := last.Hour - first.Hour
		h = first.Hour + math.Mod(h-first.Hour, span)
		if h < first.Hour {
			h += span
		}
	}
	if h <= first.Hour {
		return first.Temperature, first.RelativeHumidity
	}
	if h >= last.Hour {
		return last.Temperature, last.RelativeHumidity
	}

	// first index with Hour > h; h lies strictly inside the series here.
	i := sort.Search(len(s.samples), func(i int) bool { return s.samples[i].Hour > h })
	a, b := s.samples[i-1], s.samples[i]
	f := (h - a.Hour) / (b.Hour - a.Hour)
	return lerp(a.Temperature, b.Temperature, f), lerp(a.RelativeHumidity, b.RelativeHumidity, f)
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
