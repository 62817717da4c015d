package weather

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dayCSV = `hour,temperature,relative_humidity
0,26,80
6,24,85
12,34,55
18,30,65
24,26,80
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(dayCSV), false)
	require.NoError(t, err)
	require.Len(t, s.Samples(), 5)
	assert.Equal(t, 24*time.Hour, s.Span())
	assert.Equal(t, Sample{Hour: 12, Temperature: 34, RelativeHumidity: 55}, s.Samples()[2])
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want error
	}{
		{"header only", "hour,temperature,relative_humidity\n", ErrEmptySeries},
		{"unordered", "hour,temperature,relative_humidity\n0,20,50\n0,21,50\n", ErrUnorderedSeries},
		{"humidity", "hour,temperature,relative_humidity\n0,20,50\n1,21,101\n", ErrInvalidHumidity},
		{"temperature below the Magnus pole", "hour,temperature,relative_humidity\n0,20,50\n1,-237.30001,50\n", ErrInvalidTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.csv), false)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewRejectsTemperatureAtMagnusPole(t *testing.T) {
	_, err := New([]Sample{{Hour: 0, Temperature: -237.3, RelativeHumidity: 50}}, false)
	assert.ErrorIs(t, err, ErrInvalidTemperature)
	assert.ErrorContains(t, err, "row 1")
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse(strings.NewReader("hour,temperature,relative_humidity\nx,20,50\n"), false)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day.csv")
	require.NoError(t, os.WriteFile(path, []byte(dayCSV), 0o600))

	s, err := Load(path, true)
	require.NoError(t, err)
	assert.True(t, s.Loop)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), false)
	assert.Error(t, err)
}

func TestAtInterpolates(t *testing.T) {
	s, err := Parse(strings.NewReader(dayCSV), false)
	require.NoError(t, err)

	temp, rh := s.At(9 * time.Hour)
	assert.InDelta(t, 29.0, temp, 1e-9)
	assert.InDelta(t, 70.0, rh, 1e-9)

	temp, rh = s.At(12 * time.Hour)
	assert.InDelta(t, 34.0, temp, 1e-9)
	assert.InDelta(t, 55.0, rh, 1e-9)
}

func TestAtClamps(t *testing.T) {
	s, err := Parse(strings.NewReader(dayCSV), false)
	require.NoError(t, err)

	temp, rh := s.At(-time.Hour)
	assert.Equal(t, 26.0, temp)
	assert.Equal(t, 80.0, rh)

	temp, _ = s.At(30 * time.Hour)
	assert.Equal(t, 26.0, temp)
}

func TestAtLoops(t *testing.T) {
	s, err := Parse(strings.NewReader(dayCSV), true)
	require.NoError(t, err)

	want, _ := s.At(9 * time.Hour)
	got, _ := s.At(33 * time.Hour)
	assert.InDelta(t, want, got, 1e-9)

	got, _ = s.At(-15 * time.Hour)
	assert.InDelta(t, want, got, 1e-9)
}

func TestSingleSample(t *testing.T) {
	s, err := New([]Sample{{Hour: 0, Temperature: 30, RelativeHumidity: 40}}, true)
	require.NoError(t, err)

	temp, rh := s.At(5 * time.Hour)
	assert.Equal(t, 30.0, temp)
	assert.Equal(t, 40.0, rh)
}
