package chart

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/luki/lhmsensors/internal/history"
)

func TestSparkline(t *testing.T) {
	values := []float64{30, 35, 40, 50, 60, 70, 80, 90, 100}
	result := RenderSparkline(values, 20, 20, 110, ThresholdsFor("Temperature"))
	assert.NotEmpty(t, result)
	assert.Empty(t, RenderSparkline(values, 0, 20, 110, Thresholds{}))
	t.Logf("Sparkline: %s", result)
}

func TestSparklineMinuteTicks(t *testing.T) {
	base := time.Date(2026, 2, 21, 14, 0, 50, 0, time.Local)
	var pts []history.Point
	for i := 0; i < 20; i++ {
		pts = append(pts, history.Point{
			Value: float64(40 + i%5),
			Time:  base.Add(time.Duration(i) * time.Second),
		})
	}

	result := RenderSparklinePoints(pts, 20, 30, 55, ThresholdsFor("Temperature"))
	assert.Contains(t, result, "│")

	timeline := RenderTimeline(pts, 20)
	assert.Contains(t, timeline, "14:01")
}

func TestValueColor(t *testing.T) {
	th := ThresholdsFor("Temperature")
	assert.Equal(t, "78", string(ValueColor(40, th)))
	assert.Equal(t, "220", string(ValueColor(70, th)))
	assert.Equal(t, "208", string(ValueColor(85, th)))
	assert.Equal(t, "196", string(ValueColor(99, th)))
	assert.Equal(t, "78", string(ValueColor(1e6, ThresholdsFor("Throughput"))))
}

func TestRange(t *testing.T) {
	lo, hi := Range("Load", []float64{12, 40})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)

	lo, hi = Range("Temperature", []float64{15, 120})
	assert.Equal(t, 15.0, lo)
	assert.Equal(t, 120.0, hi)

	lo, hi = Range("Fan", []float64{1000, 2000})
	assert.Equal(t, 900.0, lo)
	assert.Equal(t, 2100.0, hi)

	lo, hi = Range("Throughput", []float64{0, 10})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 11.0, hi)

	lo, hi = Range("Voltage", nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestThresholdScale(t *testing.T) {
	bar := RenderThresholdScale(50, 20, 110, ThresholdsFor("Temperature"), 30)
	assert.Contains(t, bar, "◆")
	assert.Equal(t, 2, strings.Count(bar, "▪"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "  54.50 °C", FormatValue(54.5, "°C"))
	assert.Equal(t, "  100.0 MB/s", FormatValue(100, "MB/s"))
	assert.Equal(t, "   1234 RPM", FormatValue(1234, "RPM"))
	assert.Equal(t, "   0.90", FormatValue(0.9, ""))
}
