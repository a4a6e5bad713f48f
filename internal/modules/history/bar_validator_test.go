package history

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/portfolio-analytics/internal/domain"
	testingpkg "github.com/aristath/portfolio-analytics/internal/testing"
)

func TestValidateBar(t *testing.T) {
	v := NewBarValidator(true, zerolog.New(nil).Level(zerolog.Disabled))
	bars := testingpkg.Bars([]float64{100, 101})
	prev := bars[0]

	tests := []struct {
		name   string
		mutate func(b *domain.PriceBar)
		valid  bool
		reason string
	}{
		{"valid", func(b *domain.PriceBar) {}, true, ""},
		{"spike", func(b *domain.PriceBar) { b.Close, b.High = 1200, 1200 }, false, "spike_detected"},
		{"crash", func(b *domain.PriceBar) { b.Close, b.Low, b.Open = 5, 5, 5 }, false, "crash_detected"},
		{"not increasing", func(b *domain.PriceBar) { b.Time = prev.Time }, false, "timestamp_not_increasing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bars[1]
			tt.mutate(&b)
			ok, reason := v.ValidateBar(b, &prev)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidateBar_JumpChecksDisabled(t *testing.T) {
	v := NewBarValidator(false, zerolog.New(nil).Level(zerolog.Disabled))
	bars := testingpkg.Bars([]float64{100, 5000})

	ok, _ := v.ValidateBar(bars[1], &bars[0])
	assert.True(t, ok)
}

func TestClean_SortsAndDeduplicates(t *testing.T) {
	v := NewBarValidator(true, zerolog.New(nil).Level(zerolog.Disabled))
	bars := testingpkg.Bars([]float64{10, 11, 12})
	later := bars[2]
	later.Close, later.High = 13, 13
	input := []domain.PriceBar{bars[2], bars[0], bars[1], later}

	clean, rejected := v.Clean("X", input)

	assert.Empty(t, rejected)
	closes := make([]float64, len(clean))
	for i, b := range clean {
		closes[i] = b.Close
	}
	assert.Equal(t, []float64{10, 11, 13}, closes)

	_, err := domain.NewPriceSeries("X", clean)
	assert.NoError(t, err)
}
