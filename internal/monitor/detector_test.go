package monitor

import (
	"testing"

	"stock-monitor/internal/models"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		name     string
		previous *int
		delta    int
		want     string
	}{
		{"no prior observation", nil, 0, models.ChangeInitial},
		{"no prior observation ignores delta", nil, 5, models.ChangeInitial},
		{"positive delta", intPtr(10), 5, models.ChangeRestock},
		{"negative delta", intPtr(10), -3, models.ChangePurchase},
		{"zero delta", intPtr(10), 0, models.ChangeUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyChange(tt.previous, tt.delta))
		})
	}
}

func TestClassifyThreshold(t *testing.T) {
	tests := []struct {
		name         string
		quantity     int
		low, high    *int
		wantBreached bool
		wantType     string
	}{
		{"no thresholds", 10, nil, nil, false, ""},
		{"below low", 3, intPtr(5), nil, true, models.ThresholdLow},
		{"equal to low", 5, intPtr(5), nil, true, models.ThresholdLow},
		{"above low", 6, intPtr(5), nil, false, ""},
		{"above high", 60, nil, intPtr(50), true, models.ThresholdHigh},
		{"equal to high", 50, nil, intPtr(50), true, models.ThresholdHigh},
		{"below high", 49, nil, intPtr(50), false, ""},
		{"between both", 20, intPtr(5), intPtr(50), false, ""},
		{"both configured, low breached", 4, intPtr(5), intPtr(50), true, models.ThresholdLow},
		{"both configured, high breached", 55, intPtr(5), intPtr(50), true, models.ThresholdHigh},
		// Degenerate config where low >= high: low wins by evaluation
		// order, which is documented and preserved.
		{"both breached simultaneously", 30, intPtr(40), intPtr(20), true, models.ThresholdLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breached, kind := ClassifyThreshold(tt.quantity, tt.low, tt.high)
			assert.Equal(t, tt.wantBreached, breached)
			assert.Equal(t, tt.wantType, kind)
		})
	}
}
