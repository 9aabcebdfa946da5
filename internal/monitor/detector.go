package monitor

import "stock-monitor/internal/models"

// ClassifyChange classifies a quantity delta relative to the prior
// observation. With no prior observation the change is always initial and
// the caller defines delta as 0.
func ClassifyChange(previousQuantity *int, delta int) string {
	if previousQuantity == nil {
		return models.ChangeInitial
	}
	switch {
	case delta > 0:
		return models.ChangeRestock
	case delta < 0:
		return models.ChangePurchase
	default:
		return models.ChangeUnchanged
	}
}

// ClassifyThreshold evaluates the current quantity against the configured
// bounds. A nil threshold is not configured. Low is evaluated before high:
// in the degenerate configuration where both bounds are breached at once
// (low >= high), low wins. That tie-break is deliberate and relied on.
func ClassifyThreshold(currentQuantity int, thresholdLow, thresholdHigh *int) (bool, string) {
	if thresholdLow != nil && currentQuantity <= *thresholdLow {
		return true, models.ThresholdLow
	}
	if thresholdHigh != nil && currentQuantity >= *thresholdHigh {
		return true, models.ThresholdHigh
	}
	return false, ""
}
