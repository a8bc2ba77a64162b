package engagement

// Weights and saturation points of the composite engagement index.
// These are calibrated against classroom pilots and must not drift
// between the ingestion path and the alerting rules.
const (
	idleWeight        = 0.3
	interactionWeight = 0.3
	pollWeight        = 0.2
	focusWeight       = 0.2

	// IdleSaturationSeconds is the idle time at which the idle
	// component bottoms out at zero.
	IdleSaturationSeconds = 300.0

	// InteractionSaturation is the interaction count at which the
	// interaction component tops out at one.
	InteractionSaturation = 50.0

	// DropThreshold is the index below which a student is considered
	// disengaged.
	DropThreshold = 0.5

	// SevereDropThreshold is the index below which disengagement is
	// considered severe.
	SevereDropThreshold = 0.3
)

// ComputeIndex derives the composite engagement index from raw metrics.
// The result is always within [0, 1]. A student with zero idle time,
// saturated interactions, any poll participation and full tab focus
// scores exactly 1.0.
func ComputeIndex(m Metrics) float64 {
	idleScore := 1.0 - m.IdleTimeSeconds/IdleSaturationSeconds
	if idleScore < 0 {
		idleScore = 0
	}

	interactionScore := float64(m.Interactions) / InteractionSaturation
	if interactionScore > 1 {
		interactionScore = 1
	}
	if interactionScore < 0 {
		interactionScore = 0
	}

	// Poll participation is a binary signal: any response counts,
	// absence is neutral rather than zero.
	pollScore := 0.5
	if m.PollParticipation > 0 {
		pollScore = 1.0
	}

	focusScore := m.TabFocusPercent / 100.0
	if focusScore > 1 {
		focusScore = 1
	}
	if focusScore < 0 {
		focusScore = 0
	}

	index := idleWeight*idleScore +
		interactionWeight*interactionScore +
		pollWeight*pollScore +
		focusWeight*focusScore

	if index < 0 {
		return 0
	}
	if index > 1 {
		return 1
	}
	return index
}
