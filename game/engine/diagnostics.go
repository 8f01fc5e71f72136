package engine

// Diagnostics counts liveness recoveries and data-generation defects so that
// systemic starvation can be observed from outside the engine.
type Diagnostics struct {
	StaleEvictions     int `json:"stale_evictions"`
	SafeReleases       int `json:"safe_releases"`
	ForcedReleases     int `json:"forced_releases"`
	OverrideCrossings  int `json:"override_crossings"`
	Respawns           int `json:"respawns"`
	SpawnFailures      int `json:"spawn_failures"`
	DirectionFallbacks int `json:"direction_fallbacks"`
	HeadingFallbacks   int `json:"heading_fallbacks"`
	EmptyExitJunctions int `json:"empty_exit_junctions"`
	MaxWaitingCycles   int `json:"max_waiting_cycles"`
}

// Defects returns the number of data-generation defects seen so far
func (d Diagnostics) Defects() int {
	return d.DirectionFallbacks + d.HeadingFallbacks + d.EmptyExitJunctions
}

func (n *Network) observeWaiting(cycles int) {
	if cycles > n.diag.MaxWaitingCycles {
		n.diag.MaxWaitingCycles = cycles
	}
}
