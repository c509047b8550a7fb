package dm

// HartState is the per-hart cache and halt-state record (§3). cacheValid
// implies the hart has been halted and no resume/step/reset has
// intervened since; halted is only meaningful when haltStateKnown is
// true.
type HartState struct {
	haltStateKnown bool
	halted         bool
	cacheValid     bool
	gprs           [numGPRs]uint32
}

func (h *HartState) invalidateCache() {
	h.cacheValid = false
}

func (h *HartState) setHalted(halted bool) {
	h.haltStateKnown = true
	h.halted = halted
	if !halted {
		h.invalidateCache()
	}
}

func validHart(hart int) bool {
	return hart >= 0 && hart < numHarts
}

func validGPR(n int) bool {
	return n >= 0 && n < numGPRs
}
