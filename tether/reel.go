package tether

// ReelRequest decides the reel flag after a toggle request.
//
// Starting to reel requires the actor to be in combat stance; a request that
// fails this is dropped and the current flag is returned unchanged. Stopping is
// always allowed. Without a joint, or with a joint that is already fully
// reeled, the flag is forced off.
func ReelRequest(current, requested, inCombat, hasJoint, fullyReeled bool) bool {
	if requested && !inCombat {
		return current
	}
	return ResolveReeling(requested, hasJoint, fullyReeled)
}

// ResolveReeling applies the reel invariants to a desired flag value.
func ResolveReeling(want, hasJoint, fullyReeled bool) bool {
	if !hasJoint || fullyReeled {
		return false
	}
	return want
}
