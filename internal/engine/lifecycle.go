package engine

// RecordAllocation stores the outcome of the allocation started by a map
// pick. A nil ref means every source failed; the map and rosters are kept so
// the allocation can be retried or a server assigned by hand.
func RecordAllocation(rec Record, ref *ServerRef) ([]Event, Record, error) {
	if !rec.Queue.AllocationPending || rec.Queue.Map == "" {
		return nil, rec, ErrNoPendingServer
	}
	next := rec.Clone()
	next.Queue.AllocationPending = false
	if ref == nil {
		next.Queue.Status = StatusServerAllocationFailed
		return []Event{statusChanged(next.Queue)}, next, nil
	}
	s := *ref
	next.Queue.Server = &s
	next.Queue.Status = StatusInProgress
	return []Event{statusChanged(next.Queue)}, next, nil
}

// ClaimAllocationRetry marks a failed allocation as pending again. Only one
// caller can hold the claim.
func ClaimAllocationRetry(rec Record) ([]Event, Record, error) {
	if rec.Queue.Status != StatusServerAllocationFailed || rec.Queue.AllocationPending {
		return nil, rec, ErrNoPendingServer
	}
	next := rec.Clone()
	next.Queue.AllocationPending = true
	return nil, next, nil
}

// AssignServer installs a server chosen by an operator. It also recovers a
// queue whose allocation result was never recorded.
func AssignServer(rec Record, ref ServerRef) ([]Event, Record, error) {
	q := rec.Queue
	if q.Map == "" || q.Server != nil {
		return nil, rec, ErrNoPendingServer
	}
	if q.Status != StatusServerAllocationFailed && q.Status != StatusVeto && q.Status != StatusVetoAnomaly {
		return nil, rec, ErrNoPendingServer
	}
	next := rec.Clone()
	next.Queue.AllocationPending = false
	next.Queue.Server = &ref
	next.Queue.Status = StatusInProgress
	return []Event{statusChanged(next.Queue)}, next, nil
}

// ReadyToMaterialize reports whether rec has everything a persisted match
// needs.
func ReadyToMaterialize(rec Record) error {
	q := rec.Queue
	if q.Status != StatusInProgress || q.Teams == nil || q.Map == "" {
		return ErrNotReady
	}
	return nil
}
