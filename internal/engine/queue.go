package engine

import "time"

// NewRecord builds a waiting queue with the owner seated as its first member.
func NewRecord(id string, owner Member, capacity int, mode Mode, private bool, rules Rules, now time.Time, ttl time.Duration) ([]Event, Record) {
	owner.JoinedAt = now
	rec := Record{
		Queue: Queue{
			ID:        id,
			OwnerID:   owner.PlayerID,
			Capacity:  capacity,
			Mode:      mode,
			Private:   private,
			Status:    StatusWaiting,
			Members:   []Member{owner},
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
			Rules:     rules,
		},
	}
	events := []Event{
		{Type: EvtQueueCreated, QueueID: id, ActorID: owner.PlayerID, Status: StatusWaiting},
		{Type: EvtPlayerJoined, QueueID: id, PlayerID: owner.PlayerID},
	}
	return events, rec
}

// Join seats m. Joining twice is a no-op in any status, so a retried join
// that popped the queue still succeeds. The join that fills the last seat
// pops the queue in the same transition.
func Join(rec Record, m Member, rng Rand, now time.Time) ([]Event, Record, error) {
	if rec.Queue.IsMember(m.PlayerID) {
		return nil, rec, nil
	}
	if rec.Queue.Status != StatusWaiting {
		return nil, rec, ErrQueueNotWaiting
	}
	if rec.Queue.Full() {
		return nil, rec, ErrQueueFull
	}

	next := rec.Clone()
	m.JoinedAt = now
	next.Queue.Members = append(next.Queue.Members, m)
	events := []Event{{Type: EvtPlayerJoined, QueueID: next.Queue.ID, PlayerID: m.PlayerID}}

	if next.Queue.Full() {
		popEvents, popped := pop(next, rng, now)
		events = append(events, popEvents...)
		next = popped
	}
	return events, next, nil
}

func Leave(rec Record, playerID string) ([]Event, Record, error) {
	if rec.Queue.Status != StatusWaiting {
		return nil, rec, ErrQueueNotWaiting
	}
	if !rec.Queue.IsMember(playerID) {
		return nil, rec, ErrNotMember
	}
	if playerID == rec.Queue.OwnerID && len(rec.Queue.Members) == 1 {
		return nil, rec, ErrOwnerMustDelete
	}

	next := rec.Clone()
	members := next.Queue.Members[:0]
	for _, m := range next.Queue.Members {
		if m.PlayerID != playerID {
			members = append(members, m)
		}
	}
	next.Queue.Members = members
	return []Event{{Type: EvtPlayerLeft, QueueID: next.Queue.ID, PlayerID: playerID}}, next, nil
}

// pop moves a full queue out of waiting. Callers guarantee it runs once, as
// part of the same atomic write that filled the queue.
func pop(rec Record, rng Rand, now time.Time) ([]Event, Record) {
	q := &rec.Queue
	if len(q.Members) < 2 {
		q.Status = StatusNotEnoughPlayers
		return []Event{statusChanged(*q)}, rec
	}

	if q.Mode == ModeBalance {
		teams := Balance(q.Members, q.Rules.FlipProbability, rng)
		q.Teams = &teams
		return enterVeto(rec, now)
	}

	i, j := pickTwo(rng, len(q.Members))
	c1, c2 := q.Members[i].PlayerID, q.Members[j].PlayerID
	available := make([]string, 0, len(q.Members)-2)
	for _, m := range q.Members {
		if m.PlayerID != c1 && m.PlayerID != c2 {
			available = append(available, m.PlayerID)
		}
	}
	rec.Draft = &DraftState{
		Captain1:         c1,
		Captain2:         c2,
		AvailablePlayers: available,
		Team1Picks:       []string{c1},
		Team2Picks:       []string{c2},
		NextPicker:       c1,
		Capacity:         len(q.Members),
	}
	q.Status = StatusPicking
	events := []Event{
		{Type: EvtPickingStarted, QueueID: q.ID, Captain1: c1, Captain2: c2},
		statusChanged(*q),
	}

	// Two-seat queues have nobody left to pick.
	if len(available) == 0 {
		more, next := finishDraft(rec, now)
		return append(events, more...), next
	}
	return events, rec
}
