package engine

import (
	"slices"
	"time"
)

type VetoStatus string

const (
	VetoAwaitingStart VetoStatus = "awaiting_start"
	VetoInProgress    VetoStatus = "in_progress"
	VetoCompleted     VetoStatus = "completed"
)

// VetoStage is a BanStage bound to a concrete captain.
type VetoStage struct {
	CaptainID  string `json:"captain_id"`
	BansToMake int    `json:"bans_to_make"`
}

type VetoLogEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor,omitempty"`
	Action string    `json:"action"`
	Map    string    `json:"map,omitempty"`
}

type VetoState struct {
	Captain1          string         `json:"captain1"`
	Captain2          string         `json:"captain2"`
	MapPool           []string       `json:"map_pool"`
	AvailableMaps     []string       `json:"available_maps_to_ban"`
	BansTeam1         []string       `json:"bans_team1"`
	BansTeam2         []string       `json:"bans_team2"`
	OperatorBans      []string       `json:"operator_bans,omitempty"`
	BanOrder          []VetoStage    `json:"ban_order"`
	CurrentStageIndex int            `json:"current_stage_index"`
	BansMadeThisStage int            `json:"bans_made_this_stage"`
	NextVetoer        string         `json:"next_vetoer,omitempty"`
	PickedMap         string         `json:"picked_map,omitempty"`
	Status            VetoStatus     `json:"status"`
	Log               []VetoLogEntry `json:"log"`
}

func (v VetoState) IsCaptain(playerID string) bool {
	return playerID == v.Captain1 || playerID == v.Captain2
}

func (v VetoState) TotalBans() int {
	return len(v.BansTeam1) + len(v.BansTeam2) + len(v.OperatorBans)
}

// enterVeto binds the ban order to the formed teams and moves the queue to
// veto. Captain2 always opens.
func enterVeto(rec Record, now time.Time) ([]Event, Record) {
	teams := rec.Queue.Teams
	rules := rec.Queue.Rules
	order := rules.BanOrder
	if len(order) == 0 {
		order = DefaultBanOrder(len(rules.MapPool))
	}
	stages := make([]VetoStage, 0, len(order))
	for _, st := range order {
		id := teams.Captain2
		if st.Captain == SlotCaptain1 {
			id = teams.Captain1
		}
		stages = append(stages, VetoStage{CaptainID: id, BansToMake: st.Bans})
	}

	v := &VetoState{
		Captain1:      teams.Captain1,
		Captain2:      teams.Captain2,
		MapPool:       slices.Clone(rules.MapPool),
		AvailableMaps: slices.Clone(rules.MapPool),
		BanOrder:      stages,
		Status:        VetoAwaitingStart,
		Log:           []VetoLogEntry{{At: now, Action: "created"}},
	}
	if len(stages) > 0 {
		v.NextVetoer = stages[0].CaptainID
	}
	rec.Veto = v
	rec.Queue.Status = StatusVeto
	events := []Event{statusChanged(rec.Queue)}

	if rules.AutoStartVeto {
		events = append(events, beginVeto(&rec, "", now)...)
	}
	return events, rec
}

func StartVeto(rec Record, requester string, now time.Time) ([]Event, Record, error) {
	if rec.Veto == nil {
		return nil, rec, ErrVetoNotFound
	}
	if !rec.Veto.IsCaptain(requester) {
		return nil, rec, ErrNotCaptain
	}
	if rec.Veto.Status != VetoAwaitingStart {
		return nil, rec, ErrVetoNotAwaiting
	}
	next := rec.Clone()
	return beginVeto(&next, requester, now), next, nil
}

func beginVeto(rec *Record, actor string, now time.Time) []Event {
	v := rec.Veto
	v.Status = VetoInProgress
	v.Log = append(v.Log, VetoLogEntry{At: now, Actor: actor, Action: "started"})
	events := []Event{{Type: EvtVetoStarted, QueueID: rec.Queue.ID, ActorID: actor, PlayerID: v.NextVetoer}}
	return append(events, settleVeto(rec, now)...)
}

// Ban removes mapName for the requester's team. The same captain keeps the
// turn until the current stage's bans are used up.
func Ban(rec Record, requester, mapName string, now time.Time) ([]Event, Record, error) {
	if rec.Veto == nil {
		return nil, rec, ErrVetoNotFound
	}
	v := rec.Veto
	if v.Status != VetoInProgress {
		return nil, rec, ErrVetoNotInProgress
	}
	if requester != v.NextVetoer {
		return nil, rec, ErrWrongTurn
	}
	if !slices.Contains(v.AvailableMaps, mapName) {
		return nil, rec, ErrMapUnavailable
	}

	next := rec.Clone()
	nv := next.Veto
	if requester == nv.Captain1 {
		nv.BansTeam1 = append(nv.BansTeam1, mapName)
	} else {
		nv.BansTeam2 = append(nv.BansTeam2, mapName)
	}
	nv.AvailableMaps = removeString(nv.AvailableMaps, mapName)
	nv.BansMadeThisStage++
	nv.Log = append(nv.Log, VetoLogEntry{At: now, Actor: requester, Action: "ban", Map: mapName})

	if nv.BansMadeThisStage >= nv.BanOrder[nv.CurrentStageIndex].BansToMake {
		nv.CurrentStageIndex++
		nv.BansMadeThisStage = 0
		nv.NextVetoer = ""
		if nv.CurrentStageIndex < len(nv.BanOrder) {
			nv.NextVetoer = nv.BanOrder[nv.CurrentStageIndex].CaptainID
		}
	}

	events := []Event{{Type: EvtMapBanned, QueueID: next.Queue.ID, ActorID: requester, Map: mapName}}
	events = append(events, settleVeto(&next, now)...)
	return events, next, nil
}

// settleVeto picks the map once exactly one is left. Running out of stages
// with several maps left is an anomaly: nothing is picked and the queue waits
// for an admin.
func settleVeto(rec *Record, now time.Time) []Event {
	v := rec.Veto
	switch {
	case len(v.AvailableMaps) == 1:
		return pickMap(rec, v.AvailableMaps[0], "", now)
	case v.CurrentStageIndex < len(v.BanOrder) && len(v.AvailableMaps) > 1:
		return nil
	}

	v.Status = VetoCompleted
	v.NextVetoer = ""
	v.Log = append(v.Log, VetoLogEntry{At: now, Action: "anomaly"})
	rec.Queue.Status = StatusVetoAnomaly
	return []Event{statusChanged(rec.Queue)}
}

func pickMap(rec *Record, mapName, actor string, now time.Time) []Event {
	v := rec.Veto
	v.PickedMap = mapName
	v.Status = VetoCompleted
	v.NextVetoer = ""
	v.Log = append(v.Log, VetoLogEntry{At: now, Actor: actor, Action: "pick", Map: mapName})
	rec.Queue.Map = mapName
	rec.Queue.AllocationPending = true
	return []Event{{Type: EvtMapPicked, QueueID: rec.Queue.ID, ActorID: actor, Map: mapName}}
}

// ResolveVeto lets an admin choose among the maps an anomalous veto left
// behind. The other leftovers are recorded as operator bans.
func ResolveVeto(rec Record, actor, mapName string, now time.Time) ([]Event, Record, error) {
	if rec.Veto == nil {
		return nil, rec, ErrVetoNotFound
	}
	if rec.Queue.Status != StatusVetoAnomaly || rec.Veto.PickedMap != "" {
		return nil, rec, ErrNotAnomalous
	}
	if !slices.Contains(rec.Veto.AvailableMaps, mapName) {
		return nil, rec, ErrMapUnavailable
	}

	next := rec.Clone()
	nv := next.Veto
	for _, m := range nv.AvailableMaps {
		if m != mapName {
			nv.OperatorBans = append(nv.OperatorBans, m)
		}
	}
	nv.AvailableMaps = []string{mapName}
	return pickMap(&next, mapName, actor, now), next, nil
}
