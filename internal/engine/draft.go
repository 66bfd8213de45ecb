package engine

import (
	"slices"
	"time"
)

// NoPicker marks a draft with nobody left to pick.
const NoPicker = "-"

type DraftState struct {
	Captain1         string   `json:"captain1"`
	Captain2         string   `json:"captain2"`
	AvailablePlayers []string `json:"available_players"`
	Team1Picks       []string `json:"team1_picks"`
	Team2Picks       []string `json:"team2_picks"`
	NextPicker       string   `json:"next_picker"`
	PicksMade        int      `json:"picks_made"`
	Capacity         int      `json:"capacity"`
}

func (d DraftState) IsCaptain(playerID string) bool {
	return playerID == d.Captain1 || playerID == d.Captain2
}

func (d DraftState) Done() bool { return d.NextPicker == NoPicker }

// Pick hands target to the requesting captain's team and passes the turn.
func Pick(rec Record, requester, target string, now time.Time) ([]Event, Record, error) {
	if rec.Draft == nil {
		return nil, rec, ErrDraftNotFound
	}
	d := rec.Draft
	if d.Done() || rec.Queue.Status != StatusPicking {
		return nil, rec, ErrDraftFinished
	}
	if !d.IsCaptain(requester) {
		return nil, rec, ErrNotCaptain
	}
	if requester != d.NextPicker {
		return nil, rec, ErrWrongTurn
	}
	if !slices.Contains(d.AvailablePlayers, target) {
		return nil, rec, ErrPlayerUnavailable
	}

	next := rec.Clone()
	nd := next.Draft
	if requester == nd.Captain1 {
		nd.Team1Picks = append(nd.Team1Picks, target)
		nd.NextPicker = nd.Captain2
	} else {
		nd.Team2Picks = append(nd.Team2Picks, target)
		nd.NextPicker = nd.Captain1
	}
	nd.AvailablePlayers = removeString(nd.AvailablePlayers, target)
	nd.PicksMade++

	events := []Event{{Type: EvtPlayerPicked, QueueID: next.Queue.ID, ActorID: requester, PlayerID: target}}
	if len(nd.AvailablePlayers) == 0 {
		more, done := finishDraft(next, now)
		events = append(events, more...)
		next = done
	}
	return events, next, nil
}

func finishDraft(rec Record, now time.Time) ([]Event, Record) {
	d := rec.Draft
	d.NextPicker = NoPicker
	rec.Queue.Teams = &Teams{
		Captain1: d.Captain1,
		Captain2: d.Captain2,
		Team1:    slices.Clone(d.Team1Picks),
		Team2:    slices.Clone(d.Team2Picks),
	}
	return enterVeto(rec, now)
}
