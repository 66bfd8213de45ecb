package engine

import (
	"slices"
	"time"
)

type Status string

const (
	StatusWaiting                Status = "waiting"
	StatusPicking                Status = "picking"
	StatusVeto                   Status = "veto"
	StatusInProgress             Status = "in_progress"
	StatusCompleted              Status = "completed"
	StatusNotEnoughPlayers       Status = "error_not_enough_players"
	StatusServerAllocationFailed Status = "error_server_allocation_failed"
	StatusVetoAnomaly            Status = "error_veto_anomaly"
)

// Mode decides how a popped queue forms its two teams.
type Mode string

const (
	ModeDraft   Mode = "draft"
	ModeBalance Mode = "balance"
)

func (m Mode) Valid() bool { return m == ModeDraft || m == ModeBalance }

type Member struct {
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Rating      *float64  `json:"rating,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Teams holds the final rosters. Captain1/Captain2 are the first entries of
// Team1/Team2.
type Teams struct {
	Captain1 string   `json:"captain1"`
	Captain2 string   `json:"captain2"`
	Team1    []string `json:"team1"`
	Team2    []string `json:"team2"`
}

type ServerRef struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
	Source   string `json:"source,omitempty"`
}

type AllocationRequest struct {
	QueueID string
	OwnerID string
	Map     string
}

type Rules struct {
	MapPool         []string   `json:"map_pool"`
	BanOrder        []BanStage `json:"ban_order,omitempty"`
	FlipProbability float64    `json:"flip_probability"`
	AutoStartVeto   bool       `json:"auto_start_veto"`
}

type Queue struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Capacity  int        `json:"capacity"`
	Mode      Mode       `json:"mode"`
	Private   bool       `json:"private"`
	Status    Status     `json:"status"`
	Members   []Member   `json:"members"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Teams     *Teams     `json:"teams,omitempty"`
	Map       string     `json:"map,omitempty"`
	Server    *ServerRef `json:"server,omitempty"`
	MatchID   string     `json:"match_id,omitempty"`
	// AllocationPending is set while a server request for Map is outstanding.
	AllocationPending bool  `json:"allocation_pending,omitempty"`
	Rules             Rules `json:"rules"`
}

// Record is the unit the store reads and writes atomically.
type Record struct {
	Queue Queue       `json:"queue"`
	Draft *DraftState `json:"draft,omitempty"`
	Veto  *VetoState  `json:"veto,omitempty"`
}

// TeamSpec describes one roster handed to the match repository.
type TeamSpec struct {
	QueueID   string
	Slot      int
	Name      string
	CaptainID string
	Members   []string
}

type FinalizedMatch struct {
	QueueID   string
	TeamAID   string
	TeamBID   string
	PickedMap string
	ServerRef *ServerRef
}

func (q Queue) IsMember(playerID string) bool {
	return slices.ContainsFunc(q.Members, func(m Member) bool { return m.PlayerID == playerID })
}

func (q Queue) Member(playerID string) (Member, bool) {
	for _, m := range q.Members {
		if m.PlayerID == playerID {
			return m, true
		}
	}
	return Member{}, false
}

func (q Queue) Full() bool { return len(q.Members) >= q.Capacity }

// Clone returns a deep copy so transitions never write through to the input.
func (r Record) Clone() Record {
	out := r
	out.Queue.Members = slices.Clone(r.Queue.Members)
	for i, m := range out.Queue.Members {
		if m.Rating != nil {
			v := *m.Rating
			out.Queue.Members[i].Rating = &v
		}
	}
	out.Queue.Rules.MapPool = slices.Clone(r.Queue.Rules.MapPool)
	out.Queue.Rules.BanOrder = slices.Clone(r.Queue.Rules.BanOrder)
	if r.Queue.Teams != nil {
		t := *r.Queue.Teams
		t.Team1 = slices.Clone(t.Team1)
		t.Team2 = slices.Clone(t.Team2)
		out.Queue.Teams = &t
	}
	if r.Queue.Server != nil {
		s := *r.Queue.Server
		out.Queue.Server = &s
	}
	if r.Draft != nil {
		d := *r.Draft
		d.AvailablePlayers = slices.Clone(d.AvailablePlayers)
		d.Team1Picks = slices.Clone(d.Team1Picks)
		d.Team2Picks = slices.Clone(d.Team2Picks)
		out.Draft = &d
	}
	if r.Veto != nil {
		v := *r.Veto
		v.MapPool = slices.Clone(v.MapPool)
		v.AvailableMaps = slices.Clone(v.AvailableMaps)
		v.BansTeam1 = slices.Clone(v.BansTeam1)
		v.BansTeam2 = slices.Clone(v.BansTeam2)
		v.OperatorBans = slices.Clone(v.OperatorBans)
		v.BanOrder = slices.Clone(v.BanOrder)
		v.Log = slices.Clone(v.Log)
		out.Veto = &v
	}
	return out
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func statusChanged(q Queue) Event {
	return Event{Type: EvtQueueStatusChanged, QueueID: q.ID, Status: q.Status}
}
