package types

import "time"

// Request bodies accepted by the HTTP API.

type CreateQueueRequest struct {
	Capacity int    `json:"capacity,omitempty"`
	Private  bool   `json:"private,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

type PickRequest struct {
	PlayerID string `json:"player_id"`
}

type BanRequest struct {
	Map string `json:"map"`
}

type ResolveVetoRequest struct {
	Map string `json:"map"`
}

type AssignServerRequest struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
}

// ErrorResponse carries the queue as well when the change itself was stored
// and only a follow-up step such as allocation failed.
type ErrorResponse struct {
	Error string         `json:"error"`
	Queue *QueueSnapshot `json:"queue,omitempty"`
}

// PlayerRequest sets a directory entry. A nil Rating marks the player unrated.
type PlayerRequest struct {
	DisplayName string   `json:"display_name"`
	Rating      *float64 `json:"rating"`
}

type PlayerResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Rating      *float64 `json:"rating"`
}

// MatchResponse is the stored match a completed queue became.
type MatchResponse struct {
	ID           string    `json:"id"`
	QueueID      string    `json:"queue_id"`
	TeamAID      string    `json:"team_a_id"`
	TeamBID      string    `json:"team_b_id"`
	Map          string    `json:"map"`
	ServerID     string    `json:"server_id,omitempty"`
	ServerHost   string    `json:"server_host,omitempty"`
	ServerPort   int       `json:"server_port,omitempty"`
	ServerSource string    `json:"server_source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
