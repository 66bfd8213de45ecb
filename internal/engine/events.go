package engine

type EventType string

const (
	EvtQueueCreated       EventType = "queue_created"
	EvtPlayerJoined       EventType = "player_joined"
	EvtPlayerLeft         EventType = "player_left"
	EvtPickingStarted     EventType = "picking_started"
	EvtPlayerPicked       EventType = "player_picked"
	EvtVetoStarted        EventType = "veto_started"
	EvtMapBanned          EventType = "map_banned"
	EvtMapPicked          EventType = "map_picked"
	EvtQueueStatusChanged EventType = "queue_status_changed"
	EvtQueueDeleted       EventType = "queue_deleted"
)

/*
	Join (last seat)  -> player_joined -> picking_started -> queue_status_changed
	                     (balance mode: player_joined -> queue_status_changed(veto) [-> veto_started])
	Pick (last pick)  -> player_picked -> queue_status_changed(veto) [-> veto_started]
	Ban (last ban)    -> map_banned -> map_picked
	                     (too many maps left: map_banned -> queue_status_changed(error_veto_anomaly))
	Allocation        -> queue_status_changed(in_progress | error_server_allocation_failed)
	Materialize       -> queue_status_changed(completed) -> queue_deleted
*/

type Event struct {
	Type     EventType `json:"type"`
	QueueID  string    `json:"queue_id"`
	ActorID  string    `json:"actor_id,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
	Map      string    `json:"map,omitempty"`
	Status   Status    `json:"status,omitempty"`
	Captain1 string    `json:"captain1,omitempty"`
	Captain2 string    `json:"captain2,omitempty"`
}
