package models

import "time"

// Player is the directory entry for a user. A nil Rating means unrated.
type Player struct {
	ID          string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:64;not null"`
	Rating      *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Team struct {
	ID        string   `gorm:"primaryKey;size:36"`
	QueueID   string   `gorm:"size:36;not null;uniqueIndex:idx_team_queue_slot"`
	Slot      int      `gorm:"not null;uniqueIndex:idx_team_queue_slot"`
	Name      string   `gorm:"size:80;not null"`
	CaptainID string   `gorm:"size:64;not null"`
	Members   []string `gorm:"serializer:json"`
	CreatedAt time.Time
}

type Match struct {
	ID           string `gorm:"primaryKey;size:36"`
	QueueID      string `gorm:"size:36;not null;uniqueIndex"`
	TeamAID      string `gorm:"size:36;not null"`
	TeamBID      string `gorm:"size:36;not null"`
	Map          string `gorm:"size:64;not null"`
	ServerID     string `gorm:"size:64"`
	ServerHost   string `gorm:"size:255"`
	ServerPort   int
	ServerSource string `gorm:"size:32"`
	CreatedAt    time.Time
}

// GameServer is a pooled server. An empty OwnerID puts it in the public pool;
// a non-empty QueueID means it is claimed.
type GameServer struct {
	ID        string `gorm:"primaryKey;size:64"`
	OwnerID   string `gorm:"size:64;index"`
	Host      string `gorm:"size:255;not null"`
	Port      int    `gorm:"not null"`
	Password  string `gorm:"size:128"`
	Active    bool   `gorm:"default:true"`
	QueueID   string `gorm:"size:36;index"`
	ClaimedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
