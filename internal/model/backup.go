package model

import "time"

// SnapshotVersion is the current backup file format version. Snapshots with
// version >= 2.0 carry a userId at the snapshot and card level; 1.x files
// predate multi-user support and omit it.
const SnapshotVersion = "2.0"

// AppName is stamped into every snapshot so a restore can tell whether a file
// came from this application at all.
const AppName = "cardbinder"

// BackupType distinguishes snapshots the server created on its own (auto)
// from ones the user requested (manual). Only auto snapshots are pruned.
type BackupType string

const (
	BackupAuto   BackupType = "auto"
	BackupManual BackupType = "manual"
)

// SnapshotMetadata summarises a snapshot's contents so a backup listing can
// show counts and value without unmarshalling every card.
type SnapshotMetadata struct {
	TotalCards int     `json:"totalCards"`
	TotalValue float64 `json:"totalValue"`
	ExportedBy string  `json:"exportedBy,omitempty"`
	UserName   string  `json:"userName,omitempty"`
}

// BackupSnapshot is an immutable, versioned export of a user's cards.
// It is produced by the snapshot builder and consumed read-only by the
// restore engine; nothing mutates a snapshot after it is built.
type BackupSnapshot struct {
	Version   string           `json:"version"`
	Timestamp string           `json:"timestamp"` // RFC 3339
	AppName   string           `json:"appName"`
	UserID    string           `json:"userId,omitempty"` // absent in 1.x files
	Cards     []Card           `json:"cards"`
	Metadata  SnapshotMetadata `json:"metadata"`
}

// BackupRecord is a persisted snapshot. Auto records are pruned down to the
// single latest per user; manual records live until the user deletes them.
type BackupRecord struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Type      BackupType     `json:"type"`
	Snapshot  BackupSnapshot `json:"snapshot"`
	SizeBytes int64          `json:"sizeBytes"`
	CreatedAt time.Time      `json:"createdAt"`
}

// BackupListEntry is what the backup listing endpoint returns — the record's
// envelope plus the snapshot metadata, without the card payload.
type BackupListEntry struct {
	ID         string           `json:"id"`
	Type       BackupType       `json:"type"`
	SizeBytes  int64            `json:"sizeBytes"`
	CreatedAt  time.Time        `json:"createdAt"`
	Metadata   SnapshotMetadata `json:"metadata"`
	CardsTotal int              `json:"cardsTotal"`
}
