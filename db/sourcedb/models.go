package sourcedb

import "time"

// Text fields of the rows below are returned exactly as stored, so any of
// them may hold an encryption envelope.

type CaseRow struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	CaseType    string
	Status      string
	CreatedAt   time.Time
}

type EvidenceRow struct {
	ID           int64
	CaseID       int64
	Title        string
	Content      string
	EvidenceType string
	FilePath     string
	CreatedAt    time.Time
}

type ConversationRow struct {
	ID           int64
	UserID       int64
	CaseID       *int64
	Title        string
	MessageCount int
	CreatedAt    time.Time
}

type MessageRow struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	CreatedAt      time.Time
}

type NoteRow struct {
	ID        int64
	UserID    int64
	CaseID    *int64
	Title     string
	Content   string
	IsPinned  bool
	CreatedAt time.Time
}
