package domain

import (
	"strconv"
	"time"
)

// ArchiveRecord is the compacted, immutable form of a closed ticket.
type ArchiveRecord struct {
	ID               string
	OriginalTicketID string
	Summary          string
	MainCategory     string
	SubCategory      string
	Year             string
	FinalStatus      TicketStatus
	ArchivedAt       time.Time
}

// NewArchiveRecord compacts a terminal ticket. The summary falls back to the description
// and the year is taken from the creation time in loc.
func NewArchiveRecord(t *Ticket, loc *time.Location, now time.Time) *ArchiveRecord {
	summary := t.Description
	if t.AISummary != nil && *t.AISummary != "" {
		summary = *t.AISummary
	}
	created := t.CreatedAt
	if loc != nil {
		created = created.In(loc)
	}
	return &ArchiveRecord{
		OriginalTicketID: t.ID,
		Summary:          summary,
		MainCategory:     t.MainCategory,
		SubCategory:      t.SubCategory,
		Year:             strconv.Itoa(created.Year()),
		FinalStatus:      t.Status,
		ArchivedAt:       now,
	}
}
