package domain

import (
	"strings"
	"time"
)

// TimestampLayout formats remark timestamps and archive years.
const TimestampLayout = "2006-01-02 15:04:05"

// ReassignTag attributes reassignment requests in the remark log.
const ReassignTag = "REASSIGN REQ"

// Remark is one timestamped entry of a ticket's remark log.
type Remark struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// String renders the entry as "[YYYY-MM-DD HH:MM:SS] author: text".
func (r Remark) String() string {
	return "[" + r.At.Format(TimestampLayout) + "] " + r.Author + ": " + r.Text
}

// RemarkLog is the append-only audit trail of a ticket.
type RemarkLog []Remark

// String renders one line per entry, oldest first.
func (l RemarkLog) String() string {
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// With returns a copy of l with r appended. l itself is not modified.
func (l RemarkLog) With(r Remark) RemarkLog {
	out := make(RemarkLog, len(l), len(l)+1)
	copy(out, l)
	return append(out, r)
}

func newRemark(author, text string, now time.Time) Remark {
	return Remark{At: now, Author: author, Text: singleLine(text)}
}

func singleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
