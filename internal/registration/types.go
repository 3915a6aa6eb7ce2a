package registration

import "time"

// DayState represents the lifecycle state of a sales day within the process.
type DayState string

// Day states tracked by the registry.
const (
	DayPending   DayState = "pending"
	DayActive    DayState = "active"
	DayCompleted DayState = "completed"
)

// SalesDay is a selectable date on the registration form. Label is the
// externally visible identity (dd/mm/yyyy); ID is resolved lazily from the
// form markup.
type SalesDay struct {
	Label string
	ID    string
	State DayState
}

// Session is a time slot under a sales day with its own capacity.
type Session struct {
	ID    string
	Label string
}

// Row is one registrant record from the ingested spreadsheet. Index is
// assigned once at ingestion and identifies the row for its whole lifecycle.
// DOB fields tolerate float-valued cells (spreadsheets hand back 5.0 for 5).
type Row struct {
	Index       int
	FullName    string
	DOBDay      float64
	DOBMonth    float64
	DOBYear     float64
	Phone       string
	Email       string
	IDNumber    string
	SessionName string
}

// Assignment maps sale-day labels to the ordered rows each day worker will
// process. Order preserves the document order of the scraped labels.
type Assignment struct {
	Order []string
	Rows  map[string][]Row
}

// RoundRobin assigns one row per day, cycling through rows in order. This is
// the default planning mode: day i gets row i mod len(rows).
func RoundRobin(days []string, rows []Row) Assignment {
	a := Assignment{Rows: make(map[string][]Row)}
	if len(rows) == 0 {
		return a
	}
	for i, day := range days {
		if _, seen := a.Rows[day]; !seen {
			a.Order = append(a.Order, day)
		}
		a.Rows[day] = append(a.Rows[day], rows[i%len(rows)])
	}
	return a
}

// Broadcast assigns every row to every day.
func Broadcast(days []string, rows []Row) Assignment {
	a := Assignment{Rows: make(map[string][]Row)}
	for _, day := range days {
		if _, seen := a.Rows[day]; seen {
			continue
		}
		a.Order = append(a.Order, day)
		a.Rows[day] = append([]Row(nil), rows...)
	}
	return a
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
