// Package person holds the case-file data model shared by the registry and
// its store adapters.
package person

import (
	"fmt"
	"strings"
	"time"
)

// Known statuses. The set is open; only these three are matched anywhere.
const (
	StatusFree     = "Libre"
	StatusMissing  = "Disparu"
	StatusDeceased = "Mort"
)

// DateLayout is the calendar format used at the API boundary.
const DateLayout = "2006-01-02"

// Person is a case file as seen by callers.
type Person struct {
	ID          *int64    `json:"id,omitempty"`
	Name        string    `json:"name"`
	CodeName    string    `json:"codeName,omitempty"`
	Status      string    `json:"status"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Connexions  []string  `json:"connexions,omitempty"`
	ImageData   []byte    `json:"imageData,omitempty"`
}

// Row is the denormalized record-store shape of a Person.
type Row struct {
	ID          int64
	Name        string
	CodeName    *string
	Status      string
	DateOfBirth int64 // epoch milliseconds
}

// Fields are the mutable columns touched by a field-level update.
type Fields struct {
	Name        string
	CodeName    *string
	Status      string
	DateOfBirth int64
}

// HasID reports whether the person was saved before.
func (p *Person) HasID() bool {
	return p.ID != nil
}

// IDValue returns the identity or -1 when unset.
func (p *Person) IDValue() int64 {
	if p.ID == nil {
		return -1
	}
	return *p.ID
}

// WithID returns a copy of p carrying id.
func (p Person) WithID(id int64) Person {
	p.ID = &id
	return p
}

// MissingFields lists the mandatory fields that are empty, in a stable order.
func (p *Person) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(p.Status) == "" {
		missing = append(missing, "status")
	}
	if p.DateOfBirth.IsZero() {
		missing = append(missing, "dateOfBirth")
	}
	return missing
}

// ToRow maps the person onto its record-store row. The ID must be set.
func (p *Person) ToRow() Row {
	return Row{
		ID:          p.IDValue(),
		Name:        p.Name,
		CodeName:    optional(p.CodeName),
		Status:      p.Status,
		DateOfBirth: ToEpochMillis(p.DateOfBirth),
	}
}

// ToFields returns the columns rewritten on update.
func (p *Person) ToFields() Fields {
	return Fields{
		Name:        p.Name,
		CodeName:    optional(p.CodeName),
		Status:      p.Status,
		DateOfBirth: ToEpochMillis(p.DateOfBirth),
	}
}

// FromRow builds a Person from a stored row. Connexions and image are left empty.
func FromRow(r Row) Person {
	id := r.ID
	p := Person{
		ID:          &id,
		Name:        r.Name,
		Status:      r.Status,
		DateOfBirth: FromEpochMillis(r.DateOfBirth),
	}
	if r.CodeName != nil {
		p.CodeName = *r.CodeName
	}
	return p
}

// ToEpochMillis converts the calendar date of t, read in t's own location,
// to epoch milliseconds at UTC midnight. The time of day is dropped.
func ToEpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
}

// FromEpochMillis converts epoch milliseconds back to a UTC calendar date.
func FromEpochMillis(ms int64) time.Time {
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a yyyy-mm-dd date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// AgeAt returns the age in whole years on the given day.
func AgeAt(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// String renders the person as one fixed-width line.
func (p Person) String() string {
	dob := ""
	if !p.DateOfBirth.IsZero() {
		dob = p.DateOfBirth.Format(DateLayout)
	}
	return fmt.Sprintf("%-20s%-20s%-10s%-12s%-15s", p.Name, p.CodeName, p.Status, dob,
		fmt.Sprintf("%d connexions", len(p.Connexions)))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
