// Package notification renders booking events into customer and owner
// messages and hands them to a Notifier.
package notification

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
)

// Audience is who a message is written for.
type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceOwner    Audience = "owner"
)

// Message is one rendered notification.
type Message struct {
	EventID   string   `json:"event_id"`
	EventType string   `json:"event_type"`
	BookingID string   `json:"booking_id"`
	Audience  Audience `json:"audience"`
	To        string   `json:"to"`
	Body      string   `json:"body"`
}

type templateData struct {
	Service  string
	Customer string
	Start    string
	Previous string
	InHours  int
	Reason   string
}

const timeFormat = "Mon Jan 2 2006 15:04"

var templates = template.Must(template.New("notifications").Parse(`
{{define "created_customer"}}Booking received for {{.Service}} on {{.Start}}. We'll confirm soon.{{end}}
{{define "created_owner"}}New booking: {{.Service}} | {{.Customer}} | {{.Start}}{{end}}
{{define "rescheduled_customer"}}Booking updated: {{.Service}} now at {{.Start}}.{{end}}
{{define "rescheduled_owner"}}Moved: {{.Service}} | {{.Customer}} | {{.Previous}} -> {{.Start}}{{end}}
{{define "cancelled_customer"}}Your booking for {{.Service}} on {{.Start}} was cancelled.{{if .Reason}} Reason: {{.Reason}}{{end}}{{end}}
{{define "cancelled_owner"}}Cancelled: {{.Service}} | {{.Customer}} | {{.Start}}{{end}}
{{define "confirmed_customer"}}Great! Your booking for {{.Service}} on {{.Start}} is confirmed. See you soon!{{end}}
{{define "confirmed_owner"}}Confirmed: {{.Service}} | {{.Customer}} | {{.Start}}{{end}}
{{define "completed_customer"}}Thank you for choosing us! Your {{.Service}} session is complete. We hope you loved the results!{{end}}
{{define "completed_owner"}}Completed: {{.Service}} | {{.Customer}} | {{.Start}}{{end}}
{{define "no-show_owner"}}No-show: {{.Service}} | {{.Customer}} | {{.Start}}{{end}}
{{define "reminder_customer"}}Reminder: {{.Service}} at {{.Start}}. See you soon! Reply to adjust.{{end}}
{{define "reminder_owner"}}Upcoming ({{.InHours}}h): {{.Service}} | {{.Customer}} | {{.Start}}{{end}}
`))

// Renderer turns events into messages. Times are shown in the business
// time zone.
type Renderer struct {
	loc        *time.Location
	ownerEmail string
}

func NewRenderer(loc *time.Location, ownerEmail string) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc, ownerEmail: ownerEmail}
}

// templateKey maps an event to its template family, or "" when the event
// does not notify anyone.
func templateKey(ev scheduling.Event) string {
	switch ev.Type {
	case scheduling.EventBookingCreated:
		return "created"
	case scheduling.EventBookingRescheduled:
		return "rescheduled"
	case scheduling.EventBookingCancelled:
		return "cancelled"
	case scheduling.EventBookingReminder:
		return "reminder"
	case scheduling.EventStatusChanged:
		switch ev.Booking.Status {
		case model.StatusConfirmed, model.StatusCompleted, model.StatusNoShow:
			return string(ev.Booking.Status)
		}
	}
	return ""
}

// Render returns the messages for ev. Audiences without a template for the
// event, or without an address, are skipped.
func (r *Renderer) Render(ev scheduling.Event) ([]Message, error) {
	key := templateKey(ev)
	if key == "" {
		return nil, nil
	}
	b := ev.Booking
	data := templateData{
		Service:  b.ServiceName,
		Customer: b.Customer.Name,
		Start:    b.StartTime.In(r.loc).Format(timeFormat),
		InHours:  int(b.StartTime.Sub(ev.OccurredAt).Round(time.Hour) / time.Hour),
		Reason:   b.CancellationReason,
	}
	if ev.PreviousStart != nil {
		data.Previous = ev.PreviousStart.In(r.loc).Format(timeFormat)
	}

	var out []Message
	for _, a := range []struct {
		audience Audience
		to       string
	}{{AudienceCustomer, b.Customer.Email}, {AudienceOwner, r.ownerEmail}} {
		name := key + "_" + string(a.audience)
		if a.to == "" || templates.Lookup(name) == nil {
			continue
		}
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out = append(out, Message{
			EventID:   ev.ID,
			EventType: string(ev.Type),
			BookingID: b.ID,
			Audience:  a.audience,
			To:        a.to,
			Body:      buf.String(),
		})
	}
	return out, nil
}
