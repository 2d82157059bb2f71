package ics

import (
	ical "github.com/arran4/golang-ical"

	"autoplan/internal/model"
)

// BuildCalendar serializes proposed events into an ICS payload a
// calendar collaborator can import or preview. The "Source:" marker in
// each description survives the round trip, so the caller can later
// find and reconcile planner-made events.
func BuildCalendar(events []model.ProposedEvent) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//autoplan//planner//EN")

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetSummary(ev.Summary)
		ve.SetDescription(ev.Description)
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(ev.End)
		if ev.ColorID != "" {
			ve.SetProperty(ical.ComponentProperty("X-COLOR-ID"), ev.ColorID)
		}
	}

	return cal.Serialize()
}
