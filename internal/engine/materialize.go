package engine

import (
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"

	"autoplan/internal/model"
)

// colorPalette is the number of calendar color slots events are mapped
// onto; ids are "1".."11" to match common calendar color schemes.
const colorPalette = 11

// materialize maps placed chunks to proposed events. It is a pure
// mapping: persistence and upload stay with the caller.
func materialize(allocs []allocation, source string) []model.ProposedEvent {
	events := make([]model.ProposedEvent, 0, len(allocs))
	color := colorForSource(source)

	for _, a := range allocs {
		summary := a.task.Title
		if a.chunks > 1 {
			summary = fmt.Sprintf("%s (%d/%d)", a.task.Title, a.chunk, a.chunks)
		}
		events = append(events, model.ProposedEvent{
			ID:          uuid.NewString(),
			TaskID:      a.task.ID,
			Summary:     summary,
			Description: fmt.Sprintf("Source: %s\nTask: %s", source, a.task.ID),
			Start:       a.start,
			End:         a.end,
			ColorID:     color,
			IsTemp:      true,
		})
	}
	return events
}

// colorForSource derives a stable color id from a schedule source tag.
func colorForSource(source string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(source))
	return fmt.Sprintf("%d", h.Sum32()%colorPalette+1)
}
