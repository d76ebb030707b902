package services

import (
	"context"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

// AvailabilityResolver computes free and busy slots over a day window.
//
// Design Principles:
// - The slot grid is pure arithmetic, independently testable
// - Conflict detection fails open: a calendar error means "no conflict"
//   so a backend outage never blocks scheduling
// - Free-slot listings fail closed: a calendar error reports nothing
type AvailabilityResolver struct {
	calendar services.Calendar
	logger   *logging.StructuredLogger
}

// NewAvailabilityResolver creates a resolver over the given calendar.
func NewAvailabilityResolver(calendar services.Calendar, logger *logging.StructuredLogger) *AvailabilityResolver {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &AvailabilityResolver{calendar: calendar, logger: logger}
}

// SlotGrid builds a contiguous, non-overlapping grid of equal-length
// slots covering [windowStart, windowEnd). A trailing remainder shorter
// than slotLength is not emitted.
func SlotGrid(windowStart, windowEnd time.Time, slotLength time.Duration) []models.TimeSlot {
	if slotLength <= 0 || !windowEnd.After(windowStart) {
		return nil
	}

	var slots []models.TimeSlot
	for start := windowStart; !start.Add(slotLength).After(windowEnd); start = start.Add(slotLength) {
		slots = append(slots, models.TimeSlot{Start: start, End: start.Add(slotLength)})
	}
	return slots
}

// FreeSlots returns every slot of the requested length within the day
// window that overlaps no existing event. date supplies the calendar
// day and the location; dayStart/dayEnd bound the window.
func (r *AvailabilityResolver) FreeSlots(ctx context.Context, date time.Time, dayStart, dayEnd models.ClockTime, durationMinutes int) ([]models.TimeSlot, error) {
	windowStart := dayStart.On(date)
	windowEnd := dayEnd.On(date)
	slotLength := time.Duration(durationMinutes) * time.Minute

	grid := SlotGrid(windowStart, windowEnd, slotLength)
	if len(grid) == 0 {
		return nil, nil
	}

	events, err := r.calendar.ListEvents(ctx, windowStart, windowEnd, 50)
	if err != nil {
		r.logger.Warn("calendar lookup failed during free-slot search", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	busy := make([]models.TimeSlot, 0, len(events))
	for _, event := range events {
		busy = append(busy, models.TimeSlot{Start: event.Start, End: event.End})
	}

	free := make([]models.TimeSlot, 0, len(grid))
	for _, slot := range grid {
		conflicts := false
		for _, b := range busy {
			if slot.Overlaps(b) {
				conflicts = true
				break
			}
		}
		if !conflicts {
			free = append(free, slot)
		}
	}
	return free, nil
}

// HasConflict reports whether the proposed slot collides with an
// existing event. A calendar error is treated as no conflict.
func (r *AvailabilityResolver) HasConflict(ctx context.Context, slot models.TimeSlot) bool {
	events, err := r.calendar.ListEvents(ctx, slot.Start, slot.End, 10)
	if err != nil {
		// Fail open: do not block scheduling on a backend outage.
		r.logger.Warn("calendar lookup failed during conflict check", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}

	for _, event := range events {
		if slot.Overlaps(models.TimeSlot{Start: event.Start, End: event.End}) {
			return true
		}
	}
	return false
}
