package slot

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/scheduler-api/internal/model"
)

// daySchedule is one doctor-day arena: an ordered, non-overlapping partition
// of the working hours into fixed-duration slots. Its mutex is the unit of
// mutual exclusion for allocations, so contention is scoped to a single
// doctor-day, never the whole grid.
type daySchedule struct {
	mu       sync.Mutex
	doctorID uuid.UUID
	date     time.Time
	slots    []*slotState
}

type slotState struct {
	slot model.Slot
	// heldBy is the appointment owning this slot's buffer hold, uuid.Nil
	// unless slot.Status is Held.
	heldBy uuid.UUID
}

type slotRef struct {
	day *daySchedule
	idx int
}

type apptRecord struct {
	appt *model.Appointment
	ref  slotRef
	held []slotRef
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// buildDay materializes the free slots for one doctor-day.
func buildDay(doctorID uuid.UUID, date time.Time, hours model.WorkingHours, slotMinutes int) *daySchedule {
	day := &daySchedule{doctorID: doctorID, date: date}
	start := time.Date(date.Year(), date.Month(), date.Day(), hours.Start, 0, 0, 0, date.Location())
	end := time.Date(date.Year(), date.Month(), date.Day(), hours.End, 0, 0, 0, date.Location())

	step := time.Duration(slotMinutes) * time.Minute
	for cur := start; !cur.Add(step).After(end); cur = cur.Add(step) {
		day.slots = append(day.slots, &slotState{
			slot: model.Slot{
				ID:        uuid.New(),
				DoctorID:  doctorID,
				StartTime: cur,
				EndTime:   cur.Add(step),
				Status:    model.SlotStatusFree,
			},
		})
	}
	return day
}

// candidate carries ranking inputs for one free slot snapshot.
type candidate struct {
	slot        model.Slot
	doctorMatch bool
	dateDist    int
	bandMatch   bool
}

// rankCandidates orders free slots by (1) exact doctor match, (2) proximity
// to the earliest requested date, (3) time-of-day band match, (4) start time.
func rankCandidates(cands []candidate) []model.Slot {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.doctorMatch != b.doctorMatch {
			return a.doctorMatch
		}
		if a.dateDist != b.dateDist {
			return a.dateDist < b.dateDist
		}
		if a.bandMatch != b.bandMatch {
			return a.bandMatch
		}
		return a.slot.StartTime.Before(b.slot.StartTime)
	})

	out := make([]model.Slot, len(cands))
	for i, c := range cands {
		out[i] = c.slot
	}
	return out
}

func daysBetween(a, b time.Time) int {
	d := int(midnight(a).Sub(midnight(b)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
