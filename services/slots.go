package services

import (
	"sort"

	"github.com/gespadel/gespadel/models"
)

// ToggleSlot removes slot from current when present, otherwise adds it if
// there is room. On rejection the returned set equals current.
func ToggleSlot(current []models.TimeSlot, slot models.TimeSlot, max int) ([]models.TimeSlot, error) {
	out := make([]models.TimeSlot, 0, len(current)+1)
	removed := false
	for _, s := range current {
		if s == slot {
			removed = true
			continue
		}
		out = append(out, s)
	}
	if removed {
		return out, nil
	}
	if len(current) >= max {
		return append([]models.TimeSlot(nil), current...), newError(KindSlotLimitExceeded,
			"at most %d unavailable slots can be marked", max)
	}
	return append(out, slot), nil
}

// DedupeSlots keeps the first occurrence of each slot.
func DedupeSlots(slots []models.TimeSlot) []models.TimeSlot {
	seen := make(map[models.TimeSlot]bool, len(slots))
	out := make([]models.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// SlotGrid lists every bookable slot of the tournament: each day from start
// to end date crossed with the given hours.
func SlotGrid(t *models.Tournament, hours []int) []models.TimeSlot {
	sorted := append([]int(nil), hours...)
	sort.Ints(sorted)

	days := t.Days()
	grid := make([]models.TimeSlot, 0, len(days)*len(sorted))
	for _, d := range days {
		for _, h := range sorted {
			grid = append(grid, models.TimeSlot{Date: d, Hour: h})
		}
	}
	return grid
}

// ValidateTimePreferences checks that every slot is well formed and part of
// the tournament's grid.
func ValidateTimePreferences(t *models.Tournament, slots []models.TimeSlot, hours []int) error {
	if len(slots) == 0 {
		return nil
	}
	inGrid := make(map[models.TimeSlot]bool)
	for _, s := range SlotGrid(t, hours) {
		inGrid[s] = true
	}
	for _, s := range slots {
		if err := s.Validate(); err != nil {
			return wrapError(KindValidation, err, "invalid time preference")
		}
		if !inGrid[s] {
			return newError(KindValidation, "time preference %s is outside the tournament schedule", s)
		}
	}
	return nil
}
