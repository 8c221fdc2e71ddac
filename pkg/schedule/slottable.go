package schedule

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const dayLayout = "2006-01-02"

// SlotTime maps one daily slot ordinal to its wall-clock posting time.
type SlotTime struct {
	SlotIndex int `yaml:"slot_index" json:"slot_index"`
	Hour      int `yaml:"hour" json:"hour"`
	Minute    int `yaml:"minute" json:"minute"`
}

// SlotTable is the fixed slot-to-clock-time configuration for a day. It is
// configuration, not logic: the writer receives it, nothing hard-codes it.
type SlotTable struct {
	Slots []SlotTime `yaml:"slots" json:"slots"`
}

func LoadSlotTable(path string) (SlotTable, error) {
	if path == "" {
		return DefaultSlotTable(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultSlotTable(), err
	}

	var table SlotTable
	if err := yaml.Unmarshal(content, &table); err != nil {
		return SlotTable{}, err
	}

	if len(table.Slots) == 0 {
		return SlotTable{}, errors.New("no slot times configured")
	}

	sort.Slice(table.Slots, func(i, j int) bool {
		return table.Slots[i].SlotIndex < table.Slots[j].SlotIndex
	})
	for i, slot := range table.Slots {
		if slot.SlotIndex != i {
			return SlotTable{}, fmt.Errorf("slot indexes must be contiguous from 0, got %d at position %d", slot.SlotIndex, i)
		}
		if slot.Hour < 0 || slot.Hour > 23 || slot.Minute < 0 || slot.Minute > 59 {
			return SlotTable{}, fmt.Errorf("invalid time %02d:%02d for slot %d", slot.Hour, slot.Minute, slot.SlotIndex)
		}
	}

	return table, nil
}

// DefaultSlotTable posts six times a day around typical meal and browsing
// hours.
func DefaultSlotTable() SlotTable {
	return SlotTable{Slots: []SlotTime{
		{SlotIndex: 0, Hour: 8, Minute: 0},
		{SlotIndex: 1, Hour: 11, Minute: 30},
		{SlotIndex: 2, Hour: 13, Minute: 0},
		{SlotIndex: 3, Hour: 17, Minute: 0},
		{SlotIndex: 4, Hour: 19, Minute: 30},
		{SlotIndex: 5, Hour: 21, Minute: 0},
	}}
}

func (t SlotTable) Count() int {
	return len(t.Slots)
}

// TimeFor resolves the absolute UTC posting time for a slot on a day.
func (t SlotTable) TimeFor(day string, slotIndex int) (time.Time, error) {
	if slotIndex < 0 || slotIndex >= len(t.Slots) {
		return time.Time{}, fmt.Errorf("slot index %d out of range", slotIndex)
	}
	date, err := time.Parse(dayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	slot := t.Slots[slotIndex]
	return time.Date(date.Year(), date.Month(), date.Day(), slot.Hour, slot.Minute, 0, 0, time.UTC), nil
}

// ValidDay reports whether day is an ISO calendar date.
func ValidDay(day string) bool {
	_, err := time.Parse(dayLayout, day)
	return err == nil
}
