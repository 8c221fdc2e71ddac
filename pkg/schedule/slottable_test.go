package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSlotYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slots.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSlotTableDefaultsOnEmptyPath(t *testing.T) {
	table, err := LoadSlotTable("")
	require.NoError(t, err)
	assert.Equal(t, 6, table.Count())
	assert.Equal(t, 8, table.Slots[0].Hour)
	assert.Equal(t, 21, table.Slots[5].Hour)
}

func TestLoadSlotTableSortsByIndex(t *testing.T) {
	path := writeSlotYAML(t, `
slots:
  - slot_index: 1
    hour: 18
    minute: 30
  - slot_index: 0
    hour: 9
    minute: 0
`)
	table, err := LoadSlotTable(path)
	require.NoError(t, err)
	require.Equal(t, 2, table.Count())
	assert.Equal(t, 9, table.Slots[0].Hour)
	assert.Equal(t, 18, table.Slots[1].Hour)
}

func TestLoadSlotTableRejectsGaps(t *testing.T) {
	path := writeSlotYAML(t, `
slots:
  - slot_index: 0
    hour: 9
    minute: 0
  - slot_index: 2
    hour: 18
    minute: 0
`)
	_, err := LoadSlotTable(path)
	assert.ErrorContains(t, err, "contiguous")
}

func TestLoadSlotTableRejectsBadClockTime(t *testing.T) {
	path := writeSlotYAML(t, `
slots:
  - slot_index: 0
    hour: 24
    minute: 0
`)
	_, err := LoadSlotTable(path)
	assert.ErrorContains(t, err, "invalid time")
}

func TestLoadSlotTableRejectsEmptyList(t *testing.T) {
	path := writeSlotYAML(t, "slots: []\n")
	_, err := LoadSlotTable(path)
	assert.ErrorContains(t, err, "no slot times")
}

func TestTimeForResolvesUTC(t *testing.T) {
	table := DefaultSlotTable()

	at, err := table.TimeFor("2025-01-09", 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 9, 11, 30, 0, 0, time.UTC), at)

	_, err = table.TimeFor("2025-01-09", 6)
	assert.ErrorContains(t, err, "out of range")

	_, err = table.TimeFor("not-a-day", 0)
	assert.ErrorContains(t, err, "invalid day")
}

func TestValidDay(t *testing.T) {
	assert.True(t, ValidDay("2025-01-09"))
	assert.False(t, ValidDay("2025-1-9"))
	assert.False(t, ValidDay("today"))
}
