package registration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinOneRowPerDay(t *testing.T) {
	t.Parallel()
	days := []string{"24/12/2024", "25/12/2024", "26/12/2024"}
	rows := []Row{{Index: 0}, {Index: 1}}

	a := RoundRobin(days, rows)
	require.Equal(t, days, a.Order)
	require.Equal(t, []Row{{Index: 0}}, a.Rows["24/12/2024"])
	require.Equal(t, []Row{{Index: 1}}, a.Rows["25/12/2024"])
	// Wraps around once the rows run out.
	require.Equal(t, []Row{{Index: 0}}, a.Rows["26/12/2024"])
}

func TestRoundRobinDuplicateDayLabels(t *testing.T) {
	t.Parallel()
	days := []string{"24/12/2024", "24/12/2024"}
	rows := []Row{{Index: 0}, {Index: 1}}

	a := RoundRobin(days, rows)
	require.Equal(t, []string{"24/12/2024"}, a.Order)
	require.Len(t, a.Rows["24/12/2024"], 2)
}

func TestRoundRobinNoRows(t *testing.T) {
	t.Parallel()
	a := RoundRobin([]string{"24/12/2024"}, nil)
	require.Empty(t, a.Order)
}

func TestBroadcastAllRowsEveryDay(t *testing.T) {
	t.Parallel()
	days := []string{"d1", "d2"}
	rows := []Row{{Index: 0}, {Index: 1}, {Index: 2}}

	a := Broadcast(days, rows)
	require.Equal(t, days, a.Order)
	for _, day := range days {
		require.Len(t, a.Rows[day], 3)
	}
}
