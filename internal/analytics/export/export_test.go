package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripledger/tripledger/internal/analytics"
	"github.com/tripledger/tripledger/internal/trips"
)

func dashboard() analytics.Dashboard {
	return analytics.Build(
		trips.Trip{ID: 1, Name: "Porto", StartDate: trips.NewDate(2024, time.June, 1), EndDate: trips.NewDate(2024, time.June, 2), Currency: "EUR"},
		[]trips.Participant{{ID: 1, Name: "Ana"}, {ID: 2, Name: "Bo"}},
		[]trips.Purchase{
			{ID: 1, PayerID: 1, Description: "Dinner, late", Category: "food", Amount: 25, Date: trips.NewDate(2024, time.June, 1), SharedWith: []int64{1, 2}},
			{ID: 2, PayerID: 3, Description: "Taxi", Category: "transport", Amount: 7.5, Date: trips.NewDate(2024, time.June, 2), SharedWith: []int64{3}},
		},
	)
}

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWritePurchasesCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WritePurchasesCSV(buf, dashboard()))

	records := readAll(t, buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2024-06-01", "Dinner, late", "food", "25.00", "EUR", "Ana", "Ana; Bo"}, records[1])
	assert.Equal(t, "#3", records[2][5])
}

func TestWriteBalancesCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteBalancesCSV(buf, dashboard()))

	records := readAll(t, buf)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Participant", "Paid", "Owed", "Net"}, records[0])
	assert.Equal(t, []string{"Ana", "25.00", "12.50", "12.50"}, records[1])
	assert.Equal(t, []string{"Bo", "0.00", "12.50", "-12.50"}, records[2])
	assert.Equal(t, []string{"#3", "7.50", "7.50", "0.00"}, records[3])
}

func TestWriteDailyCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteDailyCSV(buf, dashboard()))

	records := readAll(t, buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2024-06-02", "7.50", "32.50"}, records[2])
}
