package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/tripledger/tripledger/internal/trips"
)

func day(d int) trips.Date {
	return trips.NewDate(2024, time.June, d)
}

func sampleTrip() trips.Trip {
	return trips.Trip{ID: 1, Name: "Porto", StartDate: day(1), EndDate: day(4), Currency: "EUR"}
}

func samplePurchases() []trips.Purchase {
	return []trips.Purchase{
		{ID: 3, PayerID: 10, Description: "Dinner", Category: "Food", Amount: 30, Date: day(2), SharedWith: []int64{10, 11, 12}},
		{ID: 1, PayerID: 11, Description: "Hotel", Category: "lodging", Amount: 90.5, Date: day(1), SharedWith: []int64{10, 11}},
		{ID: 2, PayerID: 10, Description: "Coffee", Category: "food", Amount: 3.2, Date: day(2), SharedWith: []int64{10}},
		{ID: 4, PayerID: 12, Description: "Early bird", Category: "", Amount: 5, Date: trips.NewDate(2024, time.May, 31), SharedWith: []int64{12}},
	}
}

func TestToMinorRespectsCurrencyScale(t *testing.T) {
	assert.Equal(t, Minor(1999), ToMinor(19.99, "EUR"))
	assert.Equal(t, Minor(1010), ToMinor(10.1, "usd"))
	assert.Equal(t, Minor(1500), ToMinor(1500, "JPY"))
	assert.Equal(t, 0, Scale("JPY"))
	assert.InDelta(t, 19.99, Minor(1999).Major("EUR"), 1e-9)
}

func TestFormatAmount(t *testing.T) {
	eur := FormatAmount(1250, "EUR", language.English)
	assert.Contains(t, eur, "€")
	assert.Contains(t, eur, "12.50")

	jpy := FormatAmount(1500, "JPY", language.English)
	assert.Contains(t, jpy, "1500")
	assert.NotContains(t, jpy, ".")
}

func TestDailySeriesZeroFillsEveryDay(t *testing.T) {
	points := DailySeries(sampleTrip(), samplePurchases())

	require.Len(t, points, 4)
	assert.Equal(t, "2024-06-01", points[0].Date.String())
	assert.Equal(t, "2024-06-04", points[3].Date.String())
	assert.Equal(t, Minor(9050), points[0].Amount)
	assert.Equal(t, Minor(3320), points[1].Amount)
	assert.Equal(t, Minor(0), points[2].Amount)
	assert.Equal(t, Minor(0), points[3].Amount)
	assert.Equal(t, Minor(12370), points[3].Cumulative, "purchase before the trip is left out")
}

func TestDailySeriesWithoutDates(t *testing.T) {
	assert.Nil(t, DailySeries(trips.Trip{Currency: "EUR"}, samplePurchases()))
	single := DailySeries(trips.Trip{StartDate: day(5), EndDate: day(5), Currency: "EUR"}, nil)
	require.Len(t, single, 1)
	assert.Equal(t, Minor(0), single[0].Amount)
}

func TestCategoryBreakdown(t *testing.T) {
	totals := CategoryBreakdown(samplePurchases(), "EUR")

	require.Len(t, totals, 3)
	assert.Equal(t, "lodging", totals[0].Category)
	assert.Equal(t, Minor(9050), totals[0].Amount)
	assert.Equal(t, "food", totals[1].Category)
	assert.Equal(t, Minor(3320), totals[1].Amount)
	assert.Equal(t, 2, totals[1].Count)
	assert.Equal(t, Uncategorized, totals[2].Category)

	var share float64
	for _, c := range totals {
		share += c.Share
	}
	assert.InDelta(t, 1.0, share, 1e-9)
}

func TestCategoryBreakdownTiesByName(t *testing.T) {
	totals := CategoryBreakdown([]trips.Purchase{
		{Category: "taxi", Amount: 5},
		{Category: "bus", Amount: 5},
	}, "EUR")
	require.Len(t, totals, 2)
	assert.Equal(t, "bus", totals[0].Category)
	assert.Empty(t, CategoryBreakdown(nil, "EUR"))
}

func TestFilter(t *testing.T) {
	all := Filter(samplePurchases(), PurchaseFilter{})
	ids := func(list []trips.Purchase) []int64 {
		out := make([]int64, 0, len(list))
		for _, p := range list {
			out = append(out, p.ID)
		}
		return out
	}
	assert.Equal(t, []int64{4, 1, 2, 3}, ids(all))

	assert.Equal(t, []int64{2, 3}, ids(Filter(samplePurchases(), PurchaseFilter{Category: "FOOD"})))
	assert.Equal(t, []int64{4, 3}, ids(Filter(samplePurchases(), PurchaseFilter{ParticipantID: 12})))
	assert.Equal(t, []int64{2, 3}, ids(Filter(samplePurchases(), PurchaseFilter{From: day(2), To: day(3)})))
	assert.Empty(t, Filter(samplePurchases(), PurchaseFilter{ParticipantID: 99}))
}

func TestBalancesSplitRemainderToFirstSharers(t *testing.T) {
	participants := []trips.Participant{{ID: 10, Name: "Ana"}, {ID: 11, Name: "Bo"}, {ID: 12, Name: "Cai"}}
	purchases := []trips.Purchase{
		{PayerID: 10, Amount: 10, SharedWith: []int64{11, 12, 10}},
	}

	balances := Balances(participants, purchases, "EUR")

	require.Len(t, balances, 3)
	assert.Equal(t, Minor(1000), balances[0].Paid)
	assert.Equal(t, Minor(333), balances[0].Owed)
	assert.Equal(t, Minor(334), balances[1].Owed)
	assert.Equal(t, Minor(333), balances[2].Owed)

	var net Minor
	for _, b := range balances {
		net += b.Net()
	}
	assert.Equal(t, Minor(0), net)
}

func TestBalancesSplitRefunds(t *testing.T) {
	participants := []trips.Participant{{ID: 10, Name: "Ana"}, {ID: 11, Name: "Bo"}, {ID: 12, Name: "Cai"}}
	purchases := []trips.Purchase{
		{PayerID: 10, Amount: -10, SharedWith: []int64{10, 11, 12}},
	}

	balances := Balances(participants, purchases, "EUR")

	require.Len(t, balances, 3)
	assert.Equal(t, Minor(-1000), balances[0].Paid)
	assert.Equal(t, Minor(-334), balances[0].Owed)
	assert.Equal(t, Minor(-333), balances[1].Owed)
	assert.Equal(t, Minor(-333), balances[2].Owed)

	var owed Minor
	for _, b := range balances {
		owed += b.Owed
	}
	assert.Equal(t, Minor(-1000), owed)
}

func TestSplitShares(t *testing.T) {
	assert.Equal(t, []Minor{4, 3, 3}, splitShares(10, 3))
	assert.Equal(t, []Minor{-4, -3, -3}, splitShares(-10, 3))
	assert.Equal(t, []Minor{0, 0}, splitShares(0, 2))
	assert.Equal(t, []Minor{-1, 0, 0}, splitShares(-1, 3))
}

func TestBalancesUnknownParticipantsAppended(t *testing.T) {
	balances := Balances([]trips.Participant{{ID: 1, Name: "Ana"}}, []trips.Purchase{
		{PayerID: 1, Amount: 6, SharedWith: []int64{9, 5, 1}},
		{PayerID: 7, Amount: 2},
	}, "EUR")

	require.Len(t, balances, 4)
	assert.Equal(t, []int64{1, 5, 7, 9}, []int64{
		balances[0].ParticipantID, balances[1].ParticipantID, balances[2].ParticipantID, balances[3].ParticipantID,
	})
	assert.Equal(t, Minor(200), balances[2].Owed, "no sharers means the payer carries it")
}

func TestSettle(t *testing.T) {
	balances := []Balance{
		{ParticipantID: 1, Paid: 9000, Owed: 3000},
		{ParticipantID: 2, Paid: 0, Owed: 3000},
		{ParticipantID: 3, Paid: 1000, Owed: 3000},
		{ParticipantID: 4, Paid: 1000, Owed: 1000},
	}

	transfers := Settle(balances)

	assert.Equal(t, []Transfer{
		{FromID: 2, ToID: 1, Amount: 3000},
		{FromID: 3, ToID: 1, Amount: 2000},
	}, transfers)
	assert.Empty(t, Settle(nil))
}

func TestSettleClearsEveryBalance(t *testing.T) {
	participants := []trips.Participant{{ID: 10}, {ID: 11}, {ID: 12}}
	balances := Balances(participants, samplePurchases(), "EUR")
	net := make(map[int64]Minor)
	for _, b := range balances {
		net[b.ParticipantID] = b.Net()
	}
	for _, tr := range Settle(balances) {
		assert.Positive(t, int64(tr.Amount))
		net[tr.FromID] += tr.Amount
		net[tr.ToID] -= tr.Amount
	}
	for id, n := range net {
		assert.Equal(t, Minor(0), n, "participant %d", id)
	}
}
