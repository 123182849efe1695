// Package export writes trip dashboards as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/tripledger/tripledger/internal/analytics"
)

// WritePurchasesCSV emits one row per purchase with payer and sharer names resolved.
func WritePurchasesCSV(w io.Writer, d analytics.Dashboard) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Description", "Category", "Amount", "Currency", "Paid By", "Shared With"}); err != nil {
		return err
	}
	code := d.Trip.Currency
	for _, p := range d.Purchases {
		names := make([]string, 0, len(p.SharedWith))
		for _, id := range p.SharedWith {
			names = append(names, nameOr(d, id))
		}
		if err := writer.Write([]string{
			p.Date.String(),
			p.Description,
			p.Category,
			formatMinor(analytics.ToMinor(p.Amount, code), code),
			code,
			nameOr(d, p.PayerID),
			strings.Join(names, "; "),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBalancesCSV emits what each participant paid, owes and nets.
func WriteBalancesCSV(w io.Writer, d analytics.Dashboard) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Participant", "Paid", "Owed", "Net"}); err != nil {
		return err
	}
	code := d.Trip.Currency
	for _, b := range d.Balances {
		if err := writer.Write([]string{
			nameOr(d, b.ParticipantID),
			formatMinor(b.Paid, code),
			formatMinor(b.Owed, code),
			formatMinor(b.Net(), code),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDailyCSV emits the daily spending series.
func WriteDailyCSV(w io.Writer, d analytics.Dashboard) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Date", "Amount", "Cumulative"}); err != nil {
		return err
	}
	code := d.Trip.Currency
	for _, point := range d.Daily {
		if err := writer.Write([]string{
			point.Date.String(),
			formatMinor(point.Amount, code),
			formatMinor(point.Cumulative, code),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func nameOr(d analytics.Dashboard, id int64) string {
	if name := d.ParticipantName(id); name != "" {
		return name
	}
	return "#" + strconv.FormatInt(id, 10)
}

func formatMinor(m analytics.Minor, code string) string {
	return strconv.FormatFloat(m.Major(code), 'f', analytics.Scale(code), 64)
}
