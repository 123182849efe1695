package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tripledger/tripledger/internal/analytics"
	"github.com/tripledger/tripledger/internal/analytics/export"
	"github.com/tripledger/tripledger/internal/trips"
)

func newTripsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "List, inspect and manage trips",
	}
	cmd.AddCommand(
		newTripsListCommand(env),
		newTripsShowCommand(env),
		newTripsCreateCommand(env),
		newTripsUpdateCommand(env),
		newTripsDeleteCommand(env),
		newTripsExportCommand(env),
	)
	return cmd
}

func newTripsListCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your trips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := env.requireSession(ctx); err != nil {
				return err
			}
			list, err := env.Trips.List(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, err := fmt.Fprintln(env.Stdout, "No trips yet. Create one with `tripledger trips create`.")
				return err
			}
			tw := newTable(env.Stdout)
			fmt.Fprintln(tw, "ID\tNAME\tDESTINATION\tDATES\tBUDGET")
			for _, t := range list {
				budget := "-"
				if t.Budget > 0 {
					budget = env.amount(analytics.ToMinor(t.Budget, t.Currency), t.Currency)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s to %s\t%s\n", t.ID, t.Name, t.Destination, t.StartDate, t.EndDate, budget)
			}
			return tw.Flush()
		},
	}
}

func newTripsShowCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trip-id>",
		Short: "Show a trip with its spending and balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tripID, err := parseID(args[0])
			if err != nil {
				return err
			}
			sess, err := env.requireSession(ctx)
			if err != nil {
				return err
			}
			d, err := env.Analytics.Dashboard(ctx, sess.User.ID, tripID)
			if err != nil {
				return err
			}
			return env.printDashboard(d)
		},
	}
}

func (e *Env) printDashboard(d analytics.Dashboard) error {
	code := d.Trip.Currency
	w := e.Stdout
	fmt.Fprintf(w, "%s", d.Trip.Name)
	if d.Trip.Destination != "" {
		fmt.Fprintf(w, " (%s)", d.Trip.Destination)
	}
	fmt.Fprintf(w, "\n%s to %s, %d days\n", d.Trip.StartDate, d.Trip.EndDate, d.Trip.Days())
	fmt.Fprintf(w, "Spent: %s", e.amount(d.Total, code))
	if d.Trip.Budget > 0 {
		budget := analytics.ToMinor(d.Trip.Budget, code)
		fmt.Fprintf(w, " of %s (%s left)", e.amount(budget, code), e.amount(budget-d.Total, code))
	}
	fmt.Fprintln(w)

	if len(d.Categories) > 0 {
		fmt.Fprintln(w, "\nBy category")
		tw := newTable(w)
		for _, c := range d.Categories {
			fmt.Fprintf(tw, "  %s\t%s\t%.0f%%\n", c.Category, e.amount(c.Amount, code), c.Share*100)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.Balances) > 0 {
		fmt.Fprintln(w, "\nBalances")
		tw := newTable(w)
		fmt.Fprintln(tw, "  PARTICIPANT\tPAID\tOWES\tNET")
		for _, b := range d.Balances {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", participantLabel(d, b.ParticipantID),
				e.amount(b.Paid, code), e.amount(b.Owed, code), e.amount(b.Net(), code))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.Settlement) > 0 {
		fmt.Fprintln(w, "\nTo settle up")
		for _, t := range d.Settlement {
			fmt.Fprintf(w, "  %s pays %s %s\n", participantLabel(d, t.FromID), participantLabel(d, t.ToID), e.amount(t.Amount, code))
		}
	}
	return nil
}

func newTripsCreateCommand(env *Env) *cobra.Command {
	var (
		in         trips.TripInput
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a trip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			if in.StartDate, err = parseOptionalDate(start); err != nil {
				return err
			}
			if in.EndDate, err = parseOptionalDate(end); err != nil {
				return err
			}
			if _, err := env.requireSession(ctx); err != nil {
				return err
			}
			trip, err := env.Trips.Create(ctx, in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(env.Stdout, "Created trip %d: %s\n", trip.ID, trip.Name)
			return err
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "trip name")
	cmd.Flags().StringVar(&in.Destination, "destination", "", "where the trip goes")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&in.Currency, "currency", "EUR", "ISO 4217 currency code")
	cmd.Flags().Float64Var(&in.Budget, "budget", 0, "optional budget in the trip currency")
	return cmd
}

// newTripsUpdateCommand changes the fields named on the command line and keeps the rest.
func newTripsUpdateCommand(env *Env) *cobra.Command {
	var (
		name, destination, start, end, code string
		budget                              float64
	)
	cmd := &cobra.Command{
		Use:   "update <trip-id>",
		Short: "Change a trip's name, dates, currency or budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tripID, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("destination") && !flags.Changed("start") &&
				!flags.Changed("end") && !flags.Changed("currency") && !flags.Changed("budget") {
				return errors.New("nothing to update: pass at least one of --name, --destination, --start, --end, --currency, --budget")
			}
			if _, err := env.requireSession(ctx); err != nil {
				return err
			}
			current, err := env.Trips.Get(ctx, tripID)
			if err != nil {
				return err
			}
			in := current.Input()
			if flags.Changed("name") {
				in.Name = name
			}
			if flags.Changed("destination") {
				in.Destination = destination
			}
			if flags.Changed("start") {
				if in.StartDate, err = trips.ParseDate(start); err != nil {
					return err
				}
			}
			if flags.Changed("end") {
				if in.EndDate, err = trips.ParseDate(end); err != nil {
					return err
				}
			}
			if flags.Changed("currency") {
				in.Currency = code
			}
			if flags.Changed("budget") {
				in.Budget = budget
			}
			trip, err := env.Trips.Update(ctx, tripID, in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(env.Stdout, "Updated trip %d: %s (%s to %s)\n", trip.ID, trip.Name, trip.StartDate, trip.EndDate)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "trip name")
	cmd.Flags().StringVar(&destination, "destination", "", "where the trip goes")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&code, "currency", "", "ISO 4217 currency code")
	cmd.Flags().Float64Var(&budget, "budget", 0, "budget in the trip currency, 0 clears it")
	return cmd
}

func newTripsDeleteCommand(env *Env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <trip-id>",
		Short: "Delete a trip with its participants and purchases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tripID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := env.requireSession(ctx); err != nil {
				return err
			}
			if !yes {
				trip, err := env.Trips.Get(ctx, tripID)
				if err != nil {
					return err
				}
				answer, err := env.Prompter.Line(fmt.Sprintf("Delete %q and all its purchases? [y/N]", trip.Name))
				if err != nil {
					return err
				}
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					_, err := fmt.Fprintln(env.Stdout, "Kept the trip")
					return err
				}
			}
			if err := env.Trips.Delete(ctx, tripID); err != nil {
				return err
			}
			_, err = fmt.Fprintf(env.Stdout, "Deleted trip %d\n", tripID)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newTripsExportCommand(env *Env) *cobra.Command {
	var kind, output string
	cmd := &cobra.Command{
		Use:   "export <trip-id>",
		Short: "Write a trip's purchases, balances or daily spending as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tripID, err := parseID(args[0])
			if err != nil {
				return err
			}
			write, err := exporterFor(kind)
			if err != nil {
				return err
			}
			sess, err := env.requireSession(ctx)
			if err != nil {
				return err
			}
			d, err := env.Analytics.Dashboard(ctx, sess.User.ID, tripID)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return write(env.Stdout, d)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := write(f, d); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "purchases", "purchases, balances or daily")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write; stdout when empty")
	return cmd
}

func exporterFor(kind string) (func(io.Writer, analytics.Dashboard) error, error) {
	switch strings.ToLower(kind) {
	case "purchases":
		return export.WritePurchasesCSV, nil
	case "balances":
		return export.WriteBalancesCSV, nil
	case "daily":
		return export.WriteDailyCSV, nil
	default:
		return nil, fmt.Errorf("unknown export kind %q", kind)
	}
}

func (e *Env) amount(m analytics.Minor, code string) string {
	return analytics.FormatAmount(m, code, e.Config.Language)
}

func participantLabel(d analytics.Dashboard, id int64) string {
	if name := d.ParticipantName(id); name != "" {
		return name
	}
	return "#" + strconv.FormatInt(id, 10)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseOptionalDate(raw string) (trips.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return trips.Date{}, nil
	}
	return trips.ParseDate(raw)
}
