package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripledger/tripledger/internal/analytics"
	"github.com/tripledger/tripledger/internal/trips"
)

func newPurchasesCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "Record and list trip expenses",
	}
	cmd.AddCommand(newPurchasesListCommand(env), newPurchasesAddCommand(env))
	return cmd
}

func newPurchasesListCommand(env *Env) *cobra.Command {
	var (
		filter   analytics.PurchaseFilter
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "list <trip-id>",
		Short: "List a trip's purchases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tripID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if filter.From, err = parseOptionalDate(from); err != nil {
				return err
			}
			if filter.To, err = parseOptionalDate(to); err != nil {
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
			list := analytics.Filter(d.Purchases, filter)
			if len(list) == 0 {
				_, err := fmt.Fprintln(env.Stdout, "No purchases")
				return err
			}
			code := d.Trip.Currency
			tw := newTable(env.Stdout)
			fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT\tPAID BY\tSHARED WITH")
			var total analytics.Minor
			for _, p := range list {
				amount := analytics.ToMinor(p.Amount, code)
				total += amount
				sharers := make([]string, 0, len(p.SharedWith))
				for _, id := range p.SharedWith {
					sharers = append(sharers, participantLabel(d, id))
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Date, p.Description, p.Category,
					env.amount(amount, code), participantLabel(d, p.PayerID), strings.Join(sharers, ", "))
			}
			fmt.Fprintf(tw, "\t\t\tTOTAL\t%s\t\t\n", env.amount(total, code))
			return tw.Flush()
		},
	}
	cmd.Flags().Int64Var(&filter.ParticipantID, "participant", 0, "only purchases paid by or shared with this participant id")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	return cmd
}

func newPurchasesAddCommand(env *Env) *cobra.Command {
	var (
		in   trips.PurchaseInput
		date string
	)
	cmd := &cobra.Command{
		Use:   "add <trip-id>",
		Short: "Record a purchase",
		Long: "Record a purchase paid by --payer and split evenly between the --shared participants. " +
			"Without --shared the purchase is split between every participant of the trip.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tripID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if date == "" {
				in.Date = trips.NewDate(time.Now().Date())
			} else if in.Date, err = trips.ParseDate(date); err != nil {
				return err
			}
			if _, err := env.requireSession(ctx); err != nil {
				return err
			}
			if len(in.SharedWith) == 0 {
				participants, err := env.Trips.Participants(ctx, tripID)
				if err != nil {
					return err
				}
				for _, p := range participants {
					in.SharedWith = append(in.SharedWith, p.ID)
				}
			}
			p, err := env.Trips.AddPurchase(ctx, tripID, in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(env.Stdout, "Recorded purchase %d: %s\n", p.ID, p.Description)
			return err
		},
	}
	cmd.Flags().Int64Var(&in.PayerID, "payer", 0, "participant id who paid")
	cmd.Flags().StringVar(&in.Description, "description", "", "what was bought")
	cmd.Flags().StringVar(&in.Category, "category", analytics.Uncategorized, "spending category")
	cmd.Flags().Float64Var(&in.Amount, "amount", 0, "amount in the trip currency")
	cmd.Flags().StringVar(&date, "date", "", "day of the purchase, YYYY-MM-DD; today when empty")
	cmd.Flags().Int64SliceVar(&in.SharedWith, "shared", nil, "participant ids sharing the cost")
	return cmd
}
