package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scooby/export"
	"scooby/filters"
	"scooby/session"
)

func newSearchCommand() *cobra.Command {
	values := make(map[filters.Field]*string, len(filters.Fields))
	var page int
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "List properties matching a filter",
		Long: `List one page of properties. The filter starts from the optional query
string and is then edited by the filter flags, exactly as the form in the
interactive browser would edit it.

Examples:
  scooby search --city manizales --min-rooms 3
  scooby search "city=pereira&max_price=300000000" --page 2
  scooby search --region caldas --csv > caldas.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := queryArg(args)
			if err != nil {
				return err
			}

			form := filters.NewController(store)
			edited := false
			for _, field := range filters.Fields {
				if cmd.Flags().Changed(flagName(field)) {
					if err := form.HandleChange(field, *values[field]); err != nil {
						return err
					}
					edited = true
				}
			}
			if edited {
				form.Apply()
			}
			s := newSession(store, session.Options{})
			defer s.Close()
			if page > 1 {
				s.GoToPage(page - 1)
			}

			props, err := s.Listings.Load(cmd.Context(), s.ListingParams())
			if err != nil {
				return fmt.Errorf("failed to list properties: %w", err)
			}

			out := cmd.OutOrStdout()
			if asCSV {
				return export.WriteProperties(out, props)
			}
			renderProperties(out, props)
			fmt.Fprintf(out, "page %d, %d active filters\n%s\n", s.Page()+1, s.Filters.ActiveFilterCount(), s.Store.URL(current.cfg.WebURL))
			return nil
		},
	}

	for _, field := range filters.Fields {
		v := new(string)
		values[field] = v
		usage := fmt.Sprintf("filter by %s", strings.ReplaceAll(string(field), "_", " "))
		if field.IsNumeric() {
			usage += " (invalid numbers are ignored)"
		}
		cmd.Flags().StringVar(v, flagName(field), "", usage)
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")
	return cmd
}

func flagName(field filters.Field) string {
	return strings.ReplaceAll(string(field), "_", "-")
}
