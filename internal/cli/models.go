package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ofs-s111/internal/domain"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the supported forecast models",
		Run: func(cmd *cobra.Command, _ []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tREGION\tSCHEME\tHOURS\tCYCLES (UTC)")
			for _, id := range domain.ModelIDs() {
				m, _ := domain.Lookup(id)
				hours := m.ForecastHours()
				fmt.Fprintf(w, "%s\t%s\t%s\t%d..%d/%dh\t%v\n",
					m.ID, m.Region, m.Scheme,
					hours[0], hours[len(hours)-1], m.HourStep, m.CycleHours)
			}
			w.Flush()
		},
	}
}
