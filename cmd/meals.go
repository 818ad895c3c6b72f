package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/meal-analyzer/internal/model"
)

var (
	mealsUser   string
	mealsDate   string
	mealsLimit  int
	mealsOffset int
)

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "List stored meals for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		meals, err := st.ListMeals(cmd.Context(), model.MealFilter{
			UserID: mealsUser,
			Date:   mealsDate,
			Limit:  mealsLimit,
			Offset: mealsOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list meals")
		}
		return writeJSON(cmd.OutOrStdout(), meals)
	},
}

func init() {
	mealsCmd.Flags().StringVar(&mealsUser, "user", "", "user id (required)")
	mealsCmd.Flags().StringVar(&mealsDate, "date", "", "only meals on this date (YYYY-MM-DD)")
	mealsCmd.Flags().IntVar(&mealsLimit, "limit", 0, "max meals to return (default 100)")
	mealsCmd.Flags().IntVar(&mealsOffset, "offset", 0, "meals to skip")
	_ = mealsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(mealsCmd)
}
