// pricecast trains and queries stock price forecasting models from the shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"PriceCast/internal/di"
	"PriceCast/internal/domain/models"
	"PriceCast/internal/usecase"
	"PriceCast/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	asJSON     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pricecast",
		Short:         "Train and query daily close forecasting models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path (empty for defaults and env only)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(forecastCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(searchCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withServices loads config, wires the use cases and runs fn with them.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, s *di.Services) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	svc, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(cmd.Context(), svc)
}

func trainCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "train SYMBOL",
		Short: "Fetch history, train a model and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *di.Services) error {
				res, err := s.Training.Run(ctx, models.TrainCommand{Symbol: args[0], From: from, To: to})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(res)
				}
				fmt.Printf("trained %s: mse=%.6f train=%d test=%d at %s\n",
					res.Model.Symbol, res.MSE, res.Model.TrainSamples, res.Model.TestSamples,
					res.Model.TrainedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default: one year before --to)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default: today)")
	return cmd
}

func forecastCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "forecast SYMBOL",
		Short: "Forecast the next closes with the stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *di.Services) error {
				fc, err := s.Forecaster.Forecast(ctx, usecase.ForecastParams{Symbol: args[0], HorizonDays: days})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(fc)
				}
				fmt.Printf("%s forecast from %s (%s model)\n", fc.Symbol, fc.LastKnownDate.Format(time.DateOnly), fc.Source)
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tCLOSE")
				for _, p := range fc.Points {
					fmt.Fprintf(tw, "%s\t%.2f\n", p.Date.Format(time.DateOnly), p.Close)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 30, "forecast horizon in calendar days")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List symbols with a saved model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, s *di.Services) error {
				symbols, err := s.Registry.List(ctx)
				if err != nil {
					return err
				}
				infos := make([]models.ModelInfo, 0, len(symbols))
				for _, sym := range symbols {
					a, err := s.Registry.Load(ctx, sym)
					if err != nil {
						return fmt.Errorf("load %s: %w", sym, err)
					}
					infos = append(infos, a.Info())
				}
				if asJSON {
					return printJSON(infos)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SYMBOL\tTRAINED\tMSE\tTRAIN\tTEST")
				for _, m := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%.6f\t%d\t%d\n",
						m.Symbol, m.TrainedAt.Format(time.RFC3339), m.EvalMSE, m.TrainSamples, m.TestSamples)
				}
				return tw.Flush()
			})
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Look up tickers by company name or symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *di.Services) error {
				matches, err := s.Search.Search(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(matches)
				}
				if len(matches) == 0 {
					fmt.Println("no matches")
					return nil
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SYMBOL\tNAME\tEXCHANGE")
				for _, m := range matches {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Symbol, m.Name, m.Exchange)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
