package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/andresuchdata/autopo-py/depletion/internal/domain"
	"github.com/andresuchdata/autopo-py/depletion/internal/pipeline"
	"github.com/urfave/cli/v2"
)

func productIDArg(c *cli.Context) (int64, error) {
	productID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || productID <= 0 {
		return 0, domain.ErrInvalidProduct
	}
	return productID, nil
}

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Print the depletion report of a product",
		ArgsUsage: "<product-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Only show entries with this status (ok, alert, order)"},
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "page-size", Value: 500},
		},
		Action: func(c *cli.Context) error {
			productID, err := productIDArg(c)
			if err != nil {
				return err
			}

			filter := domain.ReportFilter{Page: c.Int("page"), PageSize: c.Int("page-size")}
			if raw := c.String("status"); raw != "" {
				status, ok := domain.ParseStatusFlag(raw)
				if !ok {
					return fmt.Errorf("invalid status %q", raw)
				}
				filter.Status = &status
			}

			a, err := newApp(c)
			if err != nil {
				return err
			}
			page, err := a.forecasts.DepletionReportPage(c.Context, productID, filter)
			if err != nil {
				return err
			}
			return writeReport(os.Stdout, page)
		},
	}
}

func writeReport(out io.Writer, page *domain.DepletionReportPage) error {
	depletion := "-"
	if page.DepletionDate != nil {
		depletion = page.DepletionDate.Format(domain.DateLayout)
	}
	fmt.Fprintf(out, "product %d  stock %d  avg/day %s  depletes %s\n\n",
		page.ProductID, page.CurrentStock, page.AverageDailyForecast.StringFixed(2), depletion)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDAY\tFORECAST\tREMAINING\tSTATUS")
	for _, e := range page.Items {
		forecast := e.DailyForecast.StringFixed(2)
		if e.FromDefault {
			forecast += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.ForecastDate.Format(domain.DateLayout), e.DayName, forecast, e.RemainingStock.StringFixed(2), e.StatusFlag.Label())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\npage %d/%d, %d entries\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func pastSalesCommand() *cli.Command {
	return &cli.Command{
		Name:      "past-sales",
		Usage:     "Print the reconstructed trailing window of a product",
		ArgsUsage: "<product-id>",
		Action: func(c *cli.Context) error {
			productID, err := productIDArg(c)
			if err != nil {
				return err
			}

			a, err := newApp(c)
			if err != nil {
				return err
			}
			past, err := a.forecasts.PastSales(c.Context, productID)
			if err != nil {
				return err
			}
			return writePastSales(os.Stdout, past)
		},
	}
}

func writePastSales(out io.Writer, past []domain.PastSalesData) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDAY\tSOLD\tREMAINING\tFORECAST")
	for _, p := range past {
		forecast := "-"
		if p.DailyForecast != nil {
			forecast = p.DailyForecast.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			p.Date.Format(domain.DateLayout), p.DayOfWeek, p.UnitsSold, p.RemainingStock, forecast)
	}
	return w.Flush()
}

func uploadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "uploads",
		Usage: "List archived forecast uploads",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			objects, err := a.uploads.ArchivedUploads(c.Context)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE")
			for _, o := range objects {
				fmt.Fprintf(w, "%s\t%d\n", o.Key, o.Size)
			}
			return w.Flush()
		},
	}
}

func warmCommand() *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "Build and cache today's report of every product",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Usage: "Concurrent report builds (defaults to FORECAST_WARM_WORKERS)"},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}

			warmer := a.warmer
			if n := c.Int("workers"); n > 0 {
				warmer = pipeline.NewWarmer(a.forecasts, a.products, pipeline.WarmConfig{WorkerCount: n})
			}

			result, err := warmer.WarmAll(c.Context)
			if err != nil {
				return err
			}

			fmt.Printf("warmed %d/%d products in %s\n", result.Warmed, result.Products, result.Duration)
			if len(result.Orderable) > 0 {
				fmt.Printf("needs order: %v\n", result.Orderable)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d products failed: %v", len(result.Failed), result.Failed)
			}
			return nil
		},
	}
}
