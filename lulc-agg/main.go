package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nci/lulcagg/catalogue"
	"github.com/nci/lulcagg/gdalio"
	"github.com/nci/lulcagg/metrics"
	"github.com/nci/lulcagg/processor"
	"github.com/nci/lulcagg/utils"
)

var (
	verbose        bool
	metricsLogDir  string
	catalogueDSN   string
	configFile     string
	maxMetricsSize int64

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lulc-agg",
	Short: "Aggregate land-cover rasters into coarse class fractions and means",
	Long: `lulc-agg turns fine resolution categorical land-cover rasters into
coarse continuous rasters. It extracts binary class masks, aggregates
pixel blocks into class fractions or means, and resamples rasters onto a
reference grid while keeping their georeferencing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = utils.NewLogger(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every job of a YAML config file",
	Long: `Runs the jobs of a config document in order. A failing file does not
stop its job and a failing job does not stop the next one; all failures
are reported when the run ends.

Example:
  lulc-agg run -c jobs.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config := &utils.Config{}
		if err := config.LoadConfigFile(configFile); err != nil {
			return err
		}
		return runJobs(cmd.Context(), &config.ServiceConfig, config.Jobs)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsLogDir, "metrics-dir", "", "directory of the rotating metrics log, metrics go to the process log when empty")
	rootCmd.PersistentFlags().Int64Var(&maxMetricsSize, "metrics-max-size", 0, "metrics log size in bytes that triggers rotation")
	rootCmd.PersistentFlags().StringVar(&catalogueDSN, "catalogue", "", "Postgres DSN of the output catalogue")

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "job config file")
	runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newJobCmd(utils.OpResample, "Resample rasters onto a reference grid or by a scale factor"))
	rootCmd.AddCommand(newJobCmd(utils.OpExtract, "Write one binary mask per land-cover class"))
	rootCmd.AddCommand(newJobCmd(utils.OpFraction, "Write the per-block fraction of every land-cover class"))
	rootCmd.AddCommand(newJobCmd(utils.OpMean, "Write the per-block mean of every raster"))
}

// runJobs wires the collaborators shared by all jobs and runs them in
// order. Flags override the service section of a config file.
func runJobs(ctx context.Context, svc *utils.ServiceConfig, jobs []*utils.Job) (err error) {
	if metricsLogDir != "" {
		svc.MetricsLogDir = metricsLogDir
	}
	if maxMetricsSize > 0 {
		svc.MaxMetricsSize = maxMetricsSize
	}
	if catalogueDSN != "" {
		svc.CatalogueDSN = catalogueDSN
	}

	p := processor.InitJobPipeline(ctx, gdalio.NewReader(), gdalio.NewWriter(), logger)

	if svc.MetricsLogDir != "" {
		fl, err := metrics.NewFileLogger(svc.MetricsLogDir, svc.MaxMetricsSize, svc.MaxMetricsLogs, logger)
		if err != nil {
			return err
		}
		defer fl.Close()
		p.Metrics = fl
	} else {
		p.Metrics = metrics.NewZapLogger(logger)
	}

	if svc.CatalogueDSN != "" {
		cat, err := catalogue.Open(ctx, svc.CatalogueDSN)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, cat.Close()) }()
		p.Catalogue = cat
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return multierr.Append(err, ctx.Err())
		}
		if jerr := p.Process(job); jerr != nil {
			logger.Error("job failed", zap.String("job", job.Name), zap.Error(jerr))
			err = multierr.Append(err, fmt.Errorf("job %s: %w", job.Name, jerr))
			continue
		}
		logger.Info("job done", zap.String("job", job.Name))
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
