package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loglens/internal/dialect"
	"loglens/internal/engine"
	"loglens/internal/watch"
)

var (
	watchAuxFiles []string
	watchDialect  string
)

var watchCmd = &cobra.Command{
	Use:   "watch <logfile> [logfile...]",
	Short: "Re-run the analysis whenever a log file changes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchAuxFiles, "aux", nil, "auxiliary log files to correlate on every pass")
	watchCmd.Flags().StringVar(&watchDialect, "dialect", "auto", "log dialect: auto, explicit or trace")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	kind, err := dialectKind(watchDialect)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng := engine.New(cfg, engine.WithLogger(logger))

	analyze := func() {
		sources := make([]engine.Source, 0, len(args))
		for _, path := range args {
			src, err := readSource(path, kind)
			if err != nil {
				logger.Warn("skipping source", zap.String("path", path), zap.Error(err))
				continue
			}
			sources = append(sources, src)
		}
		aux := make([]engine.Source, 0, len(watchAuxFiles))
		for _, path := range watchAuxFiles {
			src, err := readSource(path, dialect.KindUnknown)
			if err != nil {
				logger.Warn("skipping aux source", zap.String("path", path), zap.Error(err))
				continue
			}
			aux = append(aux, src)
		}
		res, err := eng.Analyze(cmd.Context(), sources, aux)
		if err != nil {
			logger.Warn("analysis failed", zap.Error(err))
			return
		}
		fmt.Fprint(cmd.OutOrStdout(), renderSummary(res))
	}

	analyze()

	paths := append(append([]string{}, args...), watchAuxFiles...)
	w, err := watch.New(paths, func(string) { analyze() }, logger)
	if err != nil {
		return err
	}
	if err := w.Start(cmd.Context()); err != nil {
		return err
	}
	defer w.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	select {
	case <-cmd.Context().Done():
	case <-sig:
	}
	return nil
}
