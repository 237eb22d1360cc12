package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loglens/internal/dialect"
	"loglens/internal/engine"
	"loglens/internal/parse"
	"loglens/internal/store"
)

var (
	analyzeAuxFiles []string
	analyzeDialect  string
	analyzeJSON     bool
	analyzeSaveDB   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <logfile> [logfile...]",
	Short: "Reconstruct tasks from log files and correlate auxiliary logs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&analyzeAuxFiles, "aux", nil, "auxiliary (secondary process) log files to correlate")
	analyzeCmd.Flags().StringVar(&analyzeDialect, "dialect", "auto", "log dialect: auto, explicit or trace")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the full result as JSON instead of a summary")
	analyzeCmd.Flags().StringVar(&analyzeSaveDB, "save", "", "also persist the result into this run database")
	rootCmd.AddCommand(analyzeCmd)
}

func dialectKind(name string) (dialect.Kind, error) {
	switch name {
	case "auto", "":
		return dialect.KindUnknown, nil
	case "explicit":
		return dialect.KindExplicit, nil
	case "trace":
		return dialect.KindTrace, nil
	default:
		return dialect.KindUnknown, fmt.Errorf("unknown dialect %q", name)
	}
}

func readSource(path string, kind dialect.Kind) (engine.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return engine.Source{}, err
	}
	defer f.Close()
	lines, err := parse.ReadLines(f)
	if err != nil {
		return engine.Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return engine.Source{Name: path, Lines: lines, Kind: kind}, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	kind, err := dialectKind(analyzeDialect)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sources := make([]engine.Source, 0, len(args))
	for _, path := range args {
		src, err := readSource(path, kind)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}
	aux := make([]engine.Source, 0, len(analyzeAuxFiles))
	for _, path := range analyzeAuxFiles {
		src, err := readSource(path, dialect.KindUnknown)
		if err != nil {
			return err
		}
		aux = append(aux, src)
	}

	eng := engine.New(cfg, engine.WithLogger(logger))
	res, err := eng.Analyze(cmd.Context(), sources, aux)
	if err != nil {
		return err
	}

	if analyzeSaveDB != "" {
		st, err := store.Open(analyzeSaveDB)
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.SaveRun(args[0], res)
		if err != nil {
			return err
		}
		logger.Info("saved run", zap.String("id", id), zap.String("db", analyzeSaveDB))
		fmt.Fprintf(cmd.ErrOrStderr(), "saved run %s\n", id)
	}

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprint(cmd.OutOrStdout(), renderSummary(res))
	return nil
}
