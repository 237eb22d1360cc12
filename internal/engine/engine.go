// Package engine wires the pipeline together: raw sources are tokenized and
// dialect-extracted (possibly in parallel, one goroutine per source), the
// builder folds all extracted events into tasks, and the correlator scores
// the auxiliary entries against them. The builder pass runs strictly after
// every source's extraction has completed.
package engine

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loglens/internal/build"
	"loglens/internal/config"
	"loglens/internal/correlate"
	"loglens/internal/dialect"
	"loglens/internal/model"
	"loglens/internal/parse"
)

// Source is one log input. Kind may force a dialect; KindUnknown sniffs the
// first lines against the project table and falls back to explicit-event
// behavior.
type Source struct {
	Name  string
	Lines []string
	Kind  dialect.Kind
}

// Result is the only output shape the engine exposes.
type Result struct {
	Tasks       []model.Task           `json:"tasks"`
	AuxLogs     []model.AuxLogEntry    `json:"auxLogs"`
	Controllers []model.ControllerInfo `json:"controllers"`
}

// Engine runs analyses under one configuration. It holds no per-run state;
// each Analyze call is independent.
type Engine struct {
	cfg config.Config
	log *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger; the default is zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New builds an engine from an explicit configuration table. There is no
// global registry; everything the dialects and correlator need is in cfg.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Analyze reconstructs tasks from the primary sources and correlates the
// auxiliary sources against them. Sources are extracted concurrently; lines
// within one source stay strictly sequential. The only error paths are
// context cancellation between phases -- the reconstruction itself never
// fails, a hostile log just yields less.
func (e *Engine) Analyze(ctx context.Context, sources []Source, auxSources []Source) (*Result, error) {
	extracted := make([]dialect.Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			extracted[i] = e.extractSource(sources[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var aux []model.AuxLogEntry
	for _, src := range auxSources {
		aux = append(aux, correlate.ParseAuxLines(src.Lines)...)
	}
	return e.assemble(extracted, aux), nil
}

func (e *Engine) extractSource(src Source) dialect.Result {
	lines := parse.MergeContinuations(src.Lines)

	kind := src.Kind
	if kind == dialect.KindUnknown {
		var project string
		kind, project = dialect.Sniff(lines, &e.cfg)
		e.log.Debug("sniffed dialect",
			zap.String("source", src.Name),
			zap.String("dialect", kind.String()),
			zap.String("project", project))
	}

	ex := dialect.New(kind)
	for _, raw := range lines {
		ll, ok := parse.Tokenize(raw)
		if !ok {
			continue
		}
		ex.Feed(ll)
	}
	return ex.Finish()
}

// assemble runs the builder over the concatenated event stream, attaches the
// per-process controller and identifier to every task, and correlates.
func (e *Engine) assemble(extracted []dialect.Result, aux []model.AuxLogEntry) *Result {
	var events []model.EventNotification
	controllers := []model.ControllerInfo{}
	byProcess := map[string]*model.ControllerInfo{}
	identifiers := map[string]string{}

	for _, r := range extracted {
		events = append(events, r.Events...)
		for i := range r.Controllers {
			c := r.Controllers[i]
			if _, ok := byProcess[c.ProcessID]; ok {
				continue
			}
			controllers = append(controllers, c)
			byProcess[c.ProcessID] = &controllers[len(controllers)-1]
		}
		for pid, id := range r.Identifiers {
			if _, ok := identifiers[pid]; !ok {
				identifiers[pid] = id
			}
		}
	}

	tasks := build.Tasks(events, build.Options{
		Pool:   parse.NewStringPool(e.cfg.PoolLimit),
		Logger: e.log,
	})
	if tasks == nil {
		tasks = []model.Task{}
	}
	for i := range tasks {
		if c, ok := byProcess[tasks[i].ProcessID]; ok {
			cc := *c
			tasks[i].Controller = &cc
		}
		if id, ok := identifiers[tasks[i].ProcessID]; ok {
			tasks[i].Identifier = id
		}
	}

	aux = correlate.Entries(aux, tasks, correlate.Options{
		WindowMS: e.cfg.Correlation.WindowMS,
	})
	if aux == nil {
		aux = []model.AuxLogEntry{}
	}

	return &Result{Tasks: tasks, AuxLogs: aux, Controllers: controllers}
}
