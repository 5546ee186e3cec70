package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/expert/pkg/expert"
	"github.com/cognicore/expert/pkg/expert/config"
	"github.com/cognicore/expert/pkg/expert/internalerr"
	"github.com/cognicore/expert/pkg/expert/store"
	"github.com/cognicore/expert/pkg/expert/store/sqlite"
)

func main() {
	if err := newRootCmd(newApp(os.Stdin, os.Stdout)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the global flags and the I/O streams shared by every command
type app struct {
	configPath string
	rulesPath  string
	dbPath     string
	verbose    bool

	in     *bufio.Reader
	out    io.Writer
	logger *zap.Logger
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{in: bufio.NewReader(in), out: out}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "expert",
		Short: "Rule-based expert system over attribute=value facts",
		Long: `expert loads IF/AND/THEN rules and a set of facts, then reasons
forward to every derivable conclusion or backward from a goal,
asking for missing facts on the terminal.

Rules look like:
  IF время_суток=вечер AND присутствие_людей=да THEN включить_основное_освещение=да
  ЕСЛИ дым=да ТО пожарная_тревога=да`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if a.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Session YAML file (facts, limits, categories)")
	flags.StringVarP(&a.rulesPath, "rules", "r", "", "Rules file or http(s) URL; overrides the session file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database for rule edits and run history")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log every inference step")

	root.AddCommand(
		newForwardCmd(a),
		newBackwardCmd(a),
		newRulesCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// env is an opened session with its configuration
type env struct {
	cfg     *config.Session
	session *expert.Session
	store   store.Store

	// detached is set when --rules shadows an existing stored rule set;
	// the file's rules serve this command only and must not be saved.
	detached bool
}

func (e *env) Close() error {
	return e.session.Close()
}

// editable fails when saving rule edits would overwrite the stored set
// with the --rules file.
func (e *env) editable() error {
	if e.detached {
		return fmt.Errorf("%w: --rules shadows the stored rule set %q; drop --rules to edit it, or use `rules import --replace`",
			internalerr.ErrInvalidInput, e.cfg.RuleSet)
	}
	return nil
}

// open loads the configuration and rules, opens the database when one is
// configured and builds the session. A stored rule set takes precedence over
// the configured rules file; --rules replaces it for this command only. The
// store is seeded from the file only when it holds no rule set yet.
func (a *app) open(ctx context.Context) (*env, error) {
	loader := &config.Loader{ConfigPath: a.configPath, RulesPath: a.rulesPath}
	comp, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, pe := range comp.Report.Errors {
		a.logger.Warn("skipping rule", zap.Int("line", pe.Line), zap.String("text", pe.Text), zap.String("reason", pe.Reason))
	}

	cfg := comp.Session
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if cfg.RuleSet == "" {
		cfg.RuleSet = store.DefaultRuleSet
	}

	var st store.Store
	if cfg.DBPath != "" {
		st, err = sqlite.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}

	sess := expert.New(expert.Options{
		Rules:   comp.Rules,
		Facts:   cfg.Facts,
		Store:   st,
		RuleSet: cfg.RuleSet,
		Engine:  cfg.Options(),
		Logger:  a.logger,
	})
	e := &env{cfg: cfg, session: sess, store: st}

	if st != nil {
		var stored bool
		if a.rulesPath == "" {
			stored, err = sess.LoadStoredRules(ctx)
		} else {
			stored, err = sess.HasStoredRules(ctx)
		}
		if err != nil {
			sess.Close()
			return nil, err
		}

		switch {
		case !stored:
			if err := sess.SaveRules(ctx); err != nil {
				sess.Close()
				return nil, err
			}
		case a.rulesPath != "":
			e.detached = true
			a.logger.Warn("using --rules for this command; stored rule set left unchanged",
				zap.String("rule_set", cfg.RuleSet))
		}
	}

	a.logger.Debug("session ready",
		zap.Int("rules", sess.Rules().Len()),
		zap.Int("facts", len(cfg.Facts)),
		zap.Bool("persistent", st != nil))

	return e, nil
}
