// Package engine drives the top-level iteration state machine: for each
// iteration it constructs a Generator, executes the accumulated suite,
// routes to a Debugger or Evaluator depending on the exit code, and
// archives every artifact produced along the way.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liftdev/lift/internal/agent"
	"github.com/liftdev/lift/internal/agents"
	"github.com/liftdev/lift/internal/archivemgr"
	"github.com/liftdev/lift/internal/auditlog"
	"github.com/liftdev/lift/internal/config"
	"github.com/liftdev/lift/internal/llm"
	"github.com/liftdev/lift/internal/logging"
	"github.com/liftdev/lift/internal/modelclient"
	"github.com/liftdev/lift/internal/paths"
	"github.com/liftdev/lift/internal/providers/gemini"
	"github.com/liftdev/lift/internal/providers/openai"
	"github.com/liftdev/lift/internal/ratelimit"
	"github.com/liftdev/lift/internal/reports"
	"github.com/liftdev/lift/internal/requirements"
	"github.com/liftdev/lift/internal/runner"
	"github.com/liftdev/lift/internal/sandbox"
	"github.com/liftdev/lift/internal/toolbox"
)

// ErrAlreadyRun is returned when New finds a project directory already
// in place, matching the source project's one-run-per-directory rule.
var ErrAlreadyRun = fmt.Errorf("engine: project directory already exists")

// InputValidationError reports a missing required input file or directory.
type InputValidationError struct {
	Path string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("engine: required input missing: %s", e.Path)
}

// Prompts holds the three agents' fixed system prompts, loaded once from
// the input directory's generator.md/debugger.md/evaluator.md.
type Prompts struct {
	Generator string
	Debugger  string
	Evaluator string
}

// Engine owns everything one run needs: resolved paths, the parsed
// requirements tree, the tool registry, one model client per agent
// role, the archive manager, the test runner, and the audit trail.
type Engine struct {
	cfg     *config.Config
	paths   paths.Paths
	logger  logging.Logger
	audit   auditlog.Logger
	tools   *toolbox.Registry
	prompts Prompts

	genClient   llm.Client
	debugClient llm.Client
	evalClient  llm.Client

	archive *archivemgr.Manager
	run     runner.Runner
}

// New constructs an Engine from cfg, rooted at root. It validates and
// stages the input directory's contents into a fresh project subtree
// (failing with ErrAlreadyRun if one already exists), parses the
// requirements document, and builds one model client per agent role via
// the configured providers, each wrapped with modelclient's retry/backoff
// and a shared limiter that admits one in-flight model call at a time
// (no per-model calls-per-minute cap is configured).
func New(ctx context.Context, cfg *config.Config, root string, logger logging.Logger, audit auditlog.Logger) (*Engine, error) {
	p := paths.Resolve(root, cfg.PUT)

	if err := validateInputs(p, cfg.PUT); err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.Project); err == nil {
		return nil, ErrAlreadyRun
	}

	reqs, err := requirements.Parse(filepath.Join(p.Inputs, "program-requirements.yml"))
	if err != nil {
		return nil, fmt.Errorf("engine: parse requirements: %w", err)
	}

	if err := stageProject(p, reqs); err != nil {
		return nil, err
	}

	sb, err := sandbox.New(p.Project)
	if err != nil {
		return nil, fmt.Errorf("engine: build sandbox: %w", err)
	}
	tools := toolbox.New(sb, reqs)

	prompts, err := loadPrompts(p)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(1, 0)

	genClient, err := buildClient(ctx, cfg, cfg.GenModel, limiter, logger)
	if err != nil {
		return nil, err
	}
	debugClient, err := buildClient(ctx, cfg, cfg.DebugModel, limiter, logger)
	if err != nil {
		return nil, err
	}
	evalClient, err := buildClient(ctx, cfg, cfg.EvalModel, limiter, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:         cfg,
		paths:       p,
		logger:      logger,
		audit:       audit,
		tools:       tools,
		prompts:     prompts,
		genClient:   genClient,
		debugClient: debugClient,
		evalClient:  evalClient,
		archive:     archivemgr.New(p),
		run:         runner.NewPytestRunner(cfg.PUT),
	}, nil
}

// buildClient resolves model's provider from cfg, constructs the
// matching provider client, and wraps it with modelclient's
// retry/backoff and the shared limiter.
func buildClient(ctx context.Context, cfg *config.Config, model string, limiter *ratelimit.Limiter, logger logging.Logger) (llm.Client, error) {
	provider, ok := config.ModelProvider(model)
	if !ok {
		return nil, fmt.Errorf("engine: %q does not belong to a known provider", model)
	}

	var inner llm.Client
	switch provider {
	case config.ProviderOpenAI:
		inner = openai.New(model, cfg.OpenAIAPIKey)
	case config.ProviderGemini:
		client, err := gemini.New(ctx, model, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("engine: build gemini client for %q: %w", model, err)
		}
		inner = client
	default:
		return nil, fmt.Errorf("engine: unhandled provider %q for model %q", provider, model)
	}

	return modelclient.New(inner, modelclient.WithLimiter(limiter)), nil
}

// validateInputs fails initialization if any of the fixed input files,
// or the PUT source directory, is missing.
func validateInputs(p paths.Paths, putName string) error {
	required := []string{
		filepath.Join(p.Inputs, "generator.md"),
		filepath.Join(p.Inputs, "debugger.md"),
		filepath.Join(p.Inputs, "evaluator.md"),
		filepath.Join(p.Inputs, "program-requirements.yml"),
		filepath.Join(p.Inputs, "evaluation_template.md"),
		filepath.Join(p.Inputs, "pytest_html_report.yml"),
		filepath.Join(p.Inputs, putName),
	}
	for _, path := range required {
		if _, err := os.Stat(path); err != nil {
			return &InputValidationError{Path: path}
		}
	}
	return nil
}

// stageProject creates the project, archive, tests, and reports
// directories, copies the PUT source and evaluation template into the
// project, and writes config/pytest_html_report.yml with its report-dir
// and requirement-id placeholders substituted against reqs.
func stageProject(p paths.Paths, reqs *requirements.Document) error {
	if err := os.MkdirAll(p.Project, 0o755); err != nil {
		return fmt.Errorf("engine: create project dir: %w", err)
	}
	if err := copyTree(filepath.Join(p.Inputs, filepath.Base(p.PUT)), p.PUT); err != nil {
		return fmt.Errorf("engine: copy PUT: %w", err)
	}
	if err := copyFile(filepath.Join(p.Inputs, "evaluation_template.md"), filepath.Join(p.Project, "evaluation_template.md")); err != nil {
		return fmt.Errorf("engine: copy evaluation template: %w", err)
	}
	if err := os.MkdirAll(p.Archive, 0o755); err != nil {
		return fmt.Errorf("engine: create archive dir: %w", err)
	}
	if err := os.MkdirAll(p.ConversationArchive, 0o755); err != nil {
		return fmt.Errorf("engine: create conversation archive dir: %w", err)
	}
	if err := os.MkdirAll(p.Tests, 0o755); err != nil {
		return fmt.Errorf("engine: create tests dir: %w", err)
	}
	if err := os.MkdirAll(p.Reports, 0o755); err != nil {
		return fmt.Errorf("engine: create reports dir: %w", err)
	}
	return writePytestHTMLConfig(p, reqs)
}

// writePytestHTMLConfig substitutes the <<REPORT_DIR>> placeholder in
// pytest_html_report.yml with the resolved reports path and the
// <<REQUIREMENT_IDS>> placeholder with one `  {id}: "{title}"` line per
// requirement in reqs, writing the result to config/pytest_html_report.yml
// under the project directory.
func writePytestHTMLConfig(p paths.Paths, reqs *requirements.Document) error {
	raw, err := os.ReadFile(filepath.Join(p.Inputs, "pytest_html_report.yml"))
	if err != nil {
		return fmt.Errorf("engine: read pytest html report template: %w", err)
	}
	substituted := strings.ReplaceAll(string(raw), "<<REPORT_DIR>>", p.Reports)
	substituted = strings.ReplaceAll(substituted, "<<REQUIREMENT_IDS>>", requirementIDLines(reqs))

	if err := os.MkdirAll(p.Config, 0o755); err != nil {
		return fmt.Errorf("engine: create config dir: %w", err)
	}
	return os.WriteFile(filepath.Join(p.Config, "pytest_html_report.yml"), []byte(substituted), 0o644)
}

// requirementIDLines renders one `  {id}: "{title}"` line per requirement
// in reqs, in document order, joined by newlines.
func requirementIDLines(reqs *requirements.Document) string {
	all := reqs.All()
	lines := make([]string, 0, len(all))
	for _, r := range all {
		lines = append(lines, fmt.Sprintf("  %s: %q", r.ID, r.Title))
	}
	return strings.Join(lines, "\n")
}

// loadPrompts reads the three fixed system prompt files from p.Inputs.
func loadPrompts(p paths.Paths) (Prompts, error) {
	read := func(name string) (string, error) {
		raw, err := os.ReadFile(filepath.Join(p.Inputs, name))
		if err != nil {
			return "", fmt.Errorf("engine: read %s: %w", name, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	gen, err := read("generator.md")
	if err != nil {
		return Prompts{}, err
	}
	debug, err := read("debugger.md")
	if err != nil {
		return Prompts{}, err
	}
	eval, err := read("evaluator.md")
	if err != nil {
		return Prompts{}, err
	}
	return Prompts{Generator: gen, Debugger: debug, Evaluator: eval}, nil
}

// Run drives the iteration loop to completion: construct a Generator,
// run and archive it, execute the accumulated suite, then route to a
// Debugger (on a non-zero exit code) or an Evaluator (on a zero one),
// archiving conversations, reports, suites, and tests in the fixed order
// spec.md's ordering guarantee requires.
func (e *Engine) Run(ctx context.Context) error {
	genState := agents.Init
	firstFinal := true
	iteration := 0

	for ; iteration < e.cfg.MaxIter; iteration++ {
		e.logger.Info("iteration start", "iteration", iteration, "gen_state", genState.String())
		e.audit.Log(auditlog.Entry{Event: auditlog.IterationStart, Iteration: iteration, GenState: genState.String()})

		if err := e.runGenerator(ctx, genState, iteration); err != nil {
			return err
		}

		if iteration > 0 {
			if err := e.archive.ArchiveReports(iteration-1, true); err != nil {
				return fmt.Errorf("engine: archive previous reports: %w", err)
			}
		}

		exitCode, err := e.executeTests(ctx, iteration, genState)
		if err != nil {
			return err
		}

		if exitCode != 0 {
			genState, err = e.runDebugger(ctx, iteration)
			if err != nil {
				return err
			}
		} else {
			outcome, evalErr := e.runEvaluator(ctx, iteration)
			if evalErr != nil {
				return evalErr
			}
			genState = agents.Refine

			if outcome == agent.EndFinalSuite && firstFinal {
				if err := e.archive.ArchiveSuite(archivemgr.FSS, iteration); err != nil {
					return fmt.Errorf("engine: archive FSS: %w", err)
				}
				e.audit.Log(auditlog.Entry{Event: auditlog.ArchiveFSS, Iteration: iteration, GenState: genState.String()})
				firstFinal = false
			}
			if err := e.archive.ArchiveSuite(archivemgr.LPS, iteration); err != nil {
				return fmt.Errorf("engine: archive LPS: %w", err)
			}
			e.audit.Log(auditlog.Entry{Event: auditlog.ArchiveLPS, Iteration: iteration, GenState: genState.String()})
		}

		if err := e.archive.ArchiveTests(iteration); err != nil {
			return fmt.Errorf("engine: archive tests: %w", err)
		}

		e.audit.Log(auditlog.Entry{Event: auditlog.IterationEnd, Iteration: iteration, GenState: genState.String()})
	}

	if err := e.archive.ArchiveReports(iteration-1, false); err != nil {
		return fmt.Errorf("engine: archive final reports: %w", err)
	}
	return nil
}

func (e *Engine) runGenerator(ctx context.Context, state agents.GenState, iteration int) error {
	gen := agents.NewGenerator(e.genClient, e.tools, e.logger.With("agent", "generator"), e.prompts.Generator)
	instruction := state.Instruction(e.cfg.PUT)

	outcome, err := gen.Run(ctx, instruction)
	if err != nil {
		return fmt.Errorf("engine: generator run: %w", err)
	}
	e.logger.Info("generator finished", "iteration", iteration, "outcome", outcome.String())
	e.audit.Log(auditlog.Entry{Event: auditlog.GeneratorRun, Iteration: iteration, GenState: state.String()})

	return e.archive.ArchiveAgent(gen.History, iteration, "Generator")
}

func (e *Engine) runDebugger(ctx context.Context, iteration int) (agents.GenState, error) {
	debugger := agents.NewDebugger(e.debugClient, e.tools, e.logger.With("agent", "debugger"), e.prompts.Debugger, e.paths.Project)
	instruction := agents.DebuggerInstruction(e.cfg.PUT)

	outcome, err := debugger.Run(ctx, instruction)
	if err != nil {
		return agents.Error, fmt.Errorf("engine: debugger run: %w", err)
	}
	e.logger.Info("debugger finished", "iteration", iteration, "outcome", outcome.String())
	e.audit.Log(auditlog.Entry{Event: auditlog.DebuggerRun, Iteration: iteration, GenState: agents.Error.String()})

	if err := e.archive.ArchiveAgent(debugger.History, iteration, "Debugger"); err != nil {
		return agents.Error, err
	}
	return agents.Error, nil
}

func (e *Engine) runEvaluator(ctx context.Context, iteration int) (agent.Outcome, error) {
	evaluator := agents.NewEvaluator(e.evalClient, e.tools, e.logger.With("agent", "evaluator"), e.prompts.Evaluator, e.paths.Project)
	instruction := agents.EvaluatorInstruction(e.cfg.PUT)

	outcome, err := evaluator.Run(ctx, instruction)
	if err != nil {
		return outcome, fmt.Errorf("engine: evaluator run: %w", err)
	}
	e.logger.Info("evaluator finished", "iteration", iteration, "outcome", outcome.String())
	e.audit.Log(auditlog.Entry{Event: auditlog.EvaluatorRun, Iteration: iteration, GenState: agents.Refine.String()})

	if err := e.archive.ArchiveAgent(evaluator.History, iteration, "Evaluator"); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// executeTests invokes the external test runner, parses the execution and
// coverage reports, and removes any stray *.json temp files the runner's
// plugins may have left in the reports directory. A missing or
// unparseable report is logged, not fatal — its summary fields stay at
// Go zero values per spec's error-handling design.
func (e *Engine) executeTests(ctx context.Context, iteration int, genState agents.GenState) (int, error) {
	exitCode, err := e.run.Run(ctx, e.paths.Project, e.paths.Reports)
	if err != nil {
		return 0, fmt.Errorf("engine: execute tests: %w", err)
	}

	summary, parseErr := reports.ParseExecutionReport(e.paths.ExecutionReport())
	if parseErr != nil {
		e.logger.Warn("execution report unavailable", "iteration", iteration, "error", parseErr)
		summary = reports.ExecutionSummary{}
	}

	coverage, covErr := reports.ParseCoverageReport(e.paths.CoverageReport())
	if covErr != nil {
		e.logger.Warn("coverage report unavailable", "iteration", iteration, "error", covErr)
		coverage = reports.CoverageSummary{}
	}

	if err := removeJSONTempFiles(e.paths.Reports); err != nil {
		e.logger.Warn("failed to clean reports temp files", "iteration", iteration, "error", err)
	}

	e.audit.Log(auditlog.Entry{Event: auditlog.TestsExecuted, Iteration: iteration, GenState: genState.String(), Execution: &summary, Coverage: &coverage})
	return exitCode, nil
}

func removeJSONTempFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// copyTree recursively copies src to dst, which must not already exist.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(src, p)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, raw, 0o644)
}
