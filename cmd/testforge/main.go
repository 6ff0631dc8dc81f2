// Command testforge turns a requirements document into reviewed,
// exportable test cases, or replays previously written cases as UI
// automation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testforge/internal/agent"
	"testforge/internal/config"
	"testforge/internal/contract"
	"testforge/internal/document"
	"testforge/internal/export"
	"testforge/internal/jsonrepair"
	"testforge/internal/llm"
	"testforge/internal/logging"
	"testforge/internal/pipeline"
	"testforge/internal/store"
	"testforge/internal/uiauto"
	"testforge/internal/watch"
)

var (
	verbose bool
	logger  *zap.Logger

	docPath      string
	outputPath   string
	testType     string
	inputPath    string
	templatePath string
	concurrency  int
	model        string
	resultsDir   string
	watchAddr    string
	useFake      bool
)

// testTypeCategories maps CLI test types to the category vocabulary the
// writer prompt uses.
var testTypeCategories = map[string]string{
	"functional":    "功能测试",
	"api":           "接口测试",
	"ui-automation": "UI自动化测试",
}

func main() {
	root := &cobra.Command{
		Use:           "testforge",
		Short:         "Generate reviewed test cases from a requirements document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(verbose)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(generateCmd(), uiautoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the four-stage pipeline over a requirements document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&docPath, "doc", "d", "", "requirements document path (.txt or .md)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "test_cases.csv", "spreadsheet output path")
	cmd.Flags().StringVarP(&testType, "type", "t", "functional", "test type: functional, api, or ui-automation")
	cmd.Flags().StringVar(&templatePath, "template", "", "export template file (yaml/json)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel generator calls in the writer stage")
	cmd.Flags().StringVar(&model, "model", "", "generator model name")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "directory for per-stage result files")
	cmd.Flags().StringVar(&watchAddr, "watch-addr", "", "serve progress over websocket on this address")
	cmd.Flags().BoolVar(&useFake, "fake", false, "use the offline fake generator")
	_ = cmd.MarkFlagRequired("doc")
	return cmd
}

func uiautoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uiauto",
		Short: "Replay written test cases as UI automation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUIAuto(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "test case JSON file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "ui_test_results.csv", "result report path")
	cmd.Flags().StringVar(&model, "model", "", "generator model name")
	cmd.Flags().BoolVar(&useFake, "fake", false, "use the offline fake generator")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runGenerate(ctx context.Context) error {
	category, ok := testTypeCategories[testType]
	if !ok {
		return fmt.Errorf("unknown test type %q (functional, api, ui-automation)", testType)
	}
	cfg := config.Load()
	if resultsDir != "" {
		cfg.ResultsDir = resultsDir
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	if model != "" {
		cfg.Model = model
	}

	doc, err := document.Extract(docPath)
	if err != nil {
		return err
	}

	client, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	resultStore := buildStore(cfg)
	defer resultStore.Close()

	validator, err := contract.NewValidator(logger)
	if err != nil {
		return err
	}
	deps := agent.Deps{
		Client:    client,
		Normalize: jsonrepair.New(logger),
		Contract:  validator,
		Store:     resultStore,
		Log:       logger,
	}
	writer := agent.NewWriter(deps, category, cfg.Concurrency)

	var opts []pipeline.Option
	if watchAddr != "" {
		hub := watch.NewHub(logger)
		go func() {
			if err := hub.Serve(watchAddr); err != nil {
				logger.Warn("watch server stopped", zap.Error(err))
			}
		}()
		opts = append(opts, pipeline.WithNotify(hub.Publish))
	}
	coordinator := pipeline.New(
		agent.NewAnalyst(deps),
		agent.NewDesigner(deps),
		writer,
		agent.NewReviewer(deps, writer),
		logger,
		opts...,
	)

	result, err := coordinator.Run(ctx, doc)
	if errors.Is(err, pipeline.ErrNeedsRevision) {
		// A gate rejection is a normal outcome: surface the analysis for
		// correction and stop without producing a spreadsheet.
		fmt.Println("需求分析需要调整：", result.RevisionMessage)
		payload, _ := json.MarshalIndent(result.Requirements, "", "  ")
		fmt.Println(string(payload))
		return nil
	}
	if err != nil {
		var stageErr *agent.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("pipeline failed at stage %s: %w", stageErr.Stage, stageErr.Err)
		}
		return err
	}

	tmpl := export.DefaultTemplate()
	if templatePath != "" {
		tmpl, err = export.LoadTemplate(templatePath)
		if err != nil {
			return err
		}
	}
	written, err := export.NewExporter(tmpl, logger).Export(result.TestCases, outputPath)
	if err != nil {
		return err
	}
	fmt.Printf("生成 %d 条测试用例，已导出到: %s\n", len(result.TestCases), written)
	return nil
}

func runUIAuto(ctx context.Context) error {
	cfg := config.Load()
	if model != "" {
		cfg.Model = model
	}
	client, err := buildClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	svc := uiauto.NewService(uiauto.NewLLMRunner(client), logger)
	results, err := svc.Run(ctx, inputPath, outputPath)
	if err != nil {
		return err
	}
	passed := 0
	for _, r := range results {
		if r.Status == uiauto.StatusPassed {
			passed++
		}
	}
	fmt.Printf("UI自动化测试完成: %d/%d 通过，结果已导出到: %s\n", passed, len(results), outputPath)
	return nil
}

// buildClient assembles the generator with the full middleware chain.
// Without an API key the offline fake keeps the pipeline usable.
func buildClient(ctx context.Context, cfg config.Config) (llm.Client, error) {
	var base llm.Client
	if useFake || cfg.APIKey == "" {
		if !useFake {
			logger.Warn("GEMINI_API_KEY not set, using offline fake generator")
		}
		base = llm.NewFakeClient()
	} else {
		gemini, err := llm.NewGeminiClient(ctx, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("initialize generator: %w", err)
		}
		base = gemini
	}
	return llm.Wrap(base,
		llm.WithLogging(logger),
		llm.WithCache(128),
		llm.RateLimit(cfg.RPS, 1),
		llm.Retry(3, 500*time.Millisecond),
	), nil
}

// buildStore picks the primary backend from the environment and mirrors
// to S3 when configured.
func buildStore(cfg config.Config) store.ResultStore {
	runID := time.Now().UTC().Format("20060102T150405")
	primary := store.NewFromEnv(cfg.ResultsDir, runID, logger)
	if cfg.S3Endpoint == "" {
		return primary
	}
	s3, err := store.NewS3Store(store.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	}, runID, logger)
	if err != nil {
		logger.Warn("s3 mirror unavailable", zap.Error(err))
		return primary
	}
	return store.NewMirror(primary, s3, logger)
}
