package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/lecture-pipeline/internal/config"
	"github.com/jonathan/lecture-pipeline/internal/observability"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one document through the full lecture pipeline",
	Long: `Processes a single document end-to-end: content analysis -> segmentation -> script generation -> audio synthesis.
The job runs against an in-memory store and the result is written to stdout.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath   string
	runSource       string
	runAgent        string
	runAPIKey       string
	runSpeechURL    string
	runSpeechAPIKey string
	runVariant      string
	runVerbose      bool
	runOutput       string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runSource, "source", "s", "", "Document reference to process (uploaded-file URI)")
	runCommand.Flags().StringVarP(&runAgent, "agent", "a", "", "Path to agent config JSON (voice, style, language)")
	runCommand.Flags().StringVar(&runVariant, "variant", "", "Pipeline variant: legacy or vision_first")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")
	runCommand.Flags().StringVarP(&runOutput, "output", "o", "", "Write playback JSON to this file instead of stdout")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	runCommand.Flags().StringVar(&runSpeechURL, "speech-url", "", "Speech service base URL (optional, defaults to SPEECH_URL env var)")
	runCommand.Flags().StringVar(&runSpeechAPIKey, "speech-api-key", "", "Speech service API key (optional, defaults to SPEECH_API_KEY env var)")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("source") {
		cfg.Source = runSource
	}
	if cmd.Flags().Changed("agent") {
		cfg.Agent = runAgent
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("speech-url") {
		cfg.SpeechURL = runSpeechURL
	}
	if cmd.Flags().Changed("speech-api-key") {
		cfg.SpeechAPIKey = runSpeechAPIKey
	}
	if cmd.Flags().Changed("variant") {
		cfg.Variant = runVariant
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}

	// Step 3: Validate required fields
	if cfg.Source == "" {
		return fmt.Errorf("--source must be provided (via flag or config)")
	}

	// Step 4: API key and speech service handling
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	if cfg.SpeechURL == "" {
		cfg.SpeechURL = os.Getenv("SPEECH_URL")
	}
	if cfg.SpeechURL == "" {
		return fmt.Errorf("SPEECH_URL environment variable or --speech-url flag is required")
	}
	if cfg.SpeechAPIKey == "" {
		cfg.SpeechAPIKey = os.Getenv("SPEECH_API_KEY")
	}

	variant, err := parseVariant(cfg.Variant)
	if err != nil {
		return err
	}

	// Step 5: Load agent config if provided
	var agent types.AgentConfig
	if cfg.Agent != "" {
		data, err := os.ReadFile(cfg.Agent)
		if err != nil {
			return fmt.Errorf("failed to read agent config: %w", err)
		}
		if err := json.Unmarshal(data, &agent); err != nil {
			return fmt.Errorf("failed to parse agent config: %w", err)
		}
	}

	// Step 6: Wire the pipeline over an in-memory store
	llmClient, err := newLLMClient(ctx, cfg.APIKey)
	if err != nil {
		return err
	}
	defer llmClient.Close() //nolint:errcheck

	printer := observability.NewPrinter(os.Stdout)
	st := store.NewMemoryStore()
	collab := buildCollaborators(llmClient, cfg.SpeechURL, cfg.SpeechAPIKey)

	opts := []pipeline.Option{pipeline.WithVariant(variant)}
	if cfg.Verbose {
		opts = append(opts, pipeline.WithProgress(func(ev pipeline.ProgressEvent) {
			_, _ = fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", ev.Stage, ev.Status, ev.Message)
		}))
	}
	orch := pipeline.New(st, collab, opts...)

	job, err := orch.CreateJob(ctx, cfg.Source, agent)
	if err != nil {
		return err
	}
	processErr := orch.ProcessJob(ctx, job.ID)

	job, err = st.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		printVerboseArtifacts(ctx, printer, st, job)
	}

	if processErr != nil {
		printer.PrintJobError(job.Error)
		return processErr
	}

	return writePlayback(ctx, st, job)
}

// printVerboseArtifacts dumps whichever stage artifacts the job produced.
func printVerboseArtifacts(ctx context.Context, printer *observability.Printer, st store.Store, job *types.Job) {
	var content types.ExtractedContent
	if ok, _ := st.LoadArtifact(ctx, job.ID, store.ArtifactExtractedContent, &content); ok {
		printer.PrintExtractedContent(&content)
	}
	var segments []types.Segment
	if ok, _ := st.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &segments); ok {
		printer.PrintSegments(segments)
	}
	var blocks []types.ScriptBlock
	if ok, _ := st.LoadArtifact(ctx, job.ID, store.ArtifactScript, &blocks); ok {
		printer.PrintScript(blocks)
	}
	var synthesis types.SynthesisResult
	if ok, _ := st.LoadArtifact(ctx, job.ID, store.ArtifactSynthesis, &synthesis); ok {
		printer.PrintSynthesis(&synthesis)
	}
}

// writePlayback assembles and emits the playback payload for a completed job.
func writePlayback(ctx context.Context, st store.Store, job *types.Job) error {
	var segments []types.Segment
	if _, err := st.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &segments); err != nil {
		return err
	}
	var blocks []types.ScriptBlock
	if _, err := st.LoadArtifact(ctx, job.ID, store.ArtifactScript, &blocks); err != nil {
		return err
	}
	var synthesis types.SynthesisResult
	if _, err := st.LoadArtifact(ctx, job.ID, store.ArtifactSynthesis, &synthesis); err != nil {
		return err
	}

	bySegment := make(map[string][]types.ScriptBlock)
	for _, b := range blocks {
		bySegment[b.SegmentID] = append(bySegment[b.SegmentID], b)
	}
	for i := range segments {
		segments[i].Blocks = bySegment[segments[i].ID]
	}

	data := types.PlaybackData{
		PDFURL:      job.SourceRef,
		AudioURL:    synthesis.AudioRef,
		Script:      types.Script{Segments: segments},
		WordTimings: synthesis.WordTimings,
	}

	out := os.Stdout
	if runOutput != "" {
		f, err := os.Create(runOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
