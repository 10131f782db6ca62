package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmtrace/llmtrace/internal/agent"
	"github.com/llmtrace/llmtrace/internal/config"
	"github.com/llmtrace/llmtrace/internal/llm/openai"
	"github.com/llmtrace/llmtrace/internal/trace"
)

// spansCommand runs one call and prints the resulting spans as a JSON
// dataframe row array, for piping into downstream analysis tools.
func spansCommand() *cobra.Command {
	var (
		configPath string
		prompt     string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "spans",
		Short: "Run one call and print the recorded spans as dataframe rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProviderConfig(configPath)
			if err != nil {
				return fmt.Errorf("load provider config: %w", err)
			}

			resolvedModel := config.ResolveModel(cfg, model, "")
			client := openai.NewClient(cfg.APIBaseURL, cfg.APIKey, time.Duration(cfg.TimeoutMS)*time.Millisecond)
			handle := trace.NewClientHandle(client)
			tracer := trace.NewTracer()
			trace.NewInstrumentor(tracer).Install(handle)

			runner := &agent.Runner{Client: handle.Client(), Pricing: cfg.Pricing}
			messages := []openai.Message{{Role: "user", Content: prompt}}
			if _, err := runner.Run(context.Background(), messages, "", resolvedModel); err != nil {
				return fmt.Errorf("run: %w", err)
			}

			encoded, err := json.MarshalIndent(trace.Rows(tracer), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal rows: %w", err)
			}
			cmd.Println(string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "provider config path (default ~/.llmtrace/config.json)")
	cmd.Flags().StringVar(&prompt, "prompt", "What is the capital of France?", "user prompt to send")
	cmd.Flags().StringVar(&model, "model", "", "model override (defaults to the provider config's default_model)")

	return cmd
}
