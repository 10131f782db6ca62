package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmtrace/llmtrace/internal/agent"
	"github.com/llmtrace/llmtrace/internal/config"
	"github.com/llmtrace/llmtrace/internal/llm/openai"
	"github.com/llmtrace/llmtrace/internal/trace"
)

func demoCommand() *cobra.Command {
	var (
		configPath string
		prompt     string
		model      string
		system     string
		stream     bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Install the instrumentor on a configured client and issue one call",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadProviderConfig(configPath)
			if err != nil {
				return fmt.Errorf("load provider config: %w", err)
			}
			if !cfg.Telemetry.Enabled {
				cmd.PrintErrln("telemetry is disabled in the provider config; recording anyway for this run")
			}

			resolvedModel := config.ResolveModel(cfg, model, "")
			client := openai.NewClient(cfg.APIBaseURL, cfg.APIKey, time.Duration(cfg.TimeoutMS)*time.Millisecond)
			handle := trace.NewClientHandle(client)
			tracer := trace.NewTracer()
			trace.NewInstrumentor(tracer).Install(handle)

			runner := &agent.Runner{
				Client:  handle.Client(),
				Pricing: cfg.Pricing,
			}

			messages := []openai.Message{{Role: "user", Content: prompt}}

			ctx := context.Background()
			var result *agent.RunResult
			if stream {
				result, err = runner.RunStream(ctx, messages, system, resolvedModel, nil)
			} else {
				result, err = runner.Run(ctx, messages, system, resolvedModel)
			}
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			cmd.Println(renderRunResult(result))
			cmd.Println()
			cmd.Println(renderSpans(tracer.GetSpans()))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "provider config path (default ~/.llmtrace/config.json)")
	cmd.Flags().StringVar(&prompt, "prompt", "What is the capital of France?", "user prompt to send")
	cmd.Flags().StringVar(&model, "model", "", "model override (defaults to the provider config's default_model)")
	cmd.Flags().StringVar(&system, "system", "", "optional system prompt")
	cmd.Flags().BoolVar(&stream, "stream", false, "use the streaming call path")

	return cmd
}
