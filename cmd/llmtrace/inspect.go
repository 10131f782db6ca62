package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/llmtrace/llmtrace/internal/agent"
	"github.com/llmtrace/llmtrace/internal/config"
	"github.com/llmtrace/llmtrace/internal/llm/openai"
	"github.com/llmtrace/llmtrace/internal/trace"
)

func inspectCommand() *cobra.Command {
	var (
		configPath string
		prompt     string
		model      string
		stream     bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run one call and browse the recorded spans interactively",
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

			ctx := context.Background()
			if stream {
				_, err = runner.RunStream(ctx, messages, "", resolvedModel, nil)
			} else {
				_, err = runner.Run(ctx, messages, "", resolvedModel)
			}
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			spans := tracer.GetSpans()
			if len(spans) == 0 {
				cmd.Println("no spans recorded")
				return nil
			}

			program := tea.NewProgram(newInspectModel(spans), tea.WithAltScreen())
			_, err = program.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "provider config path (default ~/.llmtrace/config.json)")
	cmd.Flags().StringVar(&prompt, "prompt", "What is the capital of France?", "user prompt to send")
	cmd.Flags().StringVar(&model, "model", "", "model override (defaults to the provider config's default_model)")
	cmd.Flags().BoolVar(&stream, "stream", false, "use the streaming call path")

	return cmd
}

var tabStyle = lipgloss.NewStyle().Padding(0, 1)
var activeTabStyle = tabStyle.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Bold(true)

// inspectModel is a bubbletea span browser: a tab strip across the top
// selects a span, and a viewport scrolls its glamour-rendered report.
type inspectModel struct {
	spans    []trace.Span
	index    int
	viewport viewport.Model
	width    int
	height   int
}

func newInspectModel(spans []trace.Span) *inspectModel {
	width, height, err := term.GetSize(0)
	if err != nil || width <= 0 {
		width, height = 100, 30
	}
	vp := viewport.New(width, height-4)
	m := &inspectModel{spans: spans, viewport: vp, width: width, height: height}
	m.loadCurrent()
	return m
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) loadCurrent() {
	m.viewport.SetContent(renderSpanReport(m.spans[m.index], m.width))
	m.viewport.GotoTop()
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = typed.Width, typed.Height
		m.viewport.Width = typed.Width
		m.viewport.Height = typed.Height - 4
		m.loadCurrent()
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "l", "tab":
			if m.index < len(m.spans)-1 {
				m.index++
				m.loadCurrent()
			}
			return m, nil
		case "left", "h", "shift+tab":
			if m.index > 0 {
				m.index--
				m.loadCurrent()
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *inspectModel) View() string {
	var tabs string
	for i, span := range m.spans {
		label := fmt.Sprintf("%d:%s", i+1, span.Name)
		if i == m.index {
			tabs += activeTabStyle.Render(label)
		} else {
			tabs += tabStyle.Render(label)
		}
	}
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("←/→ switch span · ↑/↓ scroll · q quit")
	return tabs + "\n" + m.viewport.View() + "\n" + help
}
