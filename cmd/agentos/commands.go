package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Metroxe/agent-os/internal/config"
	"github.com/Metroxe/agent-os/internal/spec"
	"github.com/Metroxe/agent-os/internal/workflow"
)

func runCmd() *cobra.Command {
	var (
		backend     string
		model       string
		interactive bool
		noStream    bool
	)

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run a single prompt through the agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePrompt(strings.Join(args, " "), backend, model, interactive, noStream)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "agent backend (claude, cursor, opencode)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "hand the terminal to the agent instead of parsing its output")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "capture output without live rendering")
	return cmd
}

func planCmd() *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run the planning phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeWorkflow([]workflow.Phase{workflow.PhasePlan}, branch)
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "create a work branch before starting")
	return cmd
}

func implementCmd() *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "implement",
		Short: "Run the implementation phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeWorkflow([]workflow.Phase{workflow.PhaseImplement}, branch)
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "create a work branch before starting")
	return cmd
}

func workCmd() *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Smart mode: plan if needed, then implement",
		RunE: func(cmd *cobra.Command, args []string) error {
			phases := []workflow.Phase{workflow.PhaseImplement}
			if needsPlan() {
				fmt.Println("No IMPLEMENTATION_PLAN.md found, running plan first")
				phases = []workflow.Phase{workflow.PhasePlan, workflow.PhaseImplement}
			}
			return executeWorkflow(phases, branch)
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "create a work branch before starting")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last workflow state and session totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold agentos.toml, prompt files, and specs/ in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Println("Nothing to do, project already scaffolded")
				return nil
			}
			for _, path := range created {
				fmt.Printf("Created %s\n", path)
			}
			return nil
		},
	}
}

func specCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Manage spec files",
	}
	cmd.AddCommand(specListCmd(), specNewCmd())
	return cmd
}

func specListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all spec files with status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			specs, err := spec.List(dir)
			if err != nil {
				return err
			}
			fmt.Print(formatSpecList(specs))
			return nil
		},
	}
}

func specNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new spec file from template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}

			path, err := spec.New(dir, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", path)

			editor := os.Getenv("EDITOR")
			if editor == "" {
				return nil
			}
			return openEditor(editor, path)
		},
	}
}

// needsPlan reports whether IMPLEMENTATION_PLAN.md is missing or empty.
func needsPlan() bool {
	info, err := os.Stat("IMPLEMENTATION_PLAN.md")
	return err != nil || info.Size() == 0
}

// formatSpecList renders the spec table shown by 'agentos spec list'.
func formatSpecList(specs []spec.File) string {
	if len(specs) == 0 {
		return "No specs found in specs/\n"
	}

	var b strings.Builder
	b.WriteString("Specs\n")
	b.WriteString("─────\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "  %s  %-30s  %s\n", s.Status.Symbol(), s.Path, s.Status)
	}
	return b.String()
}
