package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyboard-ai-api/internal/application/pipeline"
	"storyboard-ai-api/internal/domain/entity"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "storyboardctl",
		Short:         "Inspect exported storyboard project documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newStagesCommand())
	rootCmd.AddCommand(newRefsCommand())
	return rootCmd
}

func loadProject(path string) (*entity.Project, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := pipeline.ValidateDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a project document the same way import does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %q scenes=%d characters=%d locations=%d shots=%d panels=%d\n",
				p.Title, len(p.Screenplay), len(p.Characters), len(p.SceneSettings), len(p.Shotlist), len(p.Storyboard))
			return nil
		},
	}
}

func newStagesCommand() *cobra.Command {
	var minPanels int
	cmd := &cobra.Command{
		Use:   "stages <file>",
		Short: "Show which stages of the document are complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStages(p, pipeline.NewStageEvaluator(minPanels)))
			return nil
		},
	}
	cmd.Flags().IntVar(&minPanels, "min-panels", pipeline.DefaultMinStoryboardPanels, "Imaged panels required to finish the storyboard stage")
	return cmd
}

func renderStages(p *entity.Project, eval pipeline.StageEvaluator) string {
	rows := make([][]string, 0, len(entity.Stages()))
	reachable := true
	for _, st := range entity.Stages() {
		met := eval.IsStageComplete(st, st, p)
		rows = append(rows, []string{strconv.Itoa(int(st)), st.String(), yesNo(met), yesNo(reachable)})
		reachable = reachable && met
	}
	return renderTable([]string{"#", "Stage", "Complete", "Reachable"}, rows, []columnAlignment{alignRight})
}

func newRefsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refs <file>",
		Short: "Show the resolved references of every storyboard panel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRefs(p))
			return nil
		},
	}
}

func renderRefs(p *entity.Project) string {
	rows := make([][]string, 0, len(p.Storyboard))
	for i, panel := range p.Storyboard {
		res := pipeline.ResolveReferences(panel, p)
		titles := make([]string, len(res.References))
		for j, ref := range res.References {
			titles[j] = ref.Title
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			panel.Shot.Key().String(),
			string(res.Mode),
			strings.Join(titles, ", "),
		})
	}
	return renderTable([]string{"Panel", "Shot", "Mode", "References"}, rows, []columnAlignment{alignRight})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
