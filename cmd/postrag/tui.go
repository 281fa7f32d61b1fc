package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"postrag/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive console over the pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.serving(cmd.Context())
			if err != nil {
				return err
			}
			subtitle := fmt.Sprintf("%d glossary entries · %s · llm %s",
				len(rt.index.Entries), rt.index.Embedder.Name(), a.cfg.LLM.Type)
			m := tui.New(rt.pipeline, rt.retriever, subtitle)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
