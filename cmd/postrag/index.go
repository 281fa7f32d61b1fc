package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"postrag/internal/embedding"
	"postrag/internal/index"
	"postrag/internal/vectorstore"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the glossary index",
	}
	build := &cobra.Command{
		Use:   "build",
		Short: "Embed the glossary and write the index artifacts",
		Long: `Build reads the glossary source (YAML or JSON list of {text, translation}),
embeds every term and writes the metadata and vectors files. With the qdrant
vector store the vectors are also upserted into the collection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g, _ := cmd.Flags().GetString("glossary"); g != "" {
				a.cfg.Index.Glossary = g
			}
			entries, err := index.LoadGlossary(a.cfg.Index.Glossary)
			if err != nil {
				return err
			}
			tok, err := a.tokenizer()
			if err != nil {
				return err
			}
			emb, err := embedding.New(cmd.Context(), a.cfg.Embedder, tok)
			if err != nil {
				return err
			}
			store, err := vectorstore.New(a.cfg.VectorStore)
			if err != nil {
				return err
			}
			if err := index.NewBuilder(emb, store, a.logger.Named("index")).Build(cmd.Context(), entries, a.cfg.Index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d glossary entries into %s\n", len(entries), a.cfg.Index.Dir)
			return nil
		},
	}
	build.Flags().String("glossary", "", "glossary source file (overrides index.glossary)")
	cmd.AddCommand(build)
	return cmd
}
