package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// readPost joins args, or reads stdin when no args or a single "-" is given.
func readPost(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	post := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(post) == "" {
		return "", fmt.Errorf("empty post")
	}
	return post, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newContextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Show the glossary context retrieved for a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readPost(cmd, args)
			if err != nil {
				return err
			}
			rt, err := a.retrieverOnly(cmd.Context())
			if err != nil {
				return err
			}
			k, _ := cmd.Flags().GetInt("k")
			cands, err := rt.retriever.Retrieve(cmd.Context(), query, k)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), cands)
			}
			for _, c := range cands {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f  (sem %.3f, lex %.3f)  %s\n", c.Score, c.Semantic, c.Lexical, c.Entry.ContextLine())
			}
			return nil
		},
	}
	cmd.Flags().Int("k", 0, "number of entries (default: retriever.top_k)")
	cmd.Flags().Bool("json", false, "output candidates as JSON")
	return cmd
}

func newTranslateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [post]",
		Short: "Translate a post, keeping RT prefix, hashtags and emoji intact",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.serving(cmd.Context())
			if err != nil {
				return err
			}
			if batch, _ := cmd.Flags().GetString("batch"); batch != "" {
				posts, err := readLines(batch)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rt.pipeline.TranslateBatch(cmd.Context(), posts))
			}
			post, err := readPost(cmd, args)
			if err != nil {
				return err
			}
			res := rt.pipeline.Translate(cmd.Context(), post)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Translated)
			fmt.Fprintf(cmd.OutOrStdout(), "category: %s\n", res.Category)
			if res.Start != nil || res.End != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "window: %s - %s\n", formatTime(res.Start), formatTime(res.End))
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output the result as JSON")
	cmd.Flags().String("batch", "", "file with one post per line; prints a JSON array")
	return cmd
}

func newClassifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [post]",
		Short: "Classify a post into the configured categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := readPost(cmd, args)
			if err != nil {
				return err
			}
			rt, err := a.serving(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rt.pipeline.Classify(cmd.Context(), post))
		},
	}
	return cmd
}

func newScheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [post]",
		Short: "Extract the event window announced by a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := readPost(cmd, args)
			if err != nil {
				return err
			}
			ref := time.Now()
			if s, _ := cmd.Flags().GetString("ref"); s != "" {
				ref, err = time.ParseInLocation("2006-01-02 15:04", s, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --ref: %w", err)
				}
			}
			rt, err := a.serving(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rt.pipeline.ExtractSchedule(cmd.Context(), post, ref))
		},
	}
	cmd.Flags().String("ref", "", `reference time of the post, "YYYY-MM-DD HH:MM" (default: now)`)
	return cmd
}

func newReplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reply [post]",
		Short: "Generate a reply to a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := readPost(cmd, args)
			if err != nil {
				return err
			}
			rt, err := a.serving(cmd.Context())
			if err != nil {
				return err
			}
			reply, err := rt.pipeline.Reply(cmd.Context(), post)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "?"
	}
	return t.Format("2006-01-02 15:04")
}
