// Package main is the entry point for the postrag CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"postrag/internal/config"
	"postrag/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// app is the state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	v       *viper.Viper
	cfg     *config.AppConfig
	cfgPath string
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "postrag",
		Short: "Glossary-grounded translation and classification of social media posts",
		Long: `postrag translates, classifies and extracts event windows from short
social media posts with an LLM. Retweet prefixes, hashtags and emoji survive
the model round-trip, and a hybrid dense + BM25 retriever supplies the model
with matching glossary entries.

Build the glossary index once with "postrag index build", then run any task
subcommand or the interactive console.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./postrag.yaml or ~/.config/postrag/config.yaml)")
	pf.Int("top-k", 0, "glossary entries per prompt (overrides retriever.top_k)")
	pf.Float64("lexical-weight", 0, "weight of BM25 scores (overrides retriever.lexical_weight)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Bool("dev", false, "human-readable development logging")
	for key, flag := range map[string]string{
		"config":         "config",
		"top_k":          "top-k",
		"lexical_weight": "lexical-weight",
		"log_level":      "log-level",
		"dev":            "dev",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}
	a.v.SetEnvPrefix("POSTRAG")
	a.v.AutomaticEnv()

	root.AddCommand(
		newIndexCmd(a),
		newContextCmd(a),
		newTranslateCmd(a),
		newClassifyCmd(a),
		newScheduleCmd(a),
		newReplyCmd(a),
		newTUICmd(a),
	)
	return root
}

// load reads .env, the config file and flag/env overrides, then builds the logger.
func (a *app) load() error {
	_ = godotenv.Load()

	var err error
	if p := a.v.GetString("config"); p != "" {
		a.cfg, err = config.Load(p)
		a.cfgPath = p
	} else {
		a.cfg, a.cfgPath, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.v.IsSet("top_k") && a.v.GetInt("top_k") > 0 {
		a.cfg.Retriever.TopK = a.v.GetInt("top_k")
	}
	if a.v.IsSet("lexical_weight") {
		w := a.v.GetFloat64("lexical_weight")
		if w < 0 {
			return fmt.Errorf("negative --lexical-weight %v", w)
		}
		a.cfg.Retriever.LexicalWeight = &w
	}
	if lvl := a.v.GetString("log_level"); lvl != "" {
		a.cfg.Logging.Level = lvl
	}
	if a.v.GetBool("dev") {
		a.cfg.Logging.Development = true
	}

	// relative artifact paths resolve against the config file's directory
	if a.cfgPath != "" {
		base := filepath.Dir(a.cfgPath)
		for _, p := range []*string{&a.cfg.Index.Dir, &a.cfg.Index.Glossary, &a.cfg.Prompts.FewShotFile} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(base, *p)
			}
		}
	}

	a.logger, err = logging.New(a.cfg.Logging.Level, a.cfg.Logging.Development)
	if err != nil {
		return err
	}
	a.logger.Debug("config loaded", zap.String("path", a.cfgPath))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
