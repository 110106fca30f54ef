package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"transponster/internal/daemonrun"
	"transponster/internal/fileutil"
	"transponster/internal/workflow"
)

// maxLocalTranslateBytes matches the limit applied to files fetched from Slack.
const maxLocalTranslateBytes = 8 << 20

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var outPath string

	cmd := &cobra.Command{
		Use:   "translate FILE",
		Short: "Translate a local .txt transcript or .srt subtitle file",
		Long: "Translate a local transcript or subtitle file with the configured LLM.\n" +
			"--lang takes a language tag (uk, en, pl) or a configured reaction name.\n" +
			"The result is written next to the input as <stem>_<lang>.<ext> unless --out is given; --out - writes to stdout.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.LLM.APIKey == "" {
				return errors.New("llm.api_key is required (or set OPENROUTER_API_KEY)")
			}

			logger := ctx.commandLogger(cmd)
			translator, _ := daemonrun.NewTranslator(cfg, logger)
			manager := workflow.NewManager(cfg, nil, nil, translator, workflow.WithLogger(logger))

			target, err := resolveLanguage(manager, lang)
			if err != nil {
				return err
			}

			source := args[0]
			raw, err := readLimited(source, maxLocalTranslateBytes)
			if err != nil {
				return err
			}

			result, err := manager.TranslateText(cmd.Context(), filepath.Base(source), raw, target)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			if outPath == "-" {
				if _, err := io.WriteString(cmd.OutOrStdout(), result.Output); err != nil {
					return err
				}
			} else {
				dest := strings.TrimSpace(outPath)
				if dest == "" {
					dest = filepath.Join(filepath.Dir(source), workflow.TranslatedName(filepath.Base(source), target, result.Format))
				}
				if err := fileutil.WriteFileAtomic(dest, []byte(result.Output), 0o644); err != nil {
					return fmt.Errorf("write translation: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", dest)
			}

			if missing := len(result.Result.Untranslated); missing > 0 {
				fmt.Fprintf(stderr, "%d of %d spans kept their original text\n", missing, result.Spans)
			} else {
				fmt.Fprintf(stderr, "Translated %d spans in %d requests\n", result.Spans, result.Result.Requests)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language tag or reaction name")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path, or - for stdout")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

// resolveLanguage accepts a BCP 47 tag or a configured reaction name. Tags
// win, so "uk" means Ukrainian even though the :uk: reaction asks for English.
func resolveLanguage(manager *workflow.Manager, value string) (string, error) {
	value = strings.TrimSpace(value)
	if tag, err := language.Parse(value); err == nil {
		return tag.String(), nil
	}
	if lang, ok := manager.LanguageFor(value); ok {
		return lang, nil
	}
	return "", fmt.Errorf("unknown language %q: use a tag like uk or en, or a reaction from translation.reactions", value)
}

func readLimited(path string, limit int64) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%s is larger than %d MB", path, limit>>20)
	}
	return string(data), nil
}
