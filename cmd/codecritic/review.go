package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/codecritic/codecritic/llm"
	"github.com/codecritic/codecritic/review"
	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatJSON = "json"
)

var (
	flagLanguage string
	flagFormat   string
)

var reviewCmd = &cobra.Command{
	Use:   "review [file|-]",
	Short: "Review a source file (or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFormat != formatText && flagFormat != formatJSON {
			return fmt.Errorf("invalid format %q (must be %s or %s)", flagFormat, formatText, formatJSON)
		}

		path := "-"
		if len(args) == 1 {
			path = args[0]
		}
		code, err := readInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		language := flagLanguage
		if language == "" {
			language = languageFromPath(path)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := llm.New(cfg.LLMConfig())
		if err != nil {
			return err
		}

		reviewer := review.NewReviewer(client, cfg.ReviewOptions(), newLogger(cmd.ErrOrStderr()))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		result, err := reviewer.Review(ctx, &review.ReviewRequest{Code: code, Language: language})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagFormat == formatJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		writeText(out, result)
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "Language of the code (default: from file extension, else auto)")
	reviewCmd.Flags().StringVarP(&flagFormat, "format", "f", formatText, "Output format: text or json")
}

// readInput reads path, or r when path is "-".
func readInput(path string, r io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".sql":   "sql",
	".sh":    "bash",
}

// languageFromPath guesses the language tag from a file extension.
func languageFromPath(path string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return review.DefaultLanguage
}

func writeText(w io.Writer, r *review.ReviewResult) {
	fmt.Fprintf(w, "Score: %d/100\n\n%s\n", r.OverallScore, r.Summary)

	if len(r.Strengths) > 0 {
		fmt.Fprintln(w, "\nStrengths:")
		for _, s := range r.Strengths {
			fmt.Fprintf(w, "  + %s\n", s)
		}
	}

	if len(r.Bugs) > 0 {
		fmt.Fprintln(w, "\nBugs:")
		for _, b := range r.Bugs {
			fmt.Fprintf(w, "  [%s]%s %s\n", b.Severity, lineRef(b.Line), b.Description)
			if b.Suggestion != "" {
				fmt.Fprintf(w, "      fix: %s\n", b.Suggestion)
			}
		}
	}

	if len(r.SecurityIssues) > 0 {
		fmt.Fprintln(w, "\nSecurity:")
		for _, s := range r.SecurityIssues {
			fmt.Fprintf(w, "  [%s]%s %s\n", s.Severity, lineRef(s.Line), s.Description)
			if s.Recommendation != "" {
				fmt.Fprintf(w, "      fix: %s\n", s.Recommendation)
			}
		}
	}

	if len(r.PerformanceTips) > 0 {
		fmt.Fprintln(w, "\nPerformance:")
		for _, p := range r.PerformanceTips {
			fmt.Fprintf(w, "  -%s %s\n", lineRef(p.Line), p.Description)
			if p.Optimization != "" {
				fmt.Fprintf(w, "      try: %s\n", p.Optimization)
			}
		}
	}

	if len(r.RefactoringSuggestions) > 0 {
		fmt.Fprintln(w, "\nRefactoring:")
		for _, s := range r.RefactoringSuggestions {
			fmt.Fprintf(w, "  - lines %s: %s\n", s.LineRange, s.Description)
		}
	}

	if c := r.ComplexityAnalysis; c != nil {
		fmt.Fprintf(w, "\nComplexity: time %s, space %s\n", c.TimeComplexity, c.SpaceComplexity)
		if c.Explanation != "" {
			fmt.Fprintf(w, "  %s\n", c.Explanation)
		}
	}
}

func lineRef(line *int) string {
	if line == nil {
		return ""
	}
	return fmt.Sprintf(" line %d:", *line)
}
