package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kyuho/barun/internal/checkclient"
	"github.com/kyuho/barun/internal/config"
	"github.com/kyuho/barun/internal/document"
)

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Proofread Korean text",
	Long: `Proofread Korean text through the barun daemon.

Examples:
  barun check "안녕하세요 반갑슴니다"
  barun check --file draft.txt
  barun check --file report.pdf --provider openai
  cat draft.txt | barun check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		provider, _ := cmd.Flags().GetString("provider")

		text, err := gatherText(args, file, cmd.InOrStdin())
		if err != nil {
			return err
		}

		client, err := newCheckClient()
		if err != nil {
			return err
		}

		session := checkclient.NewSession(client)
		session.SetText(text)
		session.SetProvider(provider)

		if strings.TrimSpace(text) == "" {
			printWarning("nothing to check")
			return nil
		}

		// Ctrl-C cancels the check but leaves the process to exit cleanly.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			if _, ok := <-sigCh; ok {
				session.Cancel()
			}
		}()

		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription("checking"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		err = session.Check(cmd.Context(), func(p checkclient.Progress) {
			bar.Set(p.Percentage) //nolint:errcheck
		})
		bar.Finish() //nolint:errcheck
		if err != nil {
			return err
		}

		switch session.State() {
		case checkclient.StateCompleted:
			printResult(cmd.OutOrStdout(), *session.Result())
			return nil
		case checkclient.StateCancelled:
			printWarning("check cancelled")
			return nil
		case checkclient.StateFailed:
			return fmt.Errorf("%s", session.Err())
		default:
			return nil
		}
	},
}

func init() {
	checkCmd.Flags().String("file", "", "file to check (PDF or plain text)")
	checkCmd.Flags().String("provider", "", "AI provider (claude, openai, gemini)")
}

// gatherText resolves the check input: argument text, a file, or piped stdin.
func gatherText(args []string, file string, stdin io.Reader) (string, error) {
	if file != "" {
		return document.ExtractText(file)
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && (info.Mode()&os.ModeCharDevice) != 0 {
			return "", nil // interactive terminal, nothing piped
		}
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func printResult(w io.Writer, result checkclient.CheckResult) {
	fmt.Fprintln(w, result.CorrectedText)

	issues := checkclient.OrderedIssues(result)
	if len(issues) == 0 {
		printSuccess("no issues found (%s)", result.Provider)
		return
	}

	fmt.Fprintln(w)
	for i, issue := range issues {
		fmt.Fprintf(w, "%s %s → %s  %s\n",
			colorize(colorBold, fmt.Sprintf("%d.", i+1)),
			colorize(colorRed, issue.Original),
			colorize(colorGreen, issue.Corrected),
			colorize(colorCyan, "["+issue.Type+"]"),
		)
		if issue.Explanation != "" {
			fmt.Fprintf(w, "   %s\n", issue.Explanation)
		}
	}
	printSuccess("%d issue(s) found (%s)", len(issues), result.Provider)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage check history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")

		client, err := newCheckClient()
		if err != nil {
			return err
		}
		hp, err := client.History(cmd.Context(), page, perPage)
		if err != nil {
			return err
		}

		if len(hp.Records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No checks found.")
			return nil
		}
		for _, rec := range hp.Records {
			excerpt := rec.OriginalText
			if runes := []rune(excerpt); len(runes) > 60 {
				excerpt = string(runes[:60]) + "..."
			}
			excerpt = strings.ReplaceAll(excerpt, "\n", " ")
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-7s  %s\n",
				colorize(colorCyan, fmt.Sprintf("%4d", rec.ID)),
				rec.CreatedAt,
				rec.Provider,
				excerpt,
			)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d (%d total)\n", hp.Page, hp.TotalPages, hp.Total)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a past check result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}

		client, err := newCheckClient()
		if err != nil {
			return err
		}
		// History has no point lookup; walk pages until the id turns up.
		for page := 1; ; page++ {
			hp, err := client.History(cmd.Context(), page, 50)
			if err != nil {
				return err
			}
			for _, rec := range hp.Records {
				if rec.ID == id {
					printResult(cmd.OutOrStdout(), checkclient.Normalize(rec))
					return nil
				}
			}
			if page >= hp.TotalPages || len(hp.Records) == 0 {
				return fmt.Errorf("check %d not found", id)
			}
		}
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a past check",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}

		client, err := newCheckClient()
		if err != nil {
			return err
		}
		if err := client.DeleteHistory(cmd.Context(), id); err != nil {
			return err
		}
		printSuccess("Deleted check %d", id)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("page", 1, "page number")
	historyListCmd.Flags().Int("per-page", 20, "results per page")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRmCmd)
}

// --- providers ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show AI provider availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newCheckClient()
		if err != nil {
			return err
		}
		providers, err := client.Providers(cmd.Context())
		if err != nil {
			return err
		}

		for _, name := range []string{"claude", "openai", "gemini"} {
			available, known := providers[name]
			switch {
			case !known:
				continue
			case available:
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", colorize(colorGreen, "●"), name)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s (no API key)\n", colorize(colorRed, "○"), name)
			}
		}
		return nil
	},
}

// --- doc ---

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage the document library",
}

var docAddCmd = &cobra.Command{
	Use:   "add <file.pdf>",
	Short: "Upload a PDF into the document library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.upload(cmd.Context(), "/documents", args[0])
		if err != nil {
			return err
		}
		var doc struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			PageCount int    `json:"page_count"`
		}
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}
		printSuccess("Added %q (%d pages, id %s)", doc.Title, doc.PageCount, doc.ID)
		return nil
	},
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents")
		if err != nil {
			return err
		}
		var payload struct {
			Documents []struct {
				ID        string `json:"id"`
				Filename  string `json:"filename"`
				Title     string `json:"title"`
				PageCount int    `json:"page_count"`
				CreatedAt string `json:"created_at"`
			} `json:"documents"`
		}
		if err := decodeJSON(resp, &payload); err != nil {
			return err
		}

		if len(payload.Documents) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents found.")
			return nil
		}
		for _, d := range payload.Documents {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %3dp  %s\n",
				colorize(colorCyan, d.ID[:8]),
				d.CreatedAt,
				d.PageCount,
				d.Title,
			)
		}
		return nil
	},
}

var docSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search document text and filenames",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/search?q="+queryEscape(query))
		if err != nil {
			return err
		}
		var payload struct {
			Matches []struct {
				DocumentID string `json:"document_id"`
				Filename   string `json:"filename"`
				PageNumber int    `json:"page_number"`
				Snippet    string `json:"snippet"`
			} `json:"matches"`
		}
		if err := decodeJSON(resp, &payload); err != nil {
			return err
		}

		if len(payload.Matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches found.")
			return nil
		}
		for _, m := range payload.Matches {
			location := m.Filename
			if m.PageNumber > 0 {
				location = fmt.Sprintf("%s p.%d", m.Filename, m.PageNumber)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  %s\n",
				colorize(colorBold, location),
				m.Snippet,
			)
		}
		return nil
	},
}

var docRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/documents/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func init() {
	docCmd.AddCommand(docAddCmd)
	docCmd.AddCommand(docListCmd)
	docCmd.AddCommand(docSearchCmd)
	docCmd.AddCommand(docRmCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
