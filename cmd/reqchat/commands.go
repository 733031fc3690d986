package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/reqchat/internal/config"
	"github.com/kalambet/reqchat/internal/requirements"
	"github.com/kalambet/reqchat/internal/session"
)

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Work with requirement sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/sessions?limit=%d", limit))
		if err != nil {
			return err
		}

		var sessions []session.Summary
		if err := decodeJSON(resp, &sessions); err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		for _, s := range sessions {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			arch := ""
			if s.HasArchitecture {
				arch = " +arch"
			}
			fmt.Printf("%s  %s  %3d%s  %s\n",
				colorize(colorCyan, s.ID),
				s.UpdatedAt.Local().Format("2006-01-02 15:04"),
				s.TotalRequirements,
				arch,
				truncateLine(title, 60),
			)
		}
		return nil
	},
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/sessions", nil)
		if err != nil {
			return err
		}

		var snap session.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}
		fmt.Println(snap.ID)
		printSuccess("Created session %s", snap.ID)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's requirements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		withMessages, _ := cmd.Flags().GetBool("messages")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), sessionPath(args[0]))
		if err != nil {
			return err
		}

		var snap session.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		writeSnapshot(os.Stdout, snap)
		if withMessages {
			fmt.Println()
			writeMessages(os.Stdout, snap.Messages)
		}
		return nil
	},
}

var sessionsSendCmd = &cobra.Command{
	Use:   "send <id> <message>",
	Short: "Send a chat message and merge the extracted requirements",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args[1:], " ")
		if strings.TrimSpace(message) == "" {
			return errors.New("message is empty")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "messages"), map[string]string{"message": message})
		if err != nil {
			return err
		}

		// An oracle failure still carries the apology message.
		if resp.StatusCode == http.StatusBadGateway {
			var out messageResult
			defer resp.Body.Close()
			if json.NewDecoder(resp.Body).Decode(&out) == nil {
				writeMessages(os.Stdout, assistantOnly(out.Reply.Messages))
				return fmt.Errorf("extraction failed: %s", out.Error)
			}
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		var out messageResult
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		writeMessages(os.Stdout, assistantOnly(out.Reply.Messages))
		printSuccess("added %d, skipped %d, total %d", out.Reply.Added, out.Reply.Skipped, out.Session.TotalRequirements)
		if out.Reply.LossSuspected {
			printWarning("the model returned fewer items than before; run 'sessions show' to check")
		}
		return nil
	},
}

type messageResult struct {
	Reply   session.Reply    `json:"reply"`
	Session session.Snapshot `json:"session"`
	Error   string           `json:"error"`
}

func assistantOnly(msgs []requirements.ChatMessage) []requirements.ChatMessage {
	var out []requirements.ChatMessage
	for _, m := range msgs {
		if m.Sender == requirements.SenderAssistant {
			out = append(out, m)
		}
	}
	return out
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), sessionPath(args[0]))
		if err != nil {
			return err
		}
		if _, err := readBody(resp); err != nil {
			return err
		}
		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

var sessionsDeleteItemCmd = &cobra.Command{
	Use:   "delete-item <id> <category> <item-id>",
	Short: "Remove one requirement item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := requirements.ParseCategory(args[1]); !ok {
			return fmt.Errorf("unknown category %q", args[1])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), sessionPath(args[0], "requirements", args[1], args[2]))
		if err != nil {
			return err
		}

		var snap session.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}
		printSuccess("Deleted %s, %d requirements left", args[2], snap.TotalRequirements)
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Remove every requirement and the architecture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL requirements of the session. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "clear"), map[string]bool{"confirm": true})
		if err != nil {
			return err
		}
		var snap session.Snapshot
		if err := decodeJSON(resp, &snap); err != nil {
			return err
		}
		printSuccess("Cleared session %s", snap.ID)
		return nil
	},
}

var sessionsArchitectureCmd = &cobra.Command{
	Use:   "architecture <id>",
	Short: "Regenerate the system architecture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		preferred, _ := cmd.Flags().GetString("type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "architecture"),
			map[string]string{"preferredArchitectureType": preferred})
		if err != nil {
			return err
		}

		var out struct {
			Architecture *requirements.Architecture `json:"architecture"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if out.Architecture == nil {
			printWarning("No requirements yet, nothing to generate")
			return nil
		}
		a := out.Architecture
		printStatus("Type", "%s", a.ArchitectureType)
		printStatus("Deployment", "%s", a.DeploymentEnvironment)
		for _, c := range a.Components {
			fmt.Printf("  %s (%s) %s\n", colorize(colorBold, c.Name), c.Type, strings.Join(c.Technologies, ", "))
		}
		return nil
	},
}

var sessionsValidateCmd = &cobra.Command{
	Use:   "validate <id>",
	Short: "Check the requirements for completeness and contradictions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), sessionPath(args[0], "validate"), nil)
		if err != nil {
			return err
		}

		var out struct {
			Validation  *requirements.ValidationResult `json:"validation"`
			ChatMessage requirements.ChatMessage       `json:"chatMessage"`
			Error       string                         `json:"error"`
		}
		if resp.StatusCode == http.StatusBadGateway {
			defer resp.Body.Close()
			if json.NewDecoder(resp.Body).Decode(&out) == nil {
				fmt.Println(out.ChatMessage.Content)
				return fmt.Errorf("validation failed: %s", out.Error)
			}
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		if out.Validation != nil {
			writeValidation(os.Stdout, *out.Validation)
		} else {
			fmt.Println(out.ChatMessage.Content)
		}
		return nil
	},
}

var sessionsQuoteCmd = &cobra.Command{
	Use:   "quote <id>",
	Short: "Print the quote request document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), sessionPath(args[0], "quote"))
		if err != nil {
			return err
		}
		data, err := readBody(resp)
		if err != nil {
			return err
		}
		return writeOutput(output, data)
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export requirements and architecture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported format %q (json or yaml)", format)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := sessionPath(args[0], "export")
		if format == "yaml" {
			path += "?format=yaml"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		data, err := readBody(resp)
		if err != nil {
			return err
		}
		return writeOutput(output, data)
	},
}

var sessionsImportCmd = &cobra.Command{
	Use:   "import <id> <file>",
	Short: "Replace a session's requirements with an exported file",
	Long: `Replace a session's requirements with an exported file.

The file must contain all five requirement categories. YAML is accepted
for files ending in .yaml or .yml; "-" reads JSON from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[1])
		if err != nil {
			return err
		}
		contentType := "application/json"
		if ext := strings.ToLower(filepath.Ext(args[1])); ext == ".yaml" || ext == ".yml" {
			contentType = "application/yaml"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.postRaw(cmd.Context(), sessionPath(args[0], "import"), contentType, data)
		if err != nil {
			return err
		}
		var out struct {
			TotalRequirements int `json:"totalRequirements"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Imported %d requirements", out.TotalRequirements)
		return nil
	},
}

var sessionsUploadCmd = &cobra.Command{
	Use:   "upload <id> <file>",
	Short: "Upload a PDF, HTML or text document for requirement extraction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.upload(cmd.Context(), sessionPath(args[0], "documents"), args[1], data)
		if err != nil {
			return err
		}
		var out map[string]string
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}
		printSuccess("Queued document %s", out["id"])
		return nil
	},
}

var sessionsDocumentsCmd = &cobra.Command{
	Use:   "documents <id>",
	Short: "List uploaded documents and their extraction status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), sessionPath(args[0], "documents"))
		if err != nil {
			return err
		}
		var list struct {
			Documents []struct {
				ID       string `json:"id"`
				Filename string `json:"filename"`
				Status   string `json:"status"`
				Error    string `json:"error"`
				Attempts int    `json:"attempts"`
			} `json:"documents"`
		}
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		if len(list.Documents) == 0 {
			fmt.Println("No documents uploaded.")
			return nil
		}
		for _, d := range list.Documents {
			line := fmt.Sprintf("%s  %-10s  %s", colorize(colorCyan, shortID(d.ID)), d.Status, d.Filename)
			if d.Attempts > 0 {
				line += fmt.Sprintf("  (attempts: %d)", d.Attempts)
			}
			if d.Error != "" {
				line += "  " + colorize(colorRed, truncateLine(d.Error, 60))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	printSuccess("Written to %s", path)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsShowCmd.Flags().Bool("json", false, "print the raw session snapshot")
	sessionsShowCmd.Flags().Bool("messages", false, "include the conversation")
	sessionsClearCmd.Flags().Bool("confirm", false, "confirm removal of all requirements")
	sessionsArchitectureCmd.Flags().String("type", "", "preferred architecture type (e.g. microservices)")
	sessionsQuoteCmd.Flags().String("output", "", "output file path (default: stdout)")
	sessionsExportCmd.Flags().String("format", "json", "export format: json or yaml")
	sessionsExportCmd.Flags().String("output", "", "output file path (default: stdout)")

	sessionsCmd.AddCommand(
		sessionsListCmd,
		sessionsCreateCmd,
		sessionsShowCmd,
		sessionsSendCmd,
		sessionsDeleteCmd,
		sessionsDeleteItemCmd,
		sessionsClearCmd,
		sessionsArchitectureCmd,
		sessionsValidateCmd,
		sessionsQuoteCmd,
		sessionsExportCmd,
		sessionsImportCmd,
		sessionsUploadCmd,
		sessionsDocumentsCmd,
	)
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

		fmt.Printf("  %s\n", colorize(colorCyan, config.FilePath()))
		for _, k := range config.ShowAll(cfg) {
			src := k.Source
			if src == config.SourceEnv {
				src = k.EnvVar
			}
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "("+src+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nValid keys: " +
		strings.Join(config.ValidKeys(), ", ") +
		"\n\nSecrets (server.api_token, oracle.api_key) are read from the environment only.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
