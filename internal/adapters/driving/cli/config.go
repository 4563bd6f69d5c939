package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings stored in config.toml.

Every key can also be set through its SERCHA_RAG_* environment variable,
which takes precedence over the file.`,
	Annotations: map[string]string{annotationSkipServices: "true"},
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show effective configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipServices: "true"},
	RunE:        runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:         "set [key] [value]",
	Short:       "Set a configuration value",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{annotationSkipServices: "true"},
	RunE:        runConfigSet,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the embedding provider API key",
	Long: `Prompts for the embedding API key without echoing it and saves it to
config.toml. With --validate the provider is contacted before saving.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipServices: "true"},
	RunE:        runConfigSetKey,
}

var validateKey bool

func init() {
	configSetKeyCmd.Flags().BoolVar(&validateKey, "validate", false, "check the key against the provider before saving")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
	rootCmd.AddCommand(configCmd)
}

// sourcer is implemented by config stores that track value origin.
type sourcer interface {
	Source(key string) string
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	src, _ := configStore.(sourcer)

	if jsonOutput {
		out := make(map[string]any)
		for _, k := range file.Keys() {
			v := effective(k)
			if k.Secret {
				v = maskValue(v)
			}
			out[k.Name] = v
		}
		return printJSON(cmd, out)
	}

	cmd.Printf("Config file: %s\n\n", configStore.Path())
	for _, k := range file.Keys() {
		v := effective(k)
		if k.Secret {
			v = maskValue(v)
		}
		line := fmt.Sprintf("  %-30s %v", k.Name, v)
		if src != nil {
			line += fmt.Sprintf("  (%s)", src.Source(k.Name))
		}
		cmd.Println(line)
	}

	settings := file.EmbeddingSettings(configStore)
	cmd.Println()
	if settings.IsConfigured() {
		cmd.Printf("Embedding: %s (%s)\n", settings.Provider, settings.Model)
	} else {
		cmd.Printf("Embedding: not configured, set %s\n", file.EnvName(file.KeyEmbeddingAPIKey))
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, raw := args[0], args[1]
	value, err := file.ParseValue(key, raw)
	if err != nil {
		return err
	}

	if err := configStore.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	if err := configStore.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if k, _ := file.LookupKey(key); k.Secret {
		raw = maskAPIKey(raw)
	}
	cmd.Printf("Set %s = %s\n", key, raw)
	return nil
}

func runConfigSetKey(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Print("API key: ")
	key := readPassword()
	cmd.Println()
	if key == "" {
		return fmt.Errorf("%w: empty API key", domain.ErrInvalidInput)
	}

	if validateKey {
		settings := file.EmbeddingSettings(configStore)
		settings.APIKey = key
		cmd.Printf("Checking %s... ", settings.Provider)
		if err := ai.ValidateEmbeddingConfig(cmd.Context(), &settings); err != nil {
			cmd.Println("failed")
			return fmt.Errorf("validating API key: %w", err)
		}
		cmd.Println("ok")
	}

	if err := configStore.Set(file.KeyEmbeddingAPIKey, key); err != nil {
		return fmt.Errorf("failed to set API key: %w", err)
	}
	if err := configStore.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Printf("Saved API key %s\n", maskAPIKey(key))
	return nil
}

// readPassword reads a line from stdin without echo when stdin is a terminal.
var readPassword = func() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n') //nolint:errcheck // empty input is rejected by the caller
	return strings.TrimSpace(input)
}

// effective returns the value of k, falling back to its default for stores
// that do not know the key.
func effective(k file.Key) any {
	if v, ok := configStore.Get(k.Name); ok {
		return v
	}
	return k.Default
}

func maskValue(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	return maskAPIKey(s)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
