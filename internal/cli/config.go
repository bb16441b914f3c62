package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/tessro/markov/internal/config"
	markoverrors "github.com/tessro/markov/internal/errors"
	"github.com/tessro/markov/internal/selector"
	"golang.org/x/term"
)

var configInitDefaults bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing markov configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including defaults and MARKOV_* overrides.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a new configuration file. In a terminal you are asked for the
essentials; otherwise, or with --defaults, the defaults are written.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the configuration file.

Keys are section.key names; run 'markov config set --help' with -v to list
them all. Lists are comma separated and durations look like 90s, 5m or 2h.

Examples:
  markov config set library.root ~/Music
  markov config set selector.strategy shuffle
  markov config set tired.cooldown 4h
  markov config set chain.like_delta 3`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitDefaults, "defaults", false, "write defaults without asking")

	configCmd.AddCommand(configShowCmd, configPathCmd, configEditCmd, configInitCmd, configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if JSONOutput() {
		values := make(map[string]string)
		for _, key := range config.Keys() {
			v, err := cfg.Get(key)
			if err != nil {
				return err
			}
			values[key] = v
		}
		return writeJSON(out, values)
	}

	encoder := toml.NewEncoder(out)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := config.FindConfigFile(); p != "" {
		return p
	}
	return config.DefaultPath()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := getConfigPath()
	_, err := os.Stat(path)
	exists := err == nil

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]any{"path": path, "exists": exists})
	}
	fmt.Fprintln(out, path)
	if !exists && Verbose() {
		fmt.Fprintln(out, "(not created yet; run 'markov config init')")
	}
	return nil
}

func requireConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w at %s", markoverrors.ErrConfigNotFound, path)
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()
	if err := requireConfigFile(configPath); err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

// initForm asks for the settings most people change.
func initForm(c *config.Config) *huh.Form {
	strategies := make([]huh.Option[string], len(selector.Names))
	for i, name := range selector.Names {
		strategies[i] = huh.NewOption(name, name)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Music library").
				Description("Directory that holds your music").
				Value(&c.Library.Root).
				Validate(func(s string) error {
					info, err := os.Stat(config.ExpandHome(s))
					if err != nil {
						return err
					}
					if !info.IsDir() {
						return fmt.Errorf("%s is not a directory", s)
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Player").
				Options(
					huh.NewOption("mpv", "mpv"),
					huh.NewOption("memory (no audio, for trying things out)", "memory"),
				).
				Value(&c.Player.Backend),
			huh.NewSelect[string]().
				Title("How should the next song be picked?").
				Options(strategies...).
				Value(&c.Selector.Strategy),
			huh.NewInput().
				Title("Chain file").
				Description("Where learned transitions are kept (.db or .toml)").
				Value(&c.Chain.StorageFile),
		),
	)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}

	newCfg := config.Default()
	if !configInitDefaults && !JSONOutput() && term.IsTerminal(int(os.Stdin.Fd())) {
		if err := initForm(newCfg).Run(); err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		newCfg.Library.Root = config.ExpandHome(newCfg.Library.Root)
		newCfg.Chain.StorageFile = config.ExpandHome(newCfg.Chain.StorageFile)
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", markoverrors.ErrInvalidConfig, err)
	}

	if err := config.Save(newCfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]string{
			"status": "created",
			"path":   configPath,
		})
	}
	fmt.Fprintf(out, "Created config file: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Check library.root points at your music: markov library list")
	fmt.Fprintln(out, "  2. Start listening: markov play")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]string{"key": args[0], "value": value})
	}
	fmt.Fprintln(out, value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	configPath := getConfigPath()

	fileCfg := &config.Config{}
	if _, err := os.Stat(configPath); err == nil {
		if fileCfg, err = config.ReadFile(configPath); err != nil {
			return err
		}
	}

	if err := fileCfg.Set(key, value); err != nil {
		if strings.HasPrefix(err.Error(), "unknown config key") {
			return markoverrors.WithSuggestion(err, "Valid keys: "+strings.Join(config.Keys(), ", "))
		}
		return err
	}

	// Validate what the file would load as.
	check := *fileCfg
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %w", markoverrors.ErrInvalidConfig, err)
	}

	if err := config.Save(fileCfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return writeJSON(out, map[string]string{
			"status": "updated",
			"key":    key,
			"value":  value,
			"path":   configPath,
		})
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}
