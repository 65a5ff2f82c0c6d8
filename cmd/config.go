package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bnema/wayime/internal/config"
	"github.com/bnema/wayime/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wayime configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.FormatField("Config file", config.GetConfigPath()))

		section := ""
		for _, key := range config.Keys() {
			head, name, _ := strings.Cut(key, ".")
			if head != section {
				section = head
				fmt.Fprintln(out, ui.SubheaderStyle.Render("["+section+"]"))
			}
			fmt.Fprintln(out, "  "+ui.FormatField(name, viper.Get(key)))
		}

		cfg := config.Get()
		if policy, err := cfg.FlushPolicy(); err != nil {
			fmt.Fprintln(out, ui.WarningStyle.Render(err.Error()))
		} else {
			fmt.Fprintln(out, ui.FormatField("Effective locale", policy.Locale.String()))
			fmt.Fprintln(out, ui.FormatField("Commit on leave", ui.FormatBool(policy.CommitBeforeLeave())))
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if _, err := os.Stat(path); err == nil {
			if force, _ := cmd.Flags().GetBool("force"); !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists at: %s (use --force to overwrite)\n", path)
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at: %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value and save it",
	Long:  "Set a configuration value, e.g. `wayime config set input_method.locale ja_JP`.\nKnown keys: " + strings.Join(config.Keys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetValue(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], viper.Get(args[0]))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")

	rootCmd.AddCommand(configCmd)
}
