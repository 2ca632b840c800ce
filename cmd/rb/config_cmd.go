package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rulebook-dev/rulebook/internal/config"
	"github.com/rulebook-dev/rulebook/internal/ui"
)

var configCmd = &cobra.Command{
	Use:         "config",
	GroupID:     "setup",
	Short:       "Show and edit rulebook configuration",
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Long: `Configuration is read from .rulebook/config.yaml (nearest to the working
directory), ~/.config/rulebook/config.yaml and RB_* environment variables.
Secrets such as reviewer.api-key are only read from the environment.`,
}

var configListCmd = &cobra.Command{
	Use:         "list",
	Short:       "List every key with its effective value",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		entries := configEntries()
		if jsonOutput {
			outputJSON(entries)
			return
		}
		if path := config.ConfigFileUsed(); path != "" {
			fmt.Println(ui.RenderMuted("# " + path))
		}
		for _, e := range entries {
			value := e.Value
			if value == "" {
				value = ui.RenderMuted("(unset)")
			}
			fmt.Printf("%s = %s  %s\n", ui.RenderBold(e.Key), value, ui.RenderMuted(e.Description))
		}
	},
}

var configGetCmd = &cobra.Command{
	Use:         "get <key>",
	Short:       "Print the effective value of a key",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		k := config.LookupKey(args[0])
		if k == nil {
			FatalErrorRespectJSON(fmt.Errorf("unknown config key %q", args[0]))
		}
		e := entryFor(*k)
		if jsonOutput {
			outputJSON(e)
			return
		}
		fmt.Println(e.Value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a key to the project config.yaml",
	Long: `Write a key to the nearest .rulebook/config.yaml, creating it in the working
directory if none exists. risk.rules takes a comma-separated list, e.g.
  rb config set risk.rules "CHECKLIST_ITEM:*=SAFE,*:DELETE=HIGH"`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		key, value := args[0], args[1]
		if err := config.ValidateKey(key, value); err != nil {
			FatalErrorRespectJSON(err)
		}
		path := configWritePath()
		if err := config.SetInYAML(path, key, value); err != nil {
			FatalErrorRespectJSON(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"key": key, "value": value, "path": path})
			return
		}
		fmt.Printf("%s Set %s = %s in %s\n", ui.RenderPassIcon(), ui.RenderBold(key), value, path)
	},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the config file rb reads and writes",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		path := configWritePath()
		if jsonOutput {
			outputJSON(map[string]string{"path": path, "loaded": config.ConfigFileUsed()})
			return
		}
		fmt.Println(path)
	},
}

type configEntry struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
	EnvVar      string `json:"env_var"`
	Secret      bool   `json:"secret,omitempty"`
}

func entryFor(k config.Key) configEntry {
	value := config.GetString(k.Key)
	if k.Key == config.KeyRiskRules {
		value = fmt.Sprint(config.GetStringSlice(k.Key))
	}
	if k.Secret && value != "" {
		value = "********"
	}
	return configEntry{
		Key:         k.Key,
		Value:       value,
		Description: k.Description,
		EnvVar:      k.EnvVar(),
		Secret:      k.Secret,
	}
}

func configEntries() []configEntry {
	entries := make([]configEntry, 0, len(config.Keys))
	for _, k := range config.Keys {
		entries = append(entries, entryFor(k))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// configWritePath is the nearest project config.yaml, or
// ./.rulebook/config.yaml when there is none yet.
func configWritePath() string {
	if path, err := config.FindConfigYAMLPath(); err == nil {
		return path
	}
	if dir, err := config.FindProjectDir(); err == nil {
		return filepath.Join(dir, "config.yaml")
	}
	return filepath.Join(config.ProjectDir, "config.yaml")
}

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
