package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the config file",
		Long: "Keys are dot paths into config.yaml, for example idle.longMinutes\n" +
			"or channels.webchat.resumeHours. Edits that fail validation are not saved.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value stored at key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				key, raw, err := openRaw(args[0])
				if err != nil {
					return err
				}
				val, ok := config.GetValueAtPath(raw, key)
				if !ok {
					return fmt.Errorf("%s is not set in %s", args[0], paths.Config)
				}
				return writeValue(cmd.OutOrStdout(), val)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value at key",
			Long:  "The value is read as YAML: true, 15, 2.5 and [a, b] keep their types.",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				val := parseValue(args[1])
				err := editConfig(args[0], func(raw map[string]any, key []string) error {
					config.SetValueAtPath(raw, key, val)
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], val)
				return nil
			},
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove key so its default applies",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := editConfig(args[0], func(raw map[string]any, key []string) error {
					if !config.UnsetValueAtPath(raw, key) {
						return fmt.Errorf("%s is not set in %s", args[0], paths.Config)
					}
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
			},
		},
	)
	return cmd
}

func openRaw(key string) ([]string, map[string]any, error) {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return nil, nil, err
	}
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return nil, nil, err
	}
	return path, raw, nil
}

// editConfig applies edit to the raw config and saves it only when the
// result still loads and validates.
func editConfig(key string, edit func(raw map[string]any, key []string) error) error {
	path, raw, err := openRaw(key)
	if err != nil {
		return err
	}
	if err := edit(raw, path); err != nil {
		return err
	}

	cfg, err := config.FromRaw(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.String()
		}
		return fmt.Errorf("not saved, config would be invalid: %s", strings.Join(msgs, "; "))
	}
	return config.SaveRaw(paths.Config, raw)
}

func writeValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// parseValue reads a command-line value as a YAML scalar or flow list.
// Anything that does not decode to one of those stays a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64, []any:
		return v
	}
	return s
}
