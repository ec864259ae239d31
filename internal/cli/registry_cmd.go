package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/soyeahso/attendant/internal/registry"
	"github.com/spf13/cobra"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Query the employee registry",
	}

	cmd.AddCommand(newRegistryLookupCmd())
	return cmd
}

func newRegistryLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <registration-id>",
		Short: "Look up a registration id in the configured registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Registry.Watch = false

			ctx := context.Background()
			src, closer, err := registry.New(ctx, cfg.Registry, log)
			if err != nil {
				return err
			}
			defer closer.Close()
			return lookup(ctx, src, args[0], cmd.OutOrStdout())
		},
	}
}

func lookup(ctx context.Context, src registry.Source, id string, out io.Writer) error {
	rec, ok, err := src.Find(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registration %q not found", registry.NormalizeID(id))
	}
	if len(rec) == 0 {
		fmt.Fprintf(out, "%s: accepted (no registry configured)\n", id)
		return nil
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %s\n", k, rec[k])
	}
	return nil
}
