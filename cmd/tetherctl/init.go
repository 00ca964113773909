package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/tetherctl/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var path string
	var force bool
	var validate bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file, or validate an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				if v, _ := cmd.Flags().GetString("config"); strings.TrimSpace(v) != "" {
					target = strings.TrimSpace(v)
				} else {
					target = "config.toml"
				}
			}

			if validate {
				if _, err := loadAppConfig(target); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "config ok: %s\n", target)
				return nil
			}

			if err := config.WriteTemplate(target, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Config path (default --config, then ./config.toml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the config instead of writing a template")
	return cmd
}
