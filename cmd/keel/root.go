// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"os"
	"syscall"

	"github.com/z5labs/keel"
	"github.com/z5labs/keel/config"
	"github.com/z5labs/keel/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read as config.
const EnvPrefix = "KEEL_"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "keel",
		Short:         "HTTP service with a fixed request pipeline and explicit lifecycle",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().String("config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			srcs, err := sources(cmd)
			if err != nil {
				return err
			}

			builder := keel.AppBuilderFunc[service.Config](func(ctx context.Context, cfg service.Config) (keel.App, error) {
				app, err := service.Build(ctx, cfg)
				if err != nil {
					return nil, err
				}
				app = keel.Recover(app)
				return keel.WithSignalNotifications(app, os.Interrupt, syscall.SIGTERM), nil
			})
			return keel.Run(cmd.Context(), builder, srcs...)
		},
	}
	cmd.Flags().Uint("port", 8080, "port to serve HTTP on")
	cmd.Flags().String("environment", "Production", "hosting environment name")
	return cmd
}

// sources orders config from lowest to highest precedence: built in
// defaults, the config file, KEEL_ environment variables and then flags
// set explicitly on the command line.
func sources(cmd *cobra.Command) ([]config.Source, error) {
	srcs := []config.Source{service.Defaults()}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		err = v.ReadInConfig()
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, config.FromViper(v))
	}

	srcs = append(srcs, config.FromEnv(EnvPrefix))

	overrides := config.Map{}
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetUint("port")
		if err != nil {
			return nil, err
		}
		overrides["http"] = map[string]any{"port": port}
	}
	if cmd.Flags().Changed("environment") {
		env, err := cmd.Flags().GetString("environment")
		if err != nil {
			return nil, err
		}
		overrides["environment"] = env
	}
	return append(srcs, overrides), nil
}
