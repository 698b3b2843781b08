// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bibsync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibsync/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds contact details loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is the process-wide logger; its level is set from --log-level.
var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "bibsync"})

// rootCmd is the base command for the bibsync CLI.
var rootCmd = &cobra.Command{
	Use:   "bibsync",
	Short: "Sync BibTeX files with information from online sources",
	Long: `bibsync looks up every entry of a BibTeX file in an online metadata
source (Crossref, DBLP or OpenAlex), fills in or corrects fields such as
title, authors, journal and DOI, and writes the updated file. Entries without
a confident match are left untouched.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := log.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger.SetLevel(level)

		dir := viper.GetString("secrets_dir")
		if dir == "" {
			dir = secrets.DefaultDir
		}
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bibsync.yaml or ~/.config/bibsync/bibsync.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory holding crossref-mailto / openalex-email")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("secrets_dir", rootCmd.PersistentFlags().Lookup("secrets-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bibsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bibsync"))
		}
	}

	viper.SetEnvPrefix("BIBSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logger.Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
