// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the literator CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/twelman/literator/internal/secrets"
	"github.com/twelman/literator/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if set, then the secret value for key,
// then the empty string.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the literator CLI.
var rootCmd = &cobra.Command{
	Use:   "literator",
	Short: "Fetch, deduplicate, and query bibliographic records",
	Long: `literator searches bibliographic APIs (Scopus, NASA ADS) for papers
matching a query, normalizes the results into a canonical record, and folds
them into a local SQLite database with cross-source deduplication.

Each operation is a subcommand: fetch pulls records from a source, query
searches the local database, and stats summarizes what is stored.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
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
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./literator.yaml or ~/.config/literator/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the SQLite database (default: literator.db)")
}

func initConfig() {
	// A .env file augments the environment before viper reads it.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("literator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "literator"))
		}
	}

	viper.SetEnvPrefix("LITERATOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// buildConfig materializes the runtime configuration from config file,
// environment, and loaded secrets. Flag values still override the
// resulting fields in the individual commands.
func buildConfig() types.Config {
	cfg := types.Config{
		Fetch: types.FetchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("fetch.timeout"),
				UserAgent: viper.GetString("fetch.user_agent"),
			},
			Scopus: types.SourceConfig{
				APIKey:            secretDefault("scopus-api-key", viper.GetString("fetch.scopus.api_key")),
				APIURL:            viper.GetString("fetch.scopus.api_url"),
				PageSize:          viper.GetInt("fetch.scopus.page_size"),
				RequestsPerSecond: viper.GetFloat64("fetch.scopus.requests_per_second"),
			},
			ADS: types.SourceConfig{
				APIKey:            secretDefault("ads-api-key", viper.GetString("fetch.adsabs.api_key")),
				APIURL:            viper.GetString("fetch.adsabs.api_url"),
				PageSize:          viper.GetInt("fetch.adsabs.page_size"),
				RequestsPerSecond: viper.GetFloat64("fetch.adsabs.requests_per_second"),
			},
			MaxResults: viper.GetInt("fetch.max_results"),
		},
		Storage: types.StorageConfig{
			DBPath:     viper.GetString("storage.db_path"),
			MaxResults: viper.GetInt("storage.max_results"),
		},
		Merge: types.MergePolicy{
			PreferLatestTitle: viper.GetBool("merge.prefer_latest_title"),
			PreferLatestYear:  viper.GetBool("merge.prefer_latest_year"),
		},
	}

	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "literator/" + version
	}
	if db, _ := rootCmd.PersistentFlags().GetString("db"); db != "" {
		cfg.Storage.DBPath = db
	}
	return cfg
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
