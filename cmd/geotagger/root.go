package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/geotagger/client/internal/config"
)

// overrides are the persistent flags that take precedence over the
// environment.
type overrides struct {
	profile    string
	storage    string
	dbPath     string
	backendURL string
}

func (o *overrides) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("profile") {
		cfg.Profile = o.profile
	}
	if fs.Changed("storage") {
		cfg.Storage = o.storage
	}
	if fs.Changed("db-path") {
		cfg.DBPath = o.dbPath
	}
	if fs.Changed("backend-url") {
		cfg.BackendURL = o.backendURL
	}
	return cfg.Validate()
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &overrides{}

	cmd := &cobra.Command{
		Use:           "geotagger",
		Short:         "Play Geotagger from the terminal or serve the local client API.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.SetGlobalNormalizationFunc(normalizeFlag)

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&o.profile, "profile", "default", "local profile holding the session (env: GEOTAGGER_PROFILE)")
	pfs.StringVar(&o.storage, "storage", config.StorageSQLite, "profile storage: sqlite, redis or memory (env: GEOTAGGER_STORAGE)")
	pfs.StringVar(&o.dbPath, "db-path", "geotagger.db", "sqlite database file (env: GEOTAGGER_DB_PATH)")
	pfs.StringVar(&o.backendURL, "backend-url", "", "Geotagger backend base URL (env: GEOTAGGER_BACKEND_URL)")

	cmd.AddCommand(
		newServeCmd(o),
		newLoginCmd(o, false),
		newLoginCmd(o, true),
		newResetPasswordCmd(o),
		newLogoutCmd(o),
		newWhoamiCmd(o),
		newGamesCmd(o),
		newGameCmd(o),
		newGuessCmd(o),
		newShareCmd(o),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("geotagger v{{.Version}}\n")

	return cmd
}
