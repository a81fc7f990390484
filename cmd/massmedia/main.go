package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jacktea/massmedia/pkg/media"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	store   *media.Store
	log     *zap.Logger
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) ensureStore() error {
	if a.store != nil {
		return nil
	}
	logger, err := buildLogger(a.v.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	store, err := media.New(cfg, media.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	logger.Debug("store ready",
		zap.String("upload_root", store.UploadRootDir()),
		zap.String("hash_algo", cfg.HashAlgorithm),
		zap.Int("folder_depth", cfg.ShardDepth),
		zap.Int("folder_chars", cfg.ShardWidth),
	)
	a.log = logger
	a.store = store
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	application := newApp()
	err := application.rootCmd().ExecuteContext(ctx)
	application.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "massmedia",
		Short:         "Content-addressed media store with sharded folders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}
			return a.ensureStore()
		},
	}
	a.initRootFlags(root)
	root.AddCommand(
		a.newNameCmd(),
		a.newPutCmd(),
		a.newPathCmd(),
		a.newRmCmd(),
		a.newGCCmd(),
		a.newServeHTTPCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	v := a.v
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("massmedia")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "massmedia"))
		}
	}
	v.SetEnvPrefix("MASSMEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// setDefaults registers every store key so environment variables are seen by
// Unmarshal even when no flag or file mentions them.
func setDefaults(v *viper.Viper) {
	def := media.DefaultConfig()
	v.SetDefault("hash_algo", def.HashAlgorithm)
	v.SetDefault("folder_depth", def.ShardDepth)
	v.SetDefault("folder_chars", def.ShardWidth)
	v.SetDefault("upload_dir", "")
	v.SetDefault("web_dir_name", def.WebDirName)
	if wd, err := os.Getwd(); err == nil {
		v.SetDefault("root_dir", wd)
	}
	v.SetDefault("log_level", "info")
	v.SetDefault("unique", "")
}

func loadConfig(v *viper.Viper) (media.Config, error) {
	cfg := media.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if cfg.RootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("resolve root_dir: %w", err)
		}
		cfg.RootDir = wd
	}
	return cfg, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.TrimSpace(level) != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

func (a *app) bindConfig(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func (a *app) initRootFlags(root *cobra.Command) {
	setDefaults(a.v)
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (TOML or YAML)")

	def := media.DefaultConfig()
	flags.String("hash-algo", def.HashAlgorithm, "digest algorithm used for names")
	flags.Int("folder-depth", def.ShardDepth, "number of shard directory levels")
	flags.Int("folder-chars", def.ShardWidth, "characters per shard directory name")
	flags.String("upload-dir", "", "upload directory under the web directory")
	flags.String("web-dir-name", def.WebDirName, "web directory, sibling of the root dir")
	flags.String("root-dir", "", "application root dir (default current directory)")
	flags.String("unique", "", "token mixed into every derived name")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	a.bindConfig("hash_algo", flags.Lookup("hash-algo"))
	a.bindConfig("folder_depth", flags.Lookup("folder-depth"))
	a.bindConfig("folder_chars", flags.Lookup("folder-chars"))
	a.bindConfig("upload_dir", flags.Lookup("upload-dir"))
	a.bindConfig("web_dir_name", flags.Lookup("web-dir-name"))
	a.bindConfig("root_dir", flags.Lookup("root-dir"))
	a.bindConfig("unique", flags.Lookup("unique"))
	a.bindConfig("log_level", flags.Lookup("log-level"))
}

func (a *app) unique() string {
	return a.v.GetString("unique")
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
