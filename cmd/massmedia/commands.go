package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacktea/massmedia/pkg/gc"
	"github.com/jacktea/massmedia/pkg/media"
	"github.com/jacktea/massmedia/pkg/server/httpapi"
	"github.com/jacktea/massmedia/pkg/server/middleware"
	"github.com/jacktea/massmedia/pkg/source"
)

func (a *app) newNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <path|url>...",
		Short: "Print the stored name each source would get, without storing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uris, err := sourceURIs(args)
			if err != nil {
				return err
			}
			names, err := a.store.FileNamesFromSources(cmd.Context(), uris, a.unique())
			if err != nil {
				return err
			}
			for _, name := range names {
				printf(cmd.OutOrStdout(), "%s\n", name)
			}
			return nil
		},
	}
}

func (a *app) newPutCmd() *cobra.Command {
	var move bool
	cmd := &cobra.Command{
		Use:   "put <path|url>...",
		Short: "Store files and print their names and web paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uris, err := sourceURIs(args)
			if err != nil {
				return err
			}
			names, err := a.put(cmd.Context(), uris, move)
			for _, name := range names {
				web, _ := a.store.WebPath(name)
				printf(cmd.OutOrStdout(), "%s\t%s\n", name, web)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&move, "move", false, "move local files into the store instead of copying them")
	return cmd
}

func (a *app) put(ctx context.Context, uris []string, move bool) ([]string, error) {
	if !move {
		return a.store.UploadBatchFromURIs(ctx, uris, a.unique())
	}
	files := make([]media.UploadedFile, 0, len(uris))
	for _, uri := range uris {
		if source.IsRemote(uri) {
			return nil, fmt.Errorf("put --move: %s is not a local file", uri)
		}
		files = append(files, &media.LocalFile{Name: uri, File: uri})
	}
	return a.store.UploadBatch(ctx, files, a.unique())
}

func (a *app) newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path <file-name>",
		Short: "Resolve where a stored name lives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			web, ok := a.store.WebPath(name)
			if !ok {
				return errors.New("path: file name is empty")
			}
			sub, _ := a.store.SubFolderPath(name)
			abs, _ := a.store.AbsoluteFilePath(name)
			out := cmd.OutOrStdout()
			printf(out, "web_path\t%s\n", web)
			printf(out, "sub_folder_path\t%s\n", sub)
			printf(out, "absolute_path\t%s\n", abs)
			return nil
		},
	}
}

func (a *app) newRmCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "rm <file-name>...",
		Short: "Remove stored files, pruning shard directories left empty",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if err := a.store.Remove(cmd.Context(), name, !keep); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep-folders", false, "leave empty shard directories in place")
	return cmd
}

func (a *app) newGCCmd() *cobra.Command {
	var interval, minAge time.Duration
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove empty shard directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			sweeper := gc.NewSweeper(gc.Options{Store: a.store, Logger: a.log, MinAge: minAge})
			if interval <= 0 {
				count, err := sweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "gc removed %d directories\n", count)
				return nil
			}
			return sweeper.Run(cmd.Context(), interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "keep sweeping at this interval until interrupted (0 sweeps once)")
	cmd.Flags().DurationVar(&minAge, "min-age", time.Minute, "skip directories modified more recently than this")
	return cmd
}

func (a *app) newServeHTTPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Expose upload, download and removal over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.v
			opts := httpapi.Options{
				APIKey:         v.GetString("serve_http.api_key"),
				MaxUploadBytes: v.GetInt64("serve_http.max_upload"),
			}
			if limit := v.GetInt("serve_http.rate_limit"); limit > 0 {
				opts.RateLimit = middleware.RateLimitOptions{
					Requests: limit,
					Window:   v.GetDuration("serve_http.rate_window"),
				}
			}
			server := &httpapi.Server{Store: a.store, Log: a.log.With(zap.String("component", "http")), Opts: opts}
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return server.Start(ctx, v.GetString("serve_http.addr"))
			})
			if every := v.GetDuration("serve_http.gc_interval"); every > 0 {
				sweeper := gc.NewSweeper(gc.Options{Store: a.store, Logger: a.log, MinAge: every})
				g.Go(func() error { return sweeper.Run(ctx, every) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("api-key", "", "require API key (X-API-Key or Bearer token)")
	cmd.Flags().Int("rate-limit", 0, "requests allowed per rate window (0 disables)")
	cmd.Flags().Duration("rate-window", time.Second, "rate limit window")
	cmd.Flags().Int64("max-upload", httpapi.DefaultMaxUploadBytes, "maximum upload request size in bytes")
	cmd.Flags().Duration("gc-interval", 0, "sweep empty shard directories at this interval (0 disables)")
	a.bindConfig("serve_http.addr", cmd.Flags().Lookup("addr"))
	a.bindConfig("serve_http.api_key", cmd.Flags().Lookup("api-key"))
	a.bindConfig("serve_http.rate_limit", cmd.Flags().Lookup("rate-limit"))
	a.bindConfig("serve_http.rate_window", cmd.Flags().Lookup("rate-window"))
	a.bindConfig("serve_http.max_upload", cmd.Flags().Lookup("max-upload"))
	a.bindConfig("serve_http.gc_interval", cmd.Flags().Lookup("gc-interval"))
	return cmd
}

// sourceURIs leaves URLs alone and makes local paths absolute, since the
// store resolves paths against the filesystem root.
func sourceURIs(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if source.IsRemote(arg) {
			out = append(out, arg)
			continue
		}
		abs, err := filepath.Abs(strings.TrimPrefix(arg, "file://"))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		out = append(out, abs)
	}
	return out, nil
}
