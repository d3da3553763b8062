package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	vitessr "github.com/yusukebe/vite-ssr-components"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     *vitessr.Config
	logger  = vitessr.NewLogger()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "vitessr",
	Short:         "Resolve Vite assets for server-rendered pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := vitessr.LoadConfig(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = vitessr.NewLoggerFromConfig(cfg.Log)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./vite-ssr.yaml)")
	flags.String("root", ".", "project root")
	flags.Bool("production", false, "resolve against the build manifest")
	flags.String("base", vitessr.DefaultBaseURL, "public base URL")
	flags.String("log-level", vitessr.DefaultLogLevel, "debug, info, warn or error")
	flags.String("log-format", vitessr.DefaultLogFormat, "pretty or json")

	_ = v.BindPFlag("root", flags.Lookup("root"))
	_ = v.BindPFlag("production", flags.Lookup("production"))
	_ = v.BindPFlag("base_url", flags.Lookup("base"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	buildCmd.Flags().Bool("clean", false, "remove dist before building")
	buildCmd.Flags().Bool("minify", true, "minify client output")
	_ = v.BindPFlag("client.minify", buildCmd.Flags().Lookup("minify"))

	entriesCmd.Flags().StringP("format", "f", "text", "text, json or yaml")
	manifestCmd.Flags().StringP("format", "f", "json", "json or yaml")
	resolveCmd.Flags().String("kind", "src", "src or href")

	devCmd.Flags().String("addr", vitessr.DefaultDevAddr, "listen address")
	_ = v.BindPFlag("dev.addr", devCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(buildCmd, entriesCmd, resolveCmd, manifestCmd, devCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the client, then the server with the client manifest injected",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if clean, _ := cmd.Flags().GetBool("clean"); clean {
			dist := filepath.Dir(filepath.Join(cfg.Root, cfg.Client.OutDir))
			cleanDist := filepath.Clean(dist)
			if cleanDist == filepath.Clean(cfg.Root) || cleanDist == string(filepath.Separator) {
				return fmt.Errorf("refusing to remove dist dir %q", dist)
			}
			if err := os.RemoveAll(cleanDist); err != nil {
				return fmt.Errorf("clean dist: %w", err)
			}
		}

		start := time.Now()
		pipeline := vitessr.NewPipeline(cfg, logger)
		bc, err := pipeline.Build(ctx)
		if err != nil {
			return err
		}

		names := make([]string, 0, len(bc.Environments))
		for _, env := range bc.Environments {
			names = append(names, env.Name)
		}
		logger.Banner(fmt.Sprintf("Build complete in %s", time.Since(start).Round(time.Millisecond)), names)
		return nil
	},
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List client entries referenced by marker components",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		entries, err := vitessr.NewPipeline(cfg, logger).Detector.Detect(ctx)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return printValue(cmd.OutOrStdout(), format, entries)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>...",
	Short: "Resolve logical asset paths to built files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		resolver := vitessr.NewPipeline(cfg, logger).Resolver()

		out := cmd.OutOrStdout()
		for _, p := range args {
			switch kind {
			case "href":
				url, ok := resolver.ResolveHref(p)
				if !ok {
					fmt.Fprintf(out, "%s\t(not found)\n", p)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", p, url)
			case "src":
				asset, ok := resolver.ResolveSrc(p)
				if !ok {
					fmt.Fprintf(out, "%s\t(not found)\n", p)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", p, asset.URL)
				for _, css := range asset.CSS {
					fmt.Fprintf(out, "\t%s\n", css)
				}
			default:
				return fmt.Errorf("unknown kind %q", kind)
			}
		}
		return nil
	},
}

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the manifest the resolver would use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		manifest := vitessr.NewPipeline(cfg, logger).Resolver().Loader.Load()
		if manifest == nil {
			return vitessr.ErrManifestNotFound
		}
		format, _ := cmd.Flags().GetString("format")
		return printValue(cmd.OutOrStdout(), format, manifest)
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Serve static assets and push full reloads when server sources change",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg.HotReload.Enabled = true
		pipeline := vitessr.NewPipeline(cfg, logger)

		mux := http.NewServeMux()
		mux.Handle(cfg.Dev.ReloadPath, pipeline.Hub)
		roots := vitessr.ProjectAssetRoots(os.DirFS(cfg.Root), cfg.Client.OutDir)
		handler := vitessr.AssetsHandler(mux, nil, roots...)

		g, gctx := errgroup.WithContext(ctx)
		server := vitessr.NewDevServer(gctx, cfg.Dev.Addr, handler)
		g.Go(func() error {
			logger.Start(fmt.Sprintf("Watching %s", vitessr.FormatPath(cfg.Root)))
			return vitessr.Watch(gctx, cfg.Root, pipeline.HotReload)
		})
		g.Go(func() error {
			logger.Start(fmt.Sprintf("Serving on %s", cfg.Dev.Addr))
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down...")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			return server.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func printValue(w io.Writer, format string, value any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		if isTerminal(w) {
			return quick.Highlight(w, string(data)+"\n", "json", "terminal256", "monokai")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "text", "":
		if entries, ok := value.([]string); ok {
			for _, e := range entries {
				fmt.Fprintln(w, e)
			}
			return nil
		}
		return printValue(w, "json", value)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
