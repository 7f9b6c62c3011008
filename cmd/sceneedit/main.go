package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/editor"
	"github.com/godwinm8/Stateless-2D-Editor/scene"
	"github.com/godwinm8/Stateless-2D-Editor/share"
	"github.com/godwinm8/Stateless-2D-Editor/stores"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type options struct {
	configFile string
	sceneID    string
	storeURL   string
	token      string
	outDir     string
	width      float64
	viewOnly   bool
	share      bool
	logLevel   string
	commands   []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sceneedit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configFile, "config", "", "Path to a config file")
	fs.StringVar(&o.sceneID, "scene", "", "Scene id to open; a new one is generated when empty")
	fs.StringVar(&o.storeURL, "store-url", "", "Document service URL; overrides the configured storage")
	fs.StringVar(&o.token, "token", "", "Share token sent to the document service")
	fs.StringVar(&o.outDir, "out", ".", "Directory exports are written to")
	fs.Float64Var(&o.width, "width", scene.DefaultWidth, "Viewport width")
	fs.BoolVar(&o.viewOnly, "view-only", false, "Open the scene read-only")
	fs.BoolVar(&o.share, "share", false, "Print and copy the scene's share link")
	fs.StringVar(&o.logLevel, "loglevel", "", "Set the logging level")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: sceneedit [flags] command...\n\ncommands:\n")
		for _, c := range editor.Commands() {
			fmt.Fprintf(stderr, "  %-13s %s\n", c.Name, c.Label)
		}
		fmt.Fprintf(stderr, "\nflags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.commands = fs.Args()
	return o, nil
}

func run(ctx context.Context, o *options, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	cfg.ApplyLogging()

	if o.storeURL != "" {
		cfg.Storage.Type = "remote"
		cfg.Storage.URL = o.storeURL
	}
	if o.token != "" {
		cfg.Storage.Token = o.token
	}
	store, err := stores.GetStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	if o.sceneID == "" {
		o.sceneID = uuid.NewString()
		fmt.Fprintf(stdout, "New scene %s\n", o.sceneID)
	}

	shell, err := editor.NewShell(editor.Options{
		SceneID:      o.sceneID,
		Surface:      scene.StaticSurface(o.width),
		Store:        store,
		Persist:      cfg.Persist,
		HistoryLimit: cfg.History.Limit,
		ViewOnly:     o.viewOnly,
		Downloader:   scene.DirDownloader{Dir: o.outDir},
		Prompter:     &editor.LinePrompter{In: stdin, Out: stdout},
	})
	if err != nil {
		return err
	}
	defer shell.Unmount()

	if err := shell.Mount(ctx); err != nil {
		return fmt.Errorf("loading scene %s: %w", o.sceneID, err)
	}

	var failed []string
	for _, name := range o.commands {
		err := shell.Run(name)
		switch {
		case err == nil:
		case errors.Is(err, editor.ErrFailed):
			return err
		case errors.Is(err, editor.ErrUnknownCommand):
			return err
		default:
			logrus.WithField("command", name).WithError(err).Warn("Command not applied")
			failed = append(failed, name)
		}
	}

	if o.share {
		if err := printShareLink(cfg, o, stdout); err != nil {
			return err
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("commands not applied: %s", strings.Join(failed, ", "))
	}
	return nil
}

func printShareLink(cfg *config.Config, o *options, stdout io.Writer) error {
	token := ""
	if cfg.Share.Secret != "" {
		mode := share.ModeEdit
		if o.viewOnly {
			mode = share.ModeView
		}
		var err error
		token, err = share.Issue([]byte(cfg.Share.Secret), o.sceneID, mode, cfg.Share.TokenTTL)
		if err != nil {
			return err
		}
	}
	link, err := share.Link(cfg.Share.BaseURL, o.sceneID, o.viewOnly, token)
	if err != nil {
		return err
	}
	share.Copy(link, stdout)
	return nil
}

func main() {
	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := run(context.Background(), o, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "sceneedit: %v\n", err)
		os.Exit(1)
	}
}
