// Command postpilot is the operator CLI for the publishing engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/postpilot/internal/app"
	"github.com/and161185/postpilot/internal/config"
	"github.com/and161185/postpilot/internal/migrate"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/vault"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `postpilot CLI
Usage:
  postpilot [-env file] <cmd> [args]

Commands:
  version
  connect    -platform <name>                       (interactive auth)
  disconnect -platform <name>
  creds      -platform <name> -kind <kind> -file <json>   (store secrets)
  platforms                                         (status listing)
  enable     -platform <name>
  disable    -platform <name>
  post       -text <text> [-image ref] [-video ref] [-link url]
  run                                               (scheduler run now)
  history    [-n 10]
`)
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parsePlatform(name string) model.Platform {
	for _, p := range model.AllPlatforms() {
		if string(p) == name {
			return p
		}
	}
	fail(fmt.Errorf("unknown platform %q", name))
	return ""
}

// main dispatches subcommands over the shared engine wiring.
func main() {
	envFile := flag.String("env", ".env", "env file path")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	if cmd == "version" {
		fmt.Printf("postpilot %s (%s)\n", version, buildDate)
		return
	}

	logger := zap.NewNop()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		fail(err)
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		fail(err)
	}
	defer pool.Close()

	engine, err := app.Build(cfg, pool, logger)
	if err != nil {
		fail(err)
	}
	if err := engine.EnsureRegistrations(ctx); err != nil {
		fail(err)
	}

	switch cmd {

	case "connect":
		fs := flag.NewFlagSet("connect", flag.ExitOnError)
		name := fs.String("platform", "", "platform name")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" {
			fmt.Fprintln(os.Stderr, "need -platform")
			os.Exit(1)
		}
		p := parsePlatform(*name)

		c, ok := engine.Registry.Lookup(p)
		if !ok {
			fail(fmt.Errorf("no connector for %s", p))
		}
		if err := c.Authenticate(ctx); err != nil {
			fail(err)
		}
		fmt.Printf("%s connected\n", p)

	case "disconnect":
		fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
		name := fs.String("platform", "", "platform name")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" {
			fmt.Fprintln(os.Stderr, "need -platform")
			os.Exit(1)
		}
		p := parsePlatform(*name)

		if err := engine.Auth.Disconnect(ctx, p); err != nil {
			fail(err)
		}
		fmt.Printf("%s disconnected\n", p)

	case "creds":
		fs := flag.NewFlagSet("creds", flag.ExitOnError)
		name := fs.String("platform", "", "platform name")
		kind := fs.String("kind", "", "credential kind: client | oauth1 | service_account")
		file := fs.String("file", "", "secret JSON file, - for stdin")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" || *kind == "" || *file == "" {
			fmt.Fprintln(os.Stderr, "need -platform, -kind and -file")
			os.Exit(1)
		}
		p := parsePlatform(*name)
		switch *kind {
		case vault.KindClient, vault.KindOAuth1, vault.KindServiceAccount:
		default:
			fail(fmt.Errorf("unknown credential kind %q", *kind))
		}

		secret, err := readAll(*file)
		if err != nil {
			fail(err)
		}
		if !json.Valid(secret) {
			fail(fmt.Errorf("%s is not valid JSON", *file))
		}
		if err := engine.Vault.Save(ctx, vault.Key(p, *kind), secret); err != nil {
			fail(err)
		}
		fmt.Printf("stored %s/%s\n", p, *kind)

	case "platforms":
		regs, err := engine.Platforms.List(ctx)
		if err != nil {
			fail(err)
		}
		type row struct {
			Platform   string `json:"platform"`
			Enabled    bool   `json:"enabled"`
			Configured bool   `json:"configured"`
			LastPost   string `json:"last_post,omitempty"`
		}
		rows := make([]row, 0, len(regs))
		for _, reg := range regs {
			r := row{Platform: string(reg.ID), Enabled: reg.Enabled}
			if c, ok := engine.Registry.Lookup(reg.ID); ok {
				r.Configured = c.IsConfigured(ctx)
			}
			if !reg.LastPostDate.IsZero() {
				r.LastPost = reg.LastPostDate.Format(time.RFC3339)
			}
			rows = append(rows, r)
		}
		printJSON(rows)

	case "enable", "disable":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("platform", "", "platform name")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" {
			fmt.Fprintln(os.Stderr, "need -platform")
			os.Exit(1)
		}
		p := parsePlatform(*name)
		if err := engine.Platforms.SetEnabled(ctx, p, cmd == "enable"); err != nil {
			fail(err)
		}
		fmt.Printf("%s %sd\n", p, cmd)

	case "post":
		fs := flag.NewFlagSet("post", flag.ExitOnError)
		text := fs.String("text", "", "post text")
		image := fs.String("image", "", "image file")
		video := fs.String("video", "", "video file")
		link := fs.String("link", "", "link URL")
		_ = fs.Parse(flag.Args()[1:])
		if *text == "" {
			fmt.Fprintln(os.Stderr, "need -text")
			os.Exit(1)
		}

		regs, err := engine.Platforms.List(ctx)
		if err != nil {
			fail(err)
		}
		var enabled []model.Platform
		for _, reg := range regs {
			if reg.Enabled {
				enabled = append(enabled, reg.ID)
			}
		}

		res := engine.Router.Dispatch(ctx, model.ContentItem{
			Text:     *text,
			ImageRef: *image,
			VideoRef: *video,
			Link:     *link,
		}, enabled)
		printJSON(res)
		if res.SuccessCount == 0 {
			os.Exit(1)
		}

	case "run":
		engine.Scheduler.Execute(ctx)
		fmt.Println("run complete")

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		n := fs.Int("n", 10, "number of records")
		_ = fs.Parse(flag.Args()[1:])

		records, err := engine.Posts.ListRecent(ctx, *n)
		if err != nil {
			fail(err)
		}
		printJSON(records)

	default:
		usage()
	}
}

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}
