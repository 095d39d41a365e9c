/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"epitax/internal/config"
	"epitax/internal/crash"
	"epitax/internal/editor"
	"epitax/internal/fontgen"
	applog "epitax/internal/log"
	"epitax/internal/storage"
	"epitax/internal/version"
)

func usage() {
	fmt.Println("Epitax glyph builder")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  epitax version|-v|--version                     Show version")
	fmt.Println("  epitax init                                     Write a default config file")
	fmt.Println("  epitax status                                   Summarize the stored design")
	fmt.Println("  epitax shape <char> c1 r1 x1 y1 c2 r2 x2 y2     Add a shape from two clicks")
	fmt.Println("  epitax reset <char>                             Remove all shapes of a glyph")
	fmt.Println("  epitax reset-all                                Start over with an empty design")
	fmt.Println("  epitax undo <char>                              Restore the glyph's previous revision")
	fmt.Println("  epitax outline <char>                           Print the merged outline path data")
	fmt.Println("  epitax export-font [<file>]                     Write the OpenType font")
	fmt.Println("  epitax export-data <file>                       Write the design document as JSON")
	fmt.Println("  epitax import-data <file>                       Replace the design from a JSON file")
	fmt.Println("  epitax export-svg [-grid] [-merged] <char> <file>  Write one glyph as SVG")
	fmt.Println("  epitax overview [-labels] <file>                Write a PNG sheet of all glyphs")
	fmt.Println("  epitax preview <text> <file>                    Render sample text with the font")
	fmt.Println("  epitax specimen [-guides] <file>                Write a PDF specimen")
	fmt.Println("  epitax history                                  List stored revisions")
	fmt.Println("  epitax db-password [<password>]                 Store the Postgres password, empty clears")
	fmt.Println("  epitax serve                                    Run the HTTP API")
}

// errUsage marks argument errors; they exit with code 2.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
		return 0
	case "help", "--help", "-h":
		usage()
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	applog.Init(cfg.LogOptions())
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)-1))

	if args[0] == "init" {
		return exitCode(cmdInit(cfg))
	}
	if args[0] == "db-password" {
		return exitCode(cmdPassword(args[1:]))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: invalid config:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		l.Error("open store failed", slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer a.close()
	defer crash.Recover(a.ed, a.repo)

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return 2
	}
	return exitCode(cmd(ctx, a, args[1:]))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		return 2
	case errors.Is(err, fontgen.ErrEmptyDesign):
		fmt.Fprintln(os.Stderr, "Nothing to export: draw at least one glyph first.")
		return 1
	}
	applog.WithComponent("cli").Error("command failed", slog.Any("err", err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// app is the state every command works on.
type app struct {
	cfg   config.AppConfig
	store storage.BlobStore
	repo  *storage.Repository
	ed    *editor.Editor
	close func()
}

func openApp(ctx context.Context, cfg config.AppConfig) (*app, error) {
	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	repo := storage.NewRepository(store, cfg.Grid)
	res, err := repo.Load(ctx)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("load design: %w", err)
	}
	doc := res.Doc
	switch res.Source {
	case storage.SourceFresh:
		doc = cfg.NewDocument()
	case storage.SourceMalformed:
		fmt.Fprintln(os.Stderr, "Warning: stored design is unreadable, starting with an empty one:", res.Problem)
		doc = cfg.NewDocument()
	case storage.SourceMigrated:
		fmt.Fprintln(os.Stderr, "Stored design was upgraded to the current format.")
	}
	return &app{
		cfg:   cfg,
		store: store,
		repo:  repo,
		ed:    editor.New(doc, cfg.Grid),
		close: func() { _ = closeStore() },
	}, nil
}

func openStore(ctx context.Context, sc config.StorageConfig) (storage.BlobStore, func() error, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), func() error { return nil }, nil
	case config.DriverPostgres:
		dsn, err := sc.PostgresDSN()
		if err != nil {
			return nil, nil, err
		}
		pg, err := storage.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		pg.Keep = sc.KeepRevisions
		return pg, pg.Close, nil
	default:
		sq, err := storage.OpenSQLite(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		sq.Keep = sc.KeepRevisions
		return sq, sq.Close, nil
	}
}

// save persists the editor's document after a mutating command.
func (a *app) save(ctx context.Context) error {
	if err := a.repo.Save(ctx, a.ed.Snapshot()); err != nil {
		return fmt.Errorf("save design: %w", err)
	}
	return nil
}
