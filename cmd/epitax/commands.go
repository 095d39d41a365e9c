/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"

	"epitax/internal/config"
	"epitax/internal/domain"
	"epitax/internal/export"
	"epitax/internal/fontgen"
	"epitax/internal/outline"
	"epitax/internal/server"
	"epitax/internal/storage"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"status":      cmdStatus,
	"shape":       cmdShape,
	"reset":       cmdReset,
	"reset-all":   cmdResetAll,
	"undo":        cmdUndo,
	"outline":     cmdOutline,
	"export-font": cmdExportFont,
	"export-data": cmdExportData,
	"import-data": cmdImportData,
	"export-svg":  cmdExportSVG,
	"overview":    cmdOverview,
	"preview":     cmdPreview,
	"specimen":    cmdSpecimen,
	"history":     cmdHistory,
	"serve":       cmdServe,
}

func usageErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

func cmdInit(cfg config.AppConfig) error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Println("Config already exists at", path)
		return nil
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Println("Wrote config to", path)
	return nil
}

// cmdPassword stores the Postgres password in the OS keyring. Without an
// argument the password is read from stdin.
func cmdPassword(args []string) error {
	var pw string
	if len(args) > 0 {
		pw = args[0]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if err := config.SetPostgresPassword(pw); err != nil {
		return err
	}
	if pw == "" {
		fmt.Println("Postgres password removed from keyring")
	} else {
		fmt.Println("Postgres password stored in keyring")
	}
	return nil
}

func cmdStatus(ctx context.Context, a *app, _ []string) error {
	doc := a.ed.Snapshot()
	drawn := 0
	for _, g := range doc.Glyphs {
		if len(g.Shapes) > 0 {
			drawn++
		}
	}
	fmt.Printf("Family:  %s %s\n", doc.FontSettings.FamilyName, doc.FontSettings.StyleName)
	fmt.Printf("Glyphs:  %d of %d drawn, %d shapes\n", drawn, len(doc.Glyphs), doc.ShapeCount())
	fmt.Printf("Grid:    %dx%d cells of %v, baseline at %v\n", a.cfg.Grid.Cols, a.cfg.Grid.Rows, a.cfg.Grid.CellSize, a.cfg.Grid.BaselineY())
	fmt.Printf("Storage: %s", a.cfg.Storage.Driver)
	if sq, ok := a.store.(*storage.SQLiteStore); ok {
		v, err := sq.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf(" %s (schema %d)", sq.Path(), v)
	}
	fmt.Println()
	return nil
}

func cmdShape(ctx context.Context, a *app, args []string) error {
	if len(args) != 9 {
		return usageErr("shape needs <char> c1 r1 x1 y1 c2 r2 x2 y2")
	}
	char := args[0]
	nums := make([]float64, 8)
	for i, s := range args[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return usageErr("argument %d: %v", i+2, err)
		}
		nums[i] = v
	}
	if _, err := a.ed.Click(char, int(nums[0]), int(nums[1]), nums[2], nums[3]); err != nil {
		return err
	}
	res, err := a.ed.Click(char, int(nums[4]), int(nums[5]), nums[6], nums[7])
	if err != nil {
		return err
	}
	if err := a.save(ctx); err != nil {
		return err
	}
	fmt.Printf("Added %s to %q\n", res.Shape.ID, char)
	return nil
}

func cmdReset(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("reset needs <char>")
	}
	if err := a.ed.ClearShapes(args[0]); err != nil {
		return err
	}
	return a.save(ctx)
}

func cmdResetAll(ctx context.Context, a *app, _ []string) error {
	a.ed.ReplaceDocument(a.cfg.NewDocument())
	return a.save(ctx)
}

// cmdUndo walks the stored revisions back to the newest one whose shapes for
// the glyph differ from the current ones and restores them.
func cmdUndo(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("undo needs <char>")
	}
	char := args[0]
	cur, err := a.ed.Glyph(char)
	if err != nil {
		return err
	}
	hs, ok := a.store.(storage.HistoryStore)
	if !ok {
		return fmt.Errorf("storage driver %q keeps no history", a.cfg.Storage.Driver)
	}
	revs, err := hs.Revisions(ctx, storage.StateKey, 0)
	if err != nil {
		return err
	}
	for _, rev := range revs {
		doc, _, err := storage.Decode([]byte(rev.Blob), a.cfg.Grid)
		if err != nil {
			continue
		}
		old, ok := doc.Glyph(char)
		if !ok || cmp.Equal(normalize(old.Shapes), normalize(cur.Shapes)) {
			continue
		}
		if err := a.ed.ClearShapes(char); err != nil {
			return err
		}
		for _, s := range old.Shapes {
			if err := a.ed.AppendShape(char, s); err != nil {
				return err
			}
		}
		if err := a.save(ctx); err != nil {
			return err
		}
		fmt.Printf("Restored %q to %d shapes from %s\n", char, len(old.Shapes), rev.TS.Local().Format(time.DateTime))
		return nil
	}
	fmt.Printf("Nothing to undo for %q\n", char)
	return nil
}

func normalize(s []domain.Shape) []domain.Shape {
	if len(s) == 0 {
		return nil
	}
	return s
}

func cmdOutline(_ context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("outline needs <char>")
	}
	data, err := a.ed.Outline(args[0], outline.Default)
	if err != nil {
		return err
	}
	fmt.Println(data)
	return nil
}

func cmdExportFont(_ context.Context, a *app, args []string) error {
	path := fontgen.DefaultFileName(time.Now())
	if len(args) > 0 {
		path = args[0]
	}
	f, err := fontgen.Assemble(a.ed.Snapshot(), a.cfg.Grid, outline.Default)
	if err != nil {
		return err
	}
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	if err := writeFile(path, data); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d glyphs)\n", path, len(f.Glyphs)-1)
	return nil
}

func cmdExportData(_ context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("export-data needs <file>")
	}
	if err := storage.ExportFile(args[0], a.ed.Snapshot()); err != nil {
		return err
	}
	fmt.Println("Wrote", args[0])
	return nil
}

func cmdImportData(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("import-data needs <file>")
	}
	doc, err := storage.ImportFile(args[0], a.cfg.Grid)
	if err != nil {
		return err
	}
	a.ed.ReplaceDocument(doc)
	if err := a.save(ctx); err != nil {
		return err
	}
	fmt.Printf("Imported %d shapes\n", doc.ShapeCount())
	return nil
}

func cmdExportSVG(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export-svg", flag.ContinueOnError)
	showGrid := fs.Bool("grid", false, "draw the cell grid")
	merged := fs.Bool("merged", false, "draw the merged outline")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	if fs.NArg() != 2 {
		return usageErr("export-svg needs <char> <file>")
	}
	g, err := a.ed.Glyph(fs.Arg(0))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.GlyphSVG(&buf, a.cfg.Grid, g, export.SVGOptions{ShowGrid: *showGrid, Merged: *merged}); err != nil {
		return err
	}
	return writeFile(fs.Arg(1), buf.Bytes())
}

func cmdOverview(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("overview", flag.ContinueOnError)
	labels := fs.Bool("labels", false, "caption each tile")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	if fs.NArg() != 1 {
		return usageErr("overview needs <file>")
	}
	var buf bytes.Buffer
	if err := export.OverviewPNG(&buf, a.ed.Snapshot(), a.cfg.Grid, export.PNGOptions{Labels: *labels}); err != nil {
		return err
	}
	return writeFile(fs.Arg(0), buf.Bytes())
}

func cmdPreview(_ context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("preview needs <text> <file>")
	}
	f, err := fontgen.Assemble(a.ed.Snapshot(), a.cfg.Grid, outline.Default)
	if err != nil {
		return err
	}
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.PreviewPNG(&buf, data, args[0], export.PreviewOptions{}); err != nil {
		return err
	}
	return writeFile(args[1], buf.Bytes())
}

func cmdSpecimen(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("specimen", flag.ContinueOnError)
	guides := fs.Bool("guides", false, "draw tile borders and baselines")
	if err := fs.Parse(args); err != nil {
		return usageErr("%v", err)
	}
	if fs.NArg() != 1 {
		return usageErr("specimen needs <file>")
	}
	if err := export.SpecimenPDF(fs.Arg(0), a.ed.Snapshot(), a.cfg.Grid, export.PDFOptions{ShowGuides: *guides}); err != nil {
		return err
	}
	fmt.Println("Wrote", fs.Arg(0))
	return nil
}

func cmdHistory(ctx context.Context, a *app, _ []string) error {
	hs, ok := a.store.(storage.HistoryStore)
	if !ok {
		return fmt.Errorf("storage driver %q keeps no history", a.cfg.Storage.Driver)
	}
	revs, err := hs.Revisions(ctx, storage.StateKey, 0)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		fmt.Println("No revisions stored")
		return nil
	}
	for _, rev := range revs {
		shapes := "?"
		if doc, _, err := storage.Decode([]byte(rev.Blob), a.cfg.Grid); err == nil {
			shapes = strconv.Itoa(doc.ShapeCount())
		}
		fmt.Printf("%s  %s shapes\n", rev.TS.Local().Format(time.DateTime), shapes)
	}
	return nil
}

func cmdServe(ctx context.Context, a *app, _ []string) error {
	srv := server.New(a.ed, a.repo, server.WithAutosaveInterval(a.cfg.Storage.AutosaveInterval()))
	fmt.Println("Serving on", a.cfg.Server.Addr)
	return srv.Run(ctx, a.cfg.Server.Addr)
}

// writeFile writes data, creating parent directories.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
