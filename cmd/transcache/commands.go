package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZaguanLabs/transcache"
	"github.com/ZaguanLabs/transcache/cache"
	"github.com/ZaguanLabs/transcache/processor"
)

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("transcache "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// readText returns the joined args, or stdin when there are none.
func (c *cli) readText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(c.stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (c *cli) runTranslate(ctx context.Context, args []string) error {
	fs := c.flagSet("translate")
	to := fs.String("to", "", "Target language code (e.g., es_ES, he)")
	from := fs.String("from", "", "Source language code (detected when empty)")
	hint := fs.String("context", "", "Disambiguation hint for the provider")
	resType := fs.String("resource-type", "", "Resource type (e.g., property)")
	resID := fs.String("resource-id", "", "Resource id")
	field := fs.String("field", "", "Resource field")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return errors.New("-to is required")
	}

	text, err := c.readText(fs.Args())
	if err != nil {
		return err
	}

	t, done, err := c.newTranslator(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	res, err := t.TranslateOne(ctx, transcache.TranslateParams{
		Text:     text,
		To:       *to,
		From:     *from,
		Context:  *hint,
		Resource: transcache.ResourceInfo{Type: *resType, ID: *resID, Field: *field},
	})
	if err != nil {
		return err
	}

	c.logger.Debug().Bool("cached", res.Cached).Bool("manual", res.IsManualOverride).Str("from", res.From).Msg("translated")
	if *jsonOut {
		return writeJSON(c.stdout, res)
	}
	fmt.Fprintln(c.stdout, res.Text)
	return nil
}

func (c *cli) runBatch(ctx context.Context, args []string) error {
	fs := c.flagSet("batch")
	to := fs.String("to", "", "Target language code")
	from := fs.String("from", "", "Source language code (detected when empty)")
	hint := fs.String("context", "", "Disambiguation hint for the provider")
	jsonOut := fs.Bool("json", false, "Output results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return errors.New("-to is required")
	}

	var in io.Reader = c.stdin
	if fs.NArg() > 0 {
		f, err := os.Open(fs.Arg(0)) // #nosec G304 - CLI tool reads user-specified files
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var texts []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		texts = append(texts, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	t, done, err := c.newTranslator(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	start := time.Now()
	results, err := t.TranslateBatch(ctx, transcache.BatchParams{
		Texts:   texts,
		To:      *to,
		From:    *from,
		Context: *hint,
	})
	if err != nil {
		return err
	}

	cached := 0
	for _, r := range results {
		if r.Cached {
			cached++
		}
	}
	c.logger.Info().
		Int("texts", len(texts)).
		Int("cached", cached).
		Dur("elapsed", time.Since(start)).
		Msg("batch translated")

	if *jsonOut {
		return writeJSON(c.stdout, results)
	}
	for _, r := range results {
		fmt.Fprintln(c.stdout, r.Text)
	}
	return nil
}

func (c *cli) runDetect(ctx context.Context, args []string) error {
	fs := c.flagSet("detect")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text, err := c.readText(fs.Args())
	if err != nil {
		return err
	}

	t, done, err := c.newTranslator(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	d, err := t.DetectLanguage(ctx, text)
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(c.stdout, d)
	}
	fmt.Fprintf(c.stdout, "%s (%s) %.2f\n", d.Language, transcache.GetLanguageName(d.Language), d.Confidence)
	return nil
}

// HTMLOutput is the JSON form of the html command's result.
type HTMLOutput struct {
	Content         string `json:"content"`
	TotalNodes      int    `json:"total_nodes"`
	TranslatedCount int    `json:"translated_count"`
	CachedCount     int    `json:"cached_count"`
	ElapsedMs       int64  `json:"elapsed_ms"`
}

func (c *cli) runHTML(ctx context.Context, args []string) error {
	fs := c.flagSet("html")
	to := fs.String("to", "", "Target language code")
	from := fs.String("from", "", "Source language code (detected when empty)")
	output := fs.String("o", "", "Output file (default: stdout)")
	dryRun := fs.Bool("dry-run", false, "Show what would be translated without calling the provider")
	jsonOut := fs.Bool("json", false, "Output result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return errors.New("-to is required")
	}

	input, inputName, err := c.readInput(fs.Args())
	if err != nil {
		return err
	}

	if *dryRun {
		return c.htmlDryRun(ctx, input, inputName, *to, *from, *jsonOut)
	}

	t, done, err := c.newTranslator(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	start := time.Now()
	result, err := t.ProcessHTML(ctx, input, *to, *from)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	elapsed := time.Since(start)

	var out io.Writer = c.stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	c.logger.Info().
		Str("input", inputName).
		Str("to", *to).
		Int("nodes", result.TotalNodes).
		Int("translated", result.TranslatedCount).
		Int("cached", result.CachedCount).
		Dur("elapsed", elapsed).
		Msg("html translated")

	if *jsonOut {
		return writeJSON(out, HTMLOutput{
			Content:         result.Content,
			TotalNodes:      result.TotalNodes,
			TranslatedCount: result.TranslatedCount,
			CachedCount:     result.CachedCount,
			ElapsedMs:       elapsed.Milliseconds(),
		})
	}
	fmt.Fprint(out, result.Content)
	return nil
}

func (c *cli) readInput(args []string) (content, name string, err error) {
	if len(args) == 0 {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(args[0]) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return "", "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), filepath.Base(args[0]), nil
}

// htmlDryRun lists the translatable text and what the cache already holds
// for it, without calling the provider.
func (c *cli) htmlDryRun(ctx context.Context, input, inputName, to, from string, jsonOut bool) error {
	_, nodes, err := processor.NewHTMLProcessor().Extract(input)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}

	cc, done, err := c.newCache(ctx)
	if err != nil {
		return err
	}
	defer done()

	plan, err := cc.Plan(ctx, transcache.BatchParams{Texts: texts, To: to, From: from})
	if err != nil {
		return err
	}
	stats := plan.Stats()

	if jsonOut {
		type dryRunOutput struct {
			InputFile  string   `json:"input_file"`
			TargetLang string   `json:"target_lang"`
			NodeCount  int      `json:"node_count"`
			Texts      []string `json:"texts"`
			Cached     int      `json:"cached"`
			Missing    []string `json:"missing"`
		}
		return writeJSON(c.stdout, dryRunOutput{
			InputFile:  inputName,
			TargetLang: to,
			NodeCount:  len(nodes),
			Texts:      texts,
			Cached:     stats.Cached,
			Missing:    plan.Missing,
		})
	}

	cached := make(map[string]bool, len(plan.Cached))
	for _, text := range plan.Cached {
		cached[text] = true
	}

	fmt.Fprintf(c.stdout, "Dry run: %s -> %s\n", inputName, to)
	fmt.Fprintf(c.stdout, "Found %d translatable text nodes:\n\n", len(nodes))
	for i, node := range nodes {
		text := node.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		mark := " "
		if cached[node.Text] {
			mark = "*"
		}
		fmt.Fprintf(c.stdout, "%3d.%s %q\n", i+1, mark, text)
		if node.Context != "" {
			fmt.Fprintf(c.stdout, "     Context: %s\n", node.Context)
		}
	}

	fmt.Fprintf(c.stdout, "\nCached: %d  Missing: %d  Skipped: %d  (* = cached)\n",
		stats.Cached, stats.Missing, stats.Skipped)
	return nil
}

func (c *cli) runOverride(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("override: expected set or clear")
	}
	action, args := args[0], args[1:]
	if action != "set" && action != "clear" {
		return fmt.Errorf("override: unknown action %q", action)
	}

	fs := c.flagSet("override " + action)
	resType := fs.String("resource-type", "", "Resource type")
	resID := fs.String("resource-id", "", "Resource id")
	field := fs.String("field", "", "Resource field")
	to := fs.String("to", "", "Target language code")
	var text, translation *string
	if action == "set" {
		text = fs.String("text", "", "Source text")
		translation = fs.String("translation", "", "Pinned translation")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cc, done, err := c.newCache(ctx)
	if err != nil {
		return err
	}
	defer done()

	resource := transcache.ResourceInfo{Type: *resType, ID: *resID, Field: *field}
	key := transcache.ResourceKey(resource.Type, resource.ID, resource.Field, *to)

	switch action {
	case "set":
		if *translation == "" {
			return errors.New("-translation is required")
		}
		err := cc.SetManualOverride(ctx, transcache.ManualOverride{
			Text:           *text,
			TranslatedText: *translation,
			To:             *to,
			Resource:       resource,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Override stored: %s\n", key)
	case "clear":
		if err := cc.ClearManualOverride(ctx, resource, *to); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Override cleared: %s\n", key)
	}
	return nil
}

func (c *cli) runInvalidate(ctx context.Context, args []string) error {
	fs := c.flagSet("invalidate")
	resType := fs.String("resource-type", "", "Remove entries of this resource type (with -resource-id)")
	resID := fs.String("resource-id", "", "Resource id")
	lang := fs.String("lang", "", "Remove entries for this target language")
	all := fs.Bool("all", false, "Remove every entry")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var scope transcache.Scope
	switch {
	case *all:
		scope = transcache.All()
	case *lang != "":
		scope = transcache.ByLanguage(*lang)
	case *resType != "" || *resID != "":
		scope = transcache.ByResource(*resType, *resID)
	default:
		return errors.New("one of -all, -lang or -resource-type/-resource-id is required")
	}

	cc, done, err := c.newCache(ctx)
	if err != nil {
		return err
	}
	defer done()

	n, err := cc.Invalidate(ctx, scope)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Removed %d entries\n", n)
	return nil
}

func (c *cli) runStats(ctx context.Context, args []string) error {
	fs := c.flagSet("stats")
	jsonOut := fs.Bool("json", false, "Output statistics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cc, done, err := c.newCache(ctx)
	if err != nil {
		return err
	}
	defer done()

	stats, err := cc.Stats(ctx)
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(c.stdout, stats)
	}

	fmt.Fprintf(c.stdout, "Total entries:    %d\n", stats.TotalEntries)
	fmt.Fprintf(c.stdout, "Manual overrides: %d\n", stats.ManualOverrides)
	if len(stats.ByLanguage) == 0 {
		return nil
	}

	langs := make([]string, 0, len(stats.ByLanguage))
	for lang := range stats.ByLanguage {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	fmt.Fprintf(c.stdout, "By language:\n")
	for _, lang := range langs {
		fmt.Fprintf(c.stdout, "  %-8s %d\n", lang, stats.ByLanguage[lang])
	}
	return nil
}

func (c *cli) runExport(ctx context.Context, args []string) error {
	fs := c.flagSet("export")
	output := fs.String("o", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeStore, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	dumper, ok := store.(cache.Dumper)
	if !ok {
		return fmt.Errorf("store backend %q cannot be exported", c.cfg.Store.Backend)
	}

	metadata := map[string]string{
		"backend": c.cfg.Store.Backend,
		"version": transcache.FullVersion(),
	}
	exporter := cache.NewExporter(dumper)
	if *output != "" {
		if err := exporter.ExportToFile(ctx, *output, metadata); err != nil {
			return err
		}
		c.logger.Info().Str("file", *output).Msg("cache exported")
		return nil
	}
	return exporter.Export(ctx, c.stdout, metadata)
}

func (c *cli) runImport(ctx context.Context, args []string) error {
	fs := c.flagSet("import")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeStore, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	importer := cache.NewImporter(store)
	var result *cache.ImportResult
	if fs.NArg() > 0 {
		result, err = importer.ImportFromFile(ctx, fs.Arg(0))
	} else {
		result, err = importer.Import(ctx, c.stdin)
	}
	if err != nil {
		return err
	}

	c.logger.Info().Int("imported", result.Imported).Int("failed", result.Failed).Msg("cache imported")
	fmt.Fprintf(c.stdout, "Imported %d entries (%d failed)\n", result.Imported, result.Failed)
	return nil
}
