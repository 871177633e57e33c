package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"example.com/psfgate/internal/analysis"
	"example.com/psfgate/internal/common"
	"example.com/psfgate/internal/export"
	"example.com/psfgate/internal/psf"
	"example.com/psfgate/internal/report"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errBatchFailed = errors.New("one or more files failed to decode")

// errUsage marks bad invocations; they exit with status 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stdout)
		return 2
	}
	a := &app{ctx: ctx, stdout: stdout, stderr: stderr}
	var err error
	switch args[0] {
	case "info":
		err = a.infoCmd(args[1:])
	case "signals":
		err = a.signalsCmd(args[1:])
	case "sample":
		err = a.sampleCmd(args[1:])
	case "export":
		err = a.exportCmd(args[1:])
	case "report":
		err = a.reportCmd(args[1:])
	case "batch":
		err = a.batchCmd(args[1:])
	case "version":
		fmt.Fprintf(stdout, "psfctl %s (built %s)\n", version, buildDate)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		usage(stderr)
		return 2
	}
	if a.closeLogs != nil {
		a.closeLogs.Close()
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprintln(stderr, err)
		return 2
	default:
		fmt.Fprintf(stderr, "psfctl %s: %v\n", args[0], err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `psfctl %s (built %s) <command> [options]

Commands:
  info     --in <file>
  signals  --in <file> [--analysis tran|ac|dc]
  sample   --in <file> --signal <name> --at <x> [--analysis tran|ac|dc]
  export   --in <file> --out <file> [--format csv|json|msgpack] [--analysis tran|ac|dc]
  report   --in <file> [--json <summary.json>] [--pdf <summary.pdf>]
  batch    --in <dir> --out-dir <dir> [--concurrency N] [--progress]

Every command accepts --config <psfctl.yaml>.
`, version, buildDate)
}

type app struct {
	ctx       context.Context
	stdout    io.Writer
	stderr    io.Writer
	cfg       config
	log       zerolog.Logger
	closeLogs io.Closer
}

type commandFlags struct {
	fs     *flag.FlagSet
	config *string
	in     *string
}

func (a *app) newFlags(name, inHelp string) *commandFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return &commandFlags{
		fs:     fs,
		config: fs.String("config", "", "YAML config file"),
		in:     fs.String("in", "", inHelp),
	}
}

// parse parses the flags, then loads the config and sets up logging.
func (a *app) parse(cf *commandFlags, args []string) error {
	if err := cf.fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*cf.in) == "" {
		return fmt.Errorf("%w: %s requires --in", errUsage, cf.fs.Name())
	}
	cfg, err := loadConfig(*cf.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	closer, err := common.SetupLogging(cfg.Logs, a.stderr)
	if err != nil {
		return err
	}
	a.closeLogs = closer
	a.log = common.Logger("psfctl")
	return nil
}

func (a *app) decoder() *psf.Decoder {
	d := psf.NewDecoder()
	d.SetLogger(common.Logger("psf"))
	return d
}

// load reads and decodes one file.
func (a *app) load(path string) (common.Input, *psf.AST, error) {
	in, err := common.ReadInput(path)
	if err != nil {
		return common.Input{}, nil, err
	}
	ast, err := a.decoder().Decode(in.Data)
	if err != nil {
		return in, nil, fmt.Errorf("%s: %w", path, err)
	}
	a.log.Debug().Str("file", path).Str("compression", in.Compression).
		Int64("bytes", in.DecodedSize).Int("signals", len(ast.Leaves())).Msg("decoded")
	return in, ast, nil
}

// analysisKind picks the view for a file: the flag, then the file extension,
// then the config, then the name of the sweep variable.
func (a *app) analysisKind(flagValue, path string, ast *psf.AST) (analysis.Kind, error) {
	if flagValue != "" {
		return analysis.ParseKind(flagValue)
	}
	if k, ok := kindFromPath(path); ok {
		return k, nil
	}
	if a.cfg.Analysis != "" {
		return analysis.ParseKind(a.cfg.Analysis)
	}
	if sw, ok := ast.SweepVar(); ok {
		switch strings.ToLower(sw.Name) {
		case "time":
			return analysis.KindTransient, nil
		case "freq":
			return analysis.KindAC, nil
		}
	}
	return analysis.KindDC, nil
}

func kindFromPath(path string) (analysis.Kind, bool) {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".zst")
	switch filepath.Ext(name) {
	case ".tran":
		return analysis.KindTransient, true
	case ".ac":
		return analysis.KindAC, true
	case ".dc":
		return analysis.KindDC, true
	}
	return "", false
}

func (a *app) view(kindFlag, path string, ast *psf.AST) (analysis.View, error) {
	kind, err := a.analysisKind(kindFlag, path, ast)
	if err != nil {
		return nil, err
	}
	return analysis.FromBinary(kind, ast)
}

func (a *app) infoCmd(args []string) error {
	cf := a.newFlags("info", "input PSF file")
	if err := a.parse(cf, args); err != nil {
		return err
	}
	in, ast, err := a.load(*cf.in)
	if err != nil {
		return err
	}
	toc, err := psf.ScanTOC(in.Data)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "File:        %s\n", in.Path)
	fmt.Fprintf(a.stdout, "Size:        %s stored, %s decoded (%s)\n",
		common.FormatBytes(in.StoredSize), common.FormatBytes(in.DecodedSize), in.Compression)
	fmt.Fprintf(a.stdout, "SHA-256:     %s\n\n", in.Sha256)

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\tSTART\tEND\tBYTES")
	for _, k := range toc.Kinds() {
		r := toc[k]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", k, r.Start, r.End, r.Len())
	}
	w.Flush()

	fmt.Fprintln(a.stdout, "\nHeader:")
	keys := make([]string, 0, len(ast.Header))
	for k := range ast.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w = tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%s\n", k, ast.Header[k])
	}
	w.Flush()

	if sw, ok := ast.SweepVar(); ok {
		fmt.Fprintf(a.stdout, "\nSweep: %s (%d points)\n", sw.Name, ast.Values[sw.ID].Len())
	} else {
		fmt.Fprintln(a.stdout, "\nSweep: none")
	}

	fmt.Fprintln(a.stdout, "\nTraces:")
	for _, tr := range ast.Traces {
		if tr.Kind == psf.TraceKindGroup {
			fmt.Fprintf(a.stdout, "  %s/ (group %d, %d signals)\n", tr.Group.Name, tr.Group.ID, len(tr.Group.Signals))
			for _, s := range tr.Group.Signals {
				fmt.Fprintf(a.stdout, "    %s\n", describeSignal(ast, s))
			}
			continue
		}
		fmt.Fprintf(a.stdout, "  %s\n", describeSignal(ast, tr.Signal))
	}
	return nil
}

func describeSignal(ast *psf.AST, s psf.SignalRef) string {
	dt := "unknown"
	if t, ok := ast.DataTypeOf(s); ok {
		dt = t.String()
	}
	return fmt.Sprintf("%s [id %d, %s, %d samples]", s.Name, s.ID, dt, ast.Values[s.ID].Len())
}

func (a *app) signalsCmd(args []string) error {
	cf := a.newFlags("signals", "input PSF file")
	kindFlag := cf.fs.String("analysis", "", "analysis view: tran, ac or dc")
	if err := a.parse(cf, args); err != nil {
		return err
	}
	_, ast, err := a.load(*cf.in)
	if err != nil {
		return err
	}
	v, err := a.view(*kindFlag, *cf.in, ast)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSAMPLES")
	cols := v.Columns()
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	for _, c := range cols {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.Kind, c.Len())
	}
	return w.Flush()
}

func (a *app) sampleCmd(args []string) error {
	cf := a.newFlags("sample", "input PSF file")
	kindFlag := cf.fs.String("analysis", "", "analysis view: tran, ac or dc")
	name := cf.fs.String("signal", "", "signal name")
	at := cf.fs.String("at", "", "sweep value to sample at")
	if err := a.parse(cf, args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("%w: sample requires --signal", errUsage)
	}
	_, ast, err := a.load(*cf.in)
	if err != nil {
		return err
	}
	v, err := a.view(*kindFlag, *cf.in, ast)
	if err != nil {
		return err
	}
	x := 0.0
	if op, isOP := v.(*analysis.DC); !isOP || op.OP == nil {
		if *at == "" {
			return fmt.Errorf("%w: sample requires --at", errUsage)
		}
		x, err = strconv.ParseFloat(strings.TrimSpace(*at), 64)
		if err != nil {
			return fmt.Errorf("%w: --at: %v", errUsage, err)
		}
	}

	switch view := v.(type) {
	case *analysis.Transient:
		y, err := view.SampleAt(*name, x)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, formatFloat(y))
	case *analysis.AC:
		z, err := view.SampleAt(*name, x)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s %s\n", formatFloat(real(z)), formatFloat(imag(z)))
	case *analysis.DC:
		if view.OP != nil {
			y, ok := view.OP.Value(*name)
			if !ok {
				return fmt.Errorf("%w: %q", analysis.ErrMissingSignal, *name)
			}
			fmt.Fprintln(a.stdout, formatFloat(y))
			return nil
		}
		y, err := view.Sweep.SampleAt(*name, x)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, formatFloat(y))
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (a *app) exportCmd(args []string) error {
	cf := a.newFlags("export", "input PSF file")
	kindFlag := cf.fs.String("analysis", "", "analysis view: tran, ac or dc")
	out := cf.fs.String("out", "", "output file")
	formatFlag := cf.fs.String("format", "", "csv, json or msgpack (default from --out extension)")
	if err := a.parse(cf, args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: export requires --out", errUsage)
	}
	_, ast, err := a.load(*cf.in)
	if err != nil {
		return err
	}
	v, err := a.view(*kindFlag, *cf.in, ast)
	if err != nil {
		return err
	}
	def, err := export.ParseFormat(a.cfg.ExportFormat)
	if err != nil {
		return err
	}
	format := export.FormatForPath(*out, def)
	if *formatFlag != "" {
		if format, err = export.ParseFormat(*formatFlag); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	tbl, err := export.FromView(v)
	if err != nil {
		return err
	}
	if err := export.WriteFile(*out, format, tbl); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Wrote %s (%s, %d columns, %d rows)\n", *out, format, len(tbl.Columns), len(tbl.Rows))
	return nil
}

func (a *app) reportCmd(args []string) error {
	cf := a.newFlags("report", "input PSF file")
	jsonPath := cf.fs.String("json", "", "output summary JSON")
	pdfPath := cf.fs.String("pdf", "", "output summary PDF")
	if err := a.parse(cf, args); err != nil {
		return err
	}
	in, ast, err := a.load(*cf.in)
	if err != nil {
		return err
	}
	sum := report.BuildSummary(in, ast)
	if *jsonPath == "" && *pdfPath == "" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	if *jsonPath != "" {
		if err := report.SaveSummaryJSON(sum, *jsonPath); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		fmt.Fprintln(a.stdout, "Wrote summary:", *jsonPath)
	}
	if *pdfPath != "" {
		if err := report.SaveSummaryPDF(sum, *pdfPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		fmt.Fprintln(a.stdout, "Wrote PDF:", *pdfPath)
	}
	return nil
}

var batchExtensions = map[string]bool{".tran": true, ".ac": true, ".dc": true, ".psf": true}

// collectInputs lists PSF result files under dir, compressed or not, sorted.
func collectInputs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".zst")
		if batchExtensions[filepath.Ext(name)] {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// summaryName maps an input to <out-dir>/<relative path>.summary.json so
// that files with the same name in different directories do not collide.
func summaryName(inDir, outDir, path string) string {
	rel, err := filepath.Rel(inDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.Join(outDir, rel+".summary.json")
}

func (a *app) batchCmd(args []string) error {
	cf := a.newFlags("batch", "input directory")
	outDir := cf.fs.String("out-dir", "out", "results directory")
	concurrency := cf.fs.Int("concurrency", 0, "maximum files decoded at once (default from config)")
	progress := cf.fs.Bool("progress", false, "display decode progress updates")
	if err := a.parse(cf, args); err != nil {
		return err
	}
	limit := *concurrency
	if limit <= 0 {
		limit = a.cfg.Concurrency
	}

	paths, err := collectInputs(*cf.in)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(a.stdout, "No PSF files found in", *cf.in)
		return nil
	}

	metrics := common.NewMetrics()
	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}
	metrics.SetTotalBytes(total)
	dec := a.decoder()
	dec.SetMetrics(metrics)

	stopProgress := func() {}
	if *progress {
		stopProgress = common.StartProgressPrinter(a.stderr, metrics, 500*time.Millisecond)
	}
	metrics.Start()
	results, err := dec.DecodeFiles(a.ctx, paths, limit)
	metrics.Stop()
	stopProgress()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	manifest := report.NewManifest()
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tSIGNALS\tPOINTS\tDETAIL")
	for _, res := range results {
		rel, _ := filepath.Rel(*cf.in, res.Path)
		if res.Err == nil {
			sum := report.BuildSummary(res.Input, res.AST)
			out := summaryName(*cf.in, *outDir, res.Path)
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				res.Err = err
			} else if err := report.SaveSummaryJSON(sum, out); err != nil {
				res.Err = err
			} else {
				manifest.AddDecoded(sum, out)
				fmt.Fprintf(w, "%s\tok\t%d\t%d\t%s\n", rel, len(sum.Signals), sum.SweepPoints, out)
				continue
			}
		}
		manifest.AddFailed(res.Path, res.Input.StoredSize, res.Input.Sha256, res.Err)
		fmt.Fprintf(w, "%s\tFAILED\t-\t-\t%v\n", rel, res.Err)
	}
	w.Flush()
	manifestPath := filepath.Join(*outDir, "manifest.json")
	if err := report.SaveManifest(manifest, manifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	failed := manifest.Failed()

	snap := metrics.Snapshot()
	fmt.Fprintf(a.stdout, "\n%d decoded, %d failed, %s in %s\nManifest: %s\n",
		len(results)-failed, failed, common.FormatBytes(snap.Bytes), snap.Duration.Round(time.Millisecond), manifestPath)
	a.log.Info().Int("files", len(results)).Int("failed", failed).
		Int64("windows", snap.Windows).Int64("samples", snap.Samples).Msg("batch finished")
	if failed > 0 {
		return errBatchFailed
	}
	return nil
}
