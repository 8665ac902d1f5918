package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"dicomroi/internal/dicomsource"
	"dicomroi/internal/logging"
	"dicomroi/internal/models"
	"dicomroi/pkg/batch"
	"dicomroi/pkg/config"
	"dicomroi/pkg/display"
	"dicomroi/pkg/export"
	"dicomroi/pkg/session"
)

// roiList collects repeated -roi flags
type roiList []string

func (r *roiList) String() string { return strings.Join(*r, " ") }

func (r *roiList) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	// Parse command line arguments
	var roiFlags roiList
	inputDir := flag.String("input", "", "Directory containing DICOM images")
	configPath := flag.String("config", "", "YAML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	flag.Var(&roiFlags, "roi", "ROI as x,y[,r]; repeat for several ROIs")
	radius := flag.Int("radius", 25, "Radius for ROIs given without one")
	filter := flag.String("filter", "", "Only analyze images whose SliceLocation matches")
	fields := flag.String("fields", "", "Comma separated metadata fields merged into records")
	exportFields := flag.String("export", "", "Comma separated CSV columns")
	csvPath := flag.String("csv", "", "CSV output path (default: dicom_roi_analysis_<date>.csv)")
	previewDir := flag.String("preview-dir", "", "Directory to save ROI preview images")
	workers := flag.Int("workers", 1, "Number of images decoded in parallel")
	single := flag.Int("single", -1, "Analyze only the image at this index and print the result")
	zoom := flag.Int("zoom", display.DefaultZoom, "Preview zoom in percent (25-400)")
	rotation := flag.Int("rotation", 0, "Preview rotation in degrees")
	ww := flag.Float64("ww", 0, "Window width override for previews")
	wl := flag.Float64("wl", 0, "Window level override for previews")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	log := logging.NewLogger("dicomroi")

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Error("failed to write config", "path", *initConfig, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Configuration: file, then environment, then explicit flags
	config.LoadEnv()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["radius"] {
		cfg.Analysis.DefaultRadius = int32(*radius)
	}
	if set["filter"] {
		cfg.Analysis.SliceLocationFilter = *filter
	}
	if set["fields"] {
		cfg.Analysis.Fields = splitFields(*fields)
	}
	if set["export"] {
		cfg.Output.ExportFields = splitFields(*exportFields)
	}
	if set["csv"] {
		cfg.Output.CSVPath = *csvPath
	}
	if set["preview-dir"] {
		cfg.Output.PreviewDir = *previewDir
	}
	if set["workers"] {
		cfg.Analysis.Workers = *workers
	}
	if set["zoom"] {
		cfg.Display.Zoom = *zoom
	}
	if set["rotation"] {
		cfg.Display.Rotation = *rotation
	}
	if set["ww"] || set["wl"] {
		cfg.Display.Window = models.WindowLevel{Width: *ww, Center: *wl}
	}
	if set["verbose"] {
		cfg.Output.Verbose = *verbose
	}
	log.SetDebug(cfg.Output.Verbose)

	for _, s := range roiFlags {
		roi, err := config.ParseROI(s, cfg.Analysis.DefaultRadius)
		if err != nil {
			log.Error("invalid -roi", "value", s, "error", err)
			os.Exit(1)
		}
		cfg.Analysis.ROIs = append(cfg.Analysis.ROIs, roi)
	}

	for _, e := range cfg.Validate() {
		log.Warn("config corrected", "error", e)
	}

	if len(cfg.Analysis.ROIs) == 0 {
		log.Error("no ROIs given; use -roi x,y[,r] or analysis.rois in the config")
		os.Exit(1)
	}

	tagFields, unknown := models.TagFieldsFor(cfg.Analysis.Fields)
	for _, name := range unknown {
		log.Warn("unknown metadata field ignored", "field", name)
	}

	// Load images
	src, err := dicomsource.Scan(*inputDir, log)
	if err != nil {
		log.Error("failed to scan input", "dir", *inputDir, "error", err)
		os.Exit(1)
	}
	if src.Len() == 0 {
		log.Error("no DICOM images with pixel data found", "dir", *inputDir)
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("DICOM ROI ANALYZER")
	fmt.Println("================================")
	fmt.Printf("Images: %d\n", src.Len())
	for i, roi := range cfg.Analysis.ROIs {
		fmt.Printf("ROI #%d: %s\n", i+1, roi)
	}

	sess := session.New(src, log)
	for _, roi := range cfg.Analysis.ROIs {
		sess.AddROI(roi)
	}
	sess.SetZoom(cfg.Display.Zoom)
	sess.SetRotation(cfg.Display.Rotation)
	sess.ApplyRotationToAll()
	if cfg.Display.Window.Width > 0 {
		sess.SetWindow(cfg.Display.Window)
		sess.ApplyWindowToAll()
	}

	if *single >= 0 {
		if err := runSingle(sess, *single, tagFields, cfg.Output.PreviewDir); err != nil {
			log.Error("single image analysis failed", "index", *single, "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline := sess.Pipeline(batch.Params{
		SliceLocationFilter: cfg.Analysis.SliceLocationFilter,
		Fields:              tagFields,
		Workers:             cfg.Analysis.Workers,
		SkipYieldEvery:      cfg.Analysis.SkipYieldEvery,
		Logger:              log,
		OnProgress: func(p batch.Progress) {
			fmt.Printf("\rAnalyzing: %.1f%% complete", p.Fraction()*100)
		},
	})

	startTime := time.Now()
	results, runErr := pipeline.Run(ctx)
	fmt.Println() // New line after progress
	if runErr != nil && pipeline.State() != batch.Aborted {
		log.Error("analysis failed", "error", runErr)
		os.Exit(1)
	}

	summary := pipeline.Summary()
	fmt.Printf("\nAnalysis %s in %.2f seconds (run %s)\n", pipeline.State(), time.Since(startTime).Seconds(), pipeline.RunID())
	fmt.Printf("- Processed: %d\n", summary.Processed)
	fmt.Printf("- Filtered:  %d\n", summary.Filtered)
	fmt.Printf("- Skipped:   %d\n", summary.Failed)
	if summary.Unreliable > 0 {
		fmt.Printf("- Unreliable decoding: %d\n", summary.Unreliable)
	}
	for _, s := range summary.Skipped {
		fmt.Printf("  %v\n", s)
	}

	if results.Len() == 0 {
		fmt.Println("No results to export.")
		return
	}

	columns := cfg.Output.ExportFields
	if len(columns) == 0 {
		columns = export.DefaultSelection(pipeline.AvailableFields())
	}
	outPath := cfg.Output.CSVPath
	if outPath == "" {
		outPath = export.DefaultFileName(time.Now())
	}
	if err := export.WriteCSVFile(outPath, results.Records, columns); err != nil {
		log.Error("export failed", "path", outPath, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Results saved to: %s (%d rows)\n", outPath, results.Len())
	log.Debug("available fields", "fields", strings.Join(export.SortFields(pipeline.AvailableFields()), ","))

	fmt.Println("\nPer-ROI summary:")
	fmt.Print(export.FormatSummary(export.Summarize(results.Records)))

	if cfg.Output.PreviewDir != "" {
		fmt.Printf("\nSaving previews to: %s\n", cfg.Output.PreviewDir)
		savePreviews(sess, results, cfg.Output.PreviewDir, log)
	}

	if pipeline.State() == batch.Aborted {
		os.Exit(130)
	}
}

// runSingle analyzes one image and prints its multi-ROI result
func runSingle(sess *session.Session, index int, fields []models.TagField, previewDir string) error {
	img, err := sess.Load(index)
	if err != nil {
		return err
	}
	records, err := sess.AnalyzeCurrent(fields)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(export.FormatSingle(records))

	if previewDir != "" {
		return savePreview(sess, img.Entry.Name, previewDir)
	}
	return nil
}

// savePreviews renders one preview per image that produced records
func savePreviews(sess *session.Session, results *models.BatchResultSet, dir string, log *logging.Logger) {
	analyzed := make(map[string]bool)
	for _, rec := range results.Records {
		if v, ok := rec.Get(models.FieldFileName); ok {
			analyzed[v.Str] = true
		}
	}

	for i := 0; i < sess.Len(); i++ {
		img, err := sess.Load(i)
		if err != nil {
			log.Warn("failed to load preview image", "index", i, "error", err)
			continue
		}
		if !analyzed[img.Entry.Name] {
			continue
		}
		if err := savePreview(sess, img.Entry.Name, dir); err != nil {
			log.Warn("failed to save preview", "name", img.Entry.Name, "error", err)
		}
	}
}

func savePreview(sess *session.Session, name, dir string) error {
	canvas, err := sess.Render()
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return display.SavePreview(canvas, filepath.Join(dir, base+".png"))
}

func splitFields(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
