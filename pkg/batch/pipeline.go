package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"dicomroi/internal/logging"
	"dicomroi/internal/models"
	"dicomroi/pkg/pixel"
	"dicomroi/pkg/roistats"
)

// DefaultSkipYieldEvery is the number of consecutive skipped images after
// which a run yields to the scheduler
const DefaultSkipYieldEvery = 64

// State is the lifecycle state of a Pipeline
type State int

const (
	Idle State = iota
	Running
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Entry is one image of a batch.
type Entry struct {
	// Name is the source file name written to the FileName field
	Name string

	// Descriptor describes the sample layout. When nil it is derived from
	// Metadata.
	Descriptor *models.ImageDescriptor

	// Raw holds the undecoded pixel bytes
	Raw []byte

	// PixelOffset is the byte offset of the first sample within Raw
	PixelOffset int

	// Metadata is the read side of the external decoder
	Metadata models.MetadataLookup
}

// Source yields batch entries by index. File-backed sources load lazily so
// only one pixel buffer needs to be resident at a time.
type Source interface {
	Len() int
	Entry(index int) (Entry, error)
}

// Entries adapts an in-memory slice to Source
type Entries []Entry

func (e Entries) Len() int { return len(e) }

func (e Entries) Entry(index int) (Entry, error) {
	if index < 0 || index >= len(e) {
		return Entry{}, fmt.Errorf("entry index %d out of range [0, %d)", index, len(e))
	}
	return e[index], nil
}

// Progress counts computed (image, ROI) pairs
type Progress struct {
	Completed int
	Total     int
}

// Fraction returns progress in [0, 1]. An empty run reports 1.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// Params holds the batch configuration.
type Params struct {
	// ROIs are evaluated on every image in list order
	ROIs []models.ROI

	// SliceLocationFilter restricts the batch to matching images. Empty
	// disables filtering.
	SliceLocationFilter string

	// Fields are the metadata elements merged into every record
	Fields []models.TagField

	// Workers enables parallel decoding in Run when greater than 1
	Workers int

	// SkipYieldEvery controls how often a run of skipped images yields
	SkipYieldEvery int

	// OnProgress is called after every ROI and after every skipped image
	OnProgress func(Progress)

	Logger *logging.Logger
}

// Summary counts the outcome of a run
type Summary struct {
	Images     int
	Processed  int
	Filtered   int
	Failed     int
	Unreliable int
	Skipped    []*ImageSkippedError
}

// StepResult describes the image handled by one Step call
type StepResult struct {
	Index    int
	Name     string
	Records  []*models.AnalysisRecord
	Filtered bool
	Err      *ImageSkippedError
	Progress Progress
	Done     bool
}

// Pipeline runs the multi-ROI analysis over a batch of images.
//
// Records are emitted in image-major, ROI-minor order regardless of the
// number of workers.
type Pipeline struct {
	params *Params
	source Source
	log    *logging.Logger

	state    State
	runID    uuid.UUID
	next     int
	progress Progress
	skipRun  int

	results   models.BatchResultSet
	available *models.FieldSet
	summary   Summary
}

// NewPipeline creates an idle pipeline over source
func NewPipeline(source Source, params *Params) *Pipeline {
	log := params.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Pipeline{
		params:    params,
		source:    source,
		log:       log.With("batch"),
		available: models.NewFieldSet(models.CoreFields...),
	}
}

// State returns the current lifecycle state
func (p *Pipeline) State() State { return p.state }

// RunID identifies the current or last run
func (p *Pipeline) RunID() uuid.UUID { return p.runID }

// Progress returns the current progress counters
func (p *Pipeline) Progress() Progress { return p.progress }

// Results returns the records accumulated by the current or last run
func (p *Pipeline) Results() *models.BatchResultSet { return &p.results }

// AvailableFields lists every field name seen in any record of the run
func (p *Pipeline) AvailableFields() *models.FieldSet { return p.available }

// Summary returns the outcome counters of the current or last run
func (p *Pipeline) Summary() Summary { return p.summary }

// Start resets the pipeline and enters the Running state. The result set
// from any previous run is cleared.
func (p *Pipeline) Start() error {
	if len(p.params.ROIs) == 0 {
		return ErrNoROIs
	}

	images := p.source.Len()
	p.state = Running
	p.runID = uuid.New()
	p.next = 0
	p.skipRun = 0
	p.progress = Progress{Total: images * len(p.params.ROIs)}
	p.results.Reset()
	p.available = models.NewFieldSet(models.CoreFields...)
	p.summary = Summary{Images: images}

	p.log.Info("batch started",
		"run_id", p.runID.String(),
		"images", images,
		"rois", len(p.params.ROIs),
		"filter", p.params.SliceLocationFilter)
	return nil
}

// Step processes the next image. It starts the run when the pipeline is
// idle and returns Done once every image has been handled. Cancellation of
// ctx aborts the run with partial results retained.
func (p *Pipeline) Step(ctx context.Context) (StepResult, error) {
	switch p.state {
	case Idle:
		if err := p.Start(); err != nil {
			return StepResult{}, err
		}
	case Completed, Aborted:
		return StepResult{Done: true, Progress: p.progress}, nil
	}

	if err := ctx.Err(); err != nil {
		p.abort(err)
		return StepResult{Progress: p.progress}, err
	}

	if p.next >= p.source.Len() {
		p.finish()
		return StepResult{Done: true, Progress: p.progress}, nil
	}

	index := p.next
	p.next++

	out := p.analyze(index, p.reportROI)
	res := p.apply(out)

	if p.next >= p.source.Len() {
		p.finish()
		res.Done = true
	}
	return res, nil
}

// Run processes the whole batch and returns the result set. A finished
// pipeline starts a fresh run. On cancellation the partial result set is
// returned together with the context error.
func (p *Pipeline) Run(ctx context.Context) (*models.BatchResultSet, error) {
	if p.state != Running {
		if err := p.Start(); err != nil {
			return &p.results, err
		}
	}
	if p.params.Workers > 1 {
		return p.runParallel(ctx)
	}

	for {
		res, err := p.Step(ctx)
		if err != nil {
			return &p.results, err
		}
		if res.Done {
			return &p.results, nil
		}
		if res.Err == nil && !res.Filtered {
			runtime.Gosched()
		}
	}
}

// runParallel decodes windows of Workers images concurrently and merges
// each window back in index order.
func (p *Pipeline) runParallel(ctx context.Context) (*models.BatchResultSet, error) {
	total := p.source.Len()
	workers := p.params.Workers

	for p.next < total {
		if err := ctx.Err(); err != nil {
			p.abort(err)
			return &p.results, err
		}

		start := p.next
		end := min(start+workers, total)
		outcomes := make([]imageOutcome, end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				outcomes[index-start] = p.analyze(index, nil)
			}(i)
		}
		wg.Wait()

		for _, out := range outcomes {
			if out.err == nil && !out.filtered {
				for range out.records {
					p.reportROI()
				}
			}
			p.apply(out)
		}
		p.next = end
	}

	p.finish()
	return &p.results, nil
}

// imageOutcome is the result of analyzing one image, before it is merged
// into the run state
type imageOutcome struct {
	index      int
	name       string
	records    []*models.AnalysisRecord
	filtered   bool
	unreliable bool
	err        *ImageSkippedError
}

// analyze loads, decodes and measures one image. onROI is called after
// every computed ROI. It touches no pipeline state.
func (p *Pipeline) analyze(index int, onROI func()) imageOutcome {
	out := imageOutcome{index: index}

	entry, err := p.source.Entry(index)
	if err != nil {
		out.err = &ImageSkippedError{Index: index, Reason: ReasonSource, Cause: err}
		return out
	}
	out.name = entry.Name

	if p.params.SliceLocationFilter != "" {
		loc := ""
		if entry.Metadata != nil {
			loc, _ = entry.Metadata.Lookup(models.KeySliceLocation)
		}
		if !MatchSliceLocation(p.params.SliceLocationFilter, loc) {
			out.filtered = true
			return out
		}
	}

	records, unreliable, skip := analyzeEntry(entry, p.params.ROIs, p.params.Fields, onROI)
	if skip != nil {
		skip.Index = index
		out.err = skip
		return out
	}
	out.records = records
	out.unreliable = unreliable
	return out
}

// apply merges one outcome into the run state
func (p *Pipeline) apply(out imageOutcome) StepResult {
	res := StepResult{Index: out.index, Name: out.name}

	switch {
	case out.err != nil:
		p.summary.Failed++
		p.summary.Skipped = append(p.summary.Skipped, out.err)
		p.log.Warn("image skipped",
			"run_id", p.runID.String(),
			"index", out.index,
			"name", out.name,
			"reason", string(out.err.Reason),
			"error", out.err.Cause)
		p.skip()
		res.Err = out.err

	case out.filtered:
		p.summary.Filtered++
		p.log.Debug("image filtered", "index", out.index, "name", out.name)
		p.skip()
		res.Filtered = true

	default:
		p.skipRun = 0
		p.summary.Processed++
		if out.unreliable {
			p.summary.Unreliable++
			p.log.Warn("decoding may be unreliable",
				"index", out.index,
				"name", out.name)
		}
		for _, rec := range out.records {
			for _, k := range rec.Keys() {
				p.available.Add(k)
			}
		}
		p.results.Append(out.records...)
		res.Records = out.records
	}

	res.Progress = p.progress
	return res
}

// skip advances progress by a whole image and yields every
// SkipYieldEvery consecutive skips
func (p *Pipeline) skip() {
	p.progress.Completed += len(p.params.ROIs)
	p.notify()

	every := p.params.SkipYieldEvery
	if every <= 0 {
		every = DefaultSkipYieldEvery
	}
	p.skipRun++
	if p.skipRun%every == 0 {
		runtime.Gosched()
	}
}

func (p *Pipeline) reportROI() {
	p.progress.Completed++
	p.notify()
}

func (p *Pipeline) notify() {
	if p.params.OnProgress != nil {
		p.params.OnProgress(p.progress)
	}
}

func (p *Pipeline) finish() {
	p.state = Completed
	p.log.Info("batch completed",
		"run_id", p.runID.String(),
		"processed", p.summary.Processed,
		"filtered", p.summary.Filtered,
		"failed", p.summary.Failed,
		"records", p.results.Len())
}

func (p *Pipeline) abort(err error) {
	p.state = Aborted
	p.log.Warn("batch aborted",
		"run_id", p.runID.String(),
		"completed", p.progress.Completed,
		"total", p.progress.Total,
		"error", err)
}

// AnalyzeSingle computes the multi-ROI records of one image. It is the
// single-image variant of the batch run and returns the skip error directly.
func AnalyzeSingle(entry Entry, rois []models.ROI, fields []models.TagField) ([]*models.AnalysisRecord, error) {
	if len(rois) == 0 {
		return nil, ErrNoROIs
	}
	records, _, skip := analyzeEntry(entry, rois, fields, nil)
	if skip != nil {
		return nil, skip
	}
	return records, nil
}

// DecodeEntry resolves the descriptor of entry and decodes its samples.
// Failures are returned as *ImageSkippedError.
func DecodeEntry(entry Entry) (*models.IntensityGrid, error) {
	grid, skip := decodeEntry(entry)
	if skip != nil {
		return nil, skip
	}
	return grid, nil
}

func decodeEntry(entry Entry) (*models.IntensityGrid, *ImageSkippedError) {
	fail := func(reason SkipReason, err error) (*models.IntensityGrid, *ImageSkippedError) {
		return nil, &ImageSkippedError{Name: entry.Name, Reason: reason, Cause: err}
	}

	var desc models.ImageDescriptor
	switch {
	case entry.Descriptor != nil:
		desc = *entry.Descriptor
	case entry.Metadata != nil:
		d, err := pixel.DescriptorFromMetadata(entry.Metadata)
		if err != nil {
			return fail(ReasonMetadata, err)
		}
		desc = d
	default:
		return fail(ReasonMetadata, pixel.ErrMissingMetadata)
	}

	if err := desc.Validate(); err != nil {
		return fail(ReasonGeometry, err)
	}

	grid, err := pixel.Decode(entry.Raw, desc, entry.PixelOffset)
	if err != nil {
		return fail(ReasonDecode, err)
	}
	return grid, nil
}

// DecodeWarning returns a non-empty message when the transfer syntax of
// entry is outside the uncompressed allowlist
func DecodeWarning(entry Entry) string {
	if entry.Metadata == nil {
		return ""
	}
	if uid, reliable := pixel.TransferSyntaxOf(entry.Metadata); !reliable {
		return fmt.Sprintf("unsupported transfer syntax %s", uid)
	}
	return ""
}

// analyzeEntry decodes entry and builds one record per ROI
func analyzeEntry(entry Entry, rois []models.ROI, fields []models.TagField, onROI func()) ([]*models.AnalysisRecord, bool, *ImageSkippedError) {
	grid, skip := decodeEntry(entry)
	if skip != nil {
		return nil, false, skip
	}

	whole, err := roistats.ComputeWhole(grid)
	if err != nil {
		return nil, false, &ImageSkippedError{Name: entry.Name, Reason: ReasonGeometry, Cause: err}
	}

	warning := DecodeWarning(entry)

	records := make([]*models.AnalysisRecord, 0, len(rois))
	for i, roi := range rois {
		stat := roistats.ComputeROI(grid, roi)

		rec := models.NewAnalysisRecord()
		rec.Set(models.FieldFileName, models.String(entry.Name))
		rec.Set(models.FieldROIID, models.Int(int64(i+1)))
		rec.Set(models.FieldROIMean, models.Float(stat.Mean))
		rec.Set(models.FieldROINoiseSD, models.Float(stat.SD))
		rec.Set(models.FieldFullImageMean, models.Float(whole.Mean))
		rec.Set(models.FieldFullImageSD, models.Float(whole.SD))
		rec.Set(models.FieldROIX, models.Int(int64(roi.CenterX)))
		rec.Set(models.FieldROIY, models.Int(int64(roi.CenterY)))
		rec.Set(models.FieldROIR, models.Int(int64(roi.Radius)))

		if entry.Metadata != nil {
			for _, f := range fields {
				if v, ok := entry.Metadata.Lookup(f.Key); ok {
					rec.Set(f.Name, models.String(v))
				}
			}
		}
		if warning != "" {
			rec.Set(models.FieldDecodeWarning, models.String(warning))
		}

		records = append(records, rec)
		if onROI != nil {
			onROI()
		}
	}

	return records, warning != "", nil
}
