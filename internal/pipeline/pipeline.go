package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ironsheep/objcount-mcp/internal/config"
	"github.com/ironsheep/objcount-mcp/internal/detection"
	"github.com/ironsheep/objcount-mcp/internal/imaging"
	"github.com/ironsheep/objcount-mcp/internal/logger"
)

// Config holds the settings a Pipeline runs with.
type Config struct {
	// Backend is the registered detector backend name.
	Backend string

	// Params are the scan and grouping parameters.
	Params detection.Params

	// ScanSource selects the raster the detector scans: config.ScanNormalized
	// (equalized luma) or config.ScanRaw (the decoded image as-is).
	ScanSource string

	// CacheModels keeps loaded models between calls.
	CacheModels bool

	// Decode tunes image decoding.
	Decode imaging.DecodeOptions

	// Timeout bounds one call. Zero means no deadline.
	Timeout time.Duration
}

// DefaultConfig returns the reference settings with the model cache on.
func DefaultConfig() Config {
	return FromConfig(config.Default())
}

// FromConfig maps the runtime configuration onto pipeline settings.
func FromConfig(c *config.Config) Config {
	p := detection.DefaultParams()
	p.ScaleFactor = c.Detector.ScaleFactor
	p.MinNeighbors = c.Detector.MinNeighbors
	p.MinSize = c.Detector.MinSize
	p.MaxSize = c.Detector.MaxSize
	p.ShiftFactor = c.Detector.ShiftFactor

	return Config{
		Backend:     c.Detector.Backend,
		Params:      p,
		ScanSource:  c.Detector.ScanSource,
		CacheModels: c.Cache.Enabled,
		Decode: imaging.DecodeOptions{
			MaxDimension: c.Decode.MaxDimension,
			ForceColor:   c.Decode.ForceColor,
		},
		Timeout: c.Timeout,
	}
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithLoader overrides the backend named in Config.
func WithLoader(l detection.Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// Pipeline decodes, normalizes and scans images for one configured backend.
// It is safe for concurrent use; the model cache is the only shared state.
type Pipeline struct {
	cfg    Config
	loader detection.Loader
	cache  *detection.ModelCache
	log    *logger.Logger
}

// New validates cfg and builds a Pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		p.log = logger.New(os.Stderr, logger.LevelInfo)
	}
	if p.loader == nil {
		l, err := detection.Lookup(cfg.Backend)
		if err != nil {
			return nil, err
		}
		p.loader = l
	}

	switch cfg.ScanSource {
	case config.ScanNormalized, config.ScanRaw:
	case "":
		p.cfg.ScanSource = config.ScanNormalized
	default:
		return nil, fmt.Errorf("invalid scan source %q", cfg.ScanSource)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector parameters: %w", err)
	}

	if cfg.CacheModels {
		p.cache = detection.NewModelCache(p.loader)
	}
	return p, nil
}

// Config returns the effective settings.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Backend returns the loader name in use.
func (p *Pipeline) Backend() string {
	return p.loader.Name()
}

// Close releases cached models.
func (p *Pipeline) Close() {
	if p.cache != nil {
		p.cache.Clear()
	}
}

// Result is the outcome of one Run: a count with its regions, or the stage
// and error that stopped it.
type Result struct {
	Count   int64              `json:"count"`
	Regions []detection.Region `json:"regions"`

	// Width and Height are the decoded source dimensions. Regions are in
	// source coordinates even when decoding downscaled the image.
	Width  int `json:"width"`
	Height int `json:"height"`

	// ScanSource is the raster the detector scanned.
	ScanSource string `json:"scan_source"`

	Stage Stage `json:"-"`
	Err   error `json:"-"`
}

// OK reports whether the run succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

func failed(stage Stage, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return Result{Stage: stage, Err: &Error{Stage: stage, Err: err}}
}

// DecodeHex converts hexadecimal image text to bytes. Upper and lower case
// digits are accepted; odd length or any other character wraps
// ErrMalformedInput.
func DecodeHex(s string) ([]byte, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return data, nil
}

// Run counts the objects in a hex-encoded image. Failures are returned in the
// Result, tagged with their stage; nothing is logged above debug level.
func (p *Pipeline) Run(ctx context.Context, imageHex, modelPath string) Result {
	data, err := DecodeHex(imageHex)
	if err != nil {
		return failed(StageHex, err)
	}
	return p.RunBytes(ctx, data, modelPath)
}

// RunBytes counts the objects in an encoded image.
func (p *Pipeline) RunBytes(ctx context.Context, data []byte, modelPath string) Result {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	raster, err := imaging.DecodeWithOptions(data, p.cfg.Decode)
	if err != nil {
		return failed(StageDecode, err)
	}

	normalized, err := imaging.Normalize(raster)
	if err != nil {
		return failed(StagePreprocess, err)
	}

	scan := normalized
	if p.cfg.ScanSource == config.ScanRaw {
		// Normalize still ran above; its output is unused in raw mode.
		scan = raster
	}

	model, release, err := p.model(modelPath)
	if err != nil {
		return failed(StageLoadModel, err)
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return failed(StageLoadModel, err)
	}

	start := time.Now()
	regions, err := detection.Detect(ctx, model, scan, p.cfg.Params)
	if err != nil {
		return failed(StageDetect, err)
	}
	p.log.Debug("%s: %d region(s) in %dx%d %s raster (%s)",
		modelPath, len(regions), scan.Width, scan.Height, p.cfg.ScanSource, time.Since(start))

	if raster.Scale != 1 {
		for i := range regions {
			regions[i] = regions[i].Scaled(raster.Scale)
		}
	}

	return Result{
		Count:      int64(len(regions)),
		Regions:    regions,
		Width:      int(float64(raster.Width)*raster.Scale + 0.5),
		Height:     int(float64(raster.Height)*raster.Scale + 0.5),
		ScanSource: p.cfg.ScanSource,
	}
}

// model returns the model for path and a release func to call when done.
func (p *Pipeline) model(path string) (detection.Model, func(), error) {
	if p.cache != nil {
		return p.cache.Get(path)
	}

	m, err := detection.LoadModel(p.loader, path)
	if err != nil {
		return nil, nil, err
	}
	return m, func() { m.Close() }, nil
}

// Normalize decodes hex image text and returns the equalized luma raster the
// detector scans by default.
func (p *Pipeline) Normalize(imageHex string) (*imaging.Raster, error) {
	data, err := DecodeHex(imageHex)
	if err != nil {
		return nil, &Error{Stage: StageHex, Err: err}
	}
	raster, err := imaging.DecodeWithOptions(data, p.cfg.Decode)
	if err != nil {
		return nil, &Error{Stage: StageDecode, Err: err}
	}
	normalized, err := imaging.Normalize(raster)
	if err != nil {
		return nil, &Error{Stage: StagePreprocess, Err: err}
	}
	return normalized, nil
}

// CountObjects returns the number of objects in a hex-encoded image.
//
// Every data failure (bad hex, undecodable image, unsupported layout, bad
// model, detector error, timeout) yields 0 and exactly one error log entry
// naming the stage, the model path and the input size.
func (p *Pipeline) CountObjects(ctx context.Context, imageHex, modelPath string) int64 {
	res := p.Run(ctx, imageHex, modelPath)
	if res.Err != nil {
		p.log.Error("count_objects failed (%s) model=%q input=%d hex chars: %v",
			Kind(res.Err), modelPath, len(imageHex), res.Err)
		return 0
	}
	return res.Count
}

// Call is the host call site: exactly two string arguments, the image as hex
// text and the model path.
//
// Any other arity or argument type returns an error wrapping
// ErrCallerContract before the pipeline runs. Data problems never produce an
// error here; they yield a zero count (see CountObjects).
func (p *Pipeline) Call(ctx context.Context, args ...interface{}) (int64, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("%w: expected 2 string arguments (image hex, model path), got %d", ErrCallerContract, len(args))
	}
	imageHex, ok := args[0].(string)
	if !ok {
		return 0, fmt.Errorf("%w: argument 1 (image hex) must be a string, got %T", ErrCallerContract, args[0])
	}
	modelPath, ok := args[1].(string)
	if !ok {
		return 0, fmt.Errorf("%w: argument 2 (model path) must be a string, got %T", ErrCallerContract, args[1])
	}
	return p.CountObjects(ctx, imageHex, modelPath), nil
}
