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

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"sliceflatmap/internal/logger"
	"sliceflatmap/internal/models"
	"sliceflatmap/pkg/composite"
	"sliceflatmap/pkg/config"
	"sliceflatmap/pkg/flatmap"
	"sliceflatmap/pkg/sampling"
	"sliceflatmap/pkg/visualization"
	"sliceflatmap/pkg/volumeio"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "sliceflatmap.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	inputDir := flag.String("input", "", "Directory containing label slices (single-region mode)")
	outputDir := flag.String("output", "", "Directory for rendered flatmaps (overrides config)")
	channels := flag.String("channels", "", "Comma-separated channel rules to render (overrides config)")
	pointsIn := flag.String("points", "", "CSV of world points to map onto the flatmap")
	pointsOut := flag.String("points-out", "mapped_points.csv", "CSV receiving mapped points, relative to the output directory")
	numCores := flag.Int("cores", 0, "Number of slices processed concurrently (overrides config)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *channels != "" {
		cfg.Output.Channels = strings.Split(*channels, ",")
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *inputDir == "" && len(cfg.Composite.Regions) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	level := cfg.Output.LogLevel
	if cfg.Processing.Verbose && (level == "" || level == "info") {
		level = "debug"
	}
	log := logger.New(os.Stderr, level, cfg.Output.Console)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &runner{cfg: cfg, log: log, pointsIn: *pointsIn, pointsOut: *pointsOut}
	start := time.Now()
	if *inputDir != "" {
		err = r.runSingle(ctx, *inputDir)
	} else {
		err = r.runComposite(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("flatmap failed")
	}
	log.Info().Dur("elapsed", time.Since(start)).Str("output", cfg.Output.Dir).Msg("done")
}

// target is what the runner renders and maps through: one pipeline or a compositor
type target interface {
	render(ctx context.Context, rule flatmap.Rule, suppress ...uint32) (*flatmap.Raster, error)
	MapPoints(ctx context.Context, points [][3]float64) ([]flatmap.Mapping, error)
}

type pipelineTarget struct{ *flatmap.Pipeline }

func (p pipelineTarget) render(ctx context.Context, rule flatmap.Rule, suppress ...uint32) (*flatmap.Raster, error) {
	return p.Rasterize(ctx, rule, suppress...)
}

type compositeTarget struct{ *composite.Compositor }

func (c compositeTarget) render(ctx context.Context, rule flatmap.Rule, suppress ...uint32) (*flatmap.Raster, error) {
	return c.Compose(ctx, rule, suppress...)
}

type runner struct {
	cfg       *config.Config
	log       zerolog.Logger
	pointsIn  string
	pointsOut string

	// intensity is loaded once and shared by every region
	intensity *models.IntensityVolume
}

// params builds pipeline parameters for a label directory, loading the intensity
// volume when one is configured.
func (r *runner) params(dir string, voxelSize, origin [3]float64) (*flatmap.Params, error) {
	cfg := r.cfg
	labels, err := volumeio.LoadLabels(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load labels from %s", dir)
	}
	r.log.Info().
		Str("dir", dir).
		Str("voxels", humanize.Comma(int64(len(labels.Data)))).
		Int("slices", labels.Slices).
		Int("labels", len(labels.Labels())).
		Msg("label volume loaded")

	p := &flatmap.Params{
		Volume:                 labels,
		Affine:                 sampling.ScaleOrigin(voxelSize, origin),
		Incision:               cfg.Landmarks.Incision,
		Origin:                 cfg.Landmarks.Origin,
		Connectivity:           cfg.Processing.Connectivity,
		OffsetSign:             cfg.Processing.OffsetSign,
		NumCores:               cfg.Processing.NumCores,
		Verbose:                cfg.Processing.Verbose,
		RequireMatchingExtents: cfg.Intensity.RequireMatchingExtents,
		Logger:                 &r.log,
	}
	if cfg.Intensity.InputDir != "" {
		if r.intensity == nil {
			r.intensity, err = volumeio.LoadIntensity(cfg.Intensity.InputDir)
			if err != nil {
				return nil, errors.Wrap(err, "failed to load intensity volume")
			}
		}
		p.Intensity = r.intensity
		p.IntensityAffine = sampling.ScaleOrigin(cfg.Intensity.VoxelSize, cfg.Intensity.Origin)
	}
	return p, nil
}

func (r *runner) runSingle(ctx context.Context, dir string) error {
	params, err := r.params(dir, r.cfg.Volume.VoxelSize, r.cfg.Volume.Origin)
	if err != nil {
		return err
	}
	p, err := flatmap.Build(ctx, params)
	if err != nil {
		return err
	}
	b, err := p.Bounds()
	if err != nil {
		return err
	}
	r.log.Info().Int("rows", b.Rows()).Int("cols", b.Cols()).Msg("flatmap bounds")
	return r.emit(ctx, pipelineTarget{p})
}

func (r *runner) runComposite(ctx context.Context) error {
	var specs []composite.RegionSpec
	for _, reg := range r.cfg.Composite.Regions {
		params, err := r.params(reg.InputDir, reg.VoxelSize, reg.Origin)
		if err != nil {
			return errors.Wrapf(err, "region %s", reg.Name)
		}
		specs = append(specs, composite.RegionSpec{
			Name:       reg.Name,
			Params:     params,
			RowOffset:  reg.RowOffset,
			SliceShift: reg.SliceShift,
		})
	}

	c, err := composite.Build(ctx, specs[0], specs[1:], r.cfg.Composite.Padding, r.log)
	if err != nil {
		return err
	}
	layout, err := c.Layout()
	if err != nil {
		return err
	}
	r.log.Info().
		Int("rows", layout.Rows).
		Int("cols", layout.Cols).
		Str("reference", layout.Reference).
		Msg("composite layout")
	return r.emit(ctx, compositeTarget{c})
}

// emit renders every configured channel and maps the query points, if any.
func (r *runner) emit(ctx context.Context, t target) error {
	out := r.cfg.Output.Dir
	if err := os.MkdirAll(out, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	for _, name := range r.cfg.Output.Channels {
		rule, err := flatmap.RuleByName(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		raster, err := t.render(ctx, rule, r.cfg.Landmarks.Suppress...)
		if err != nil {
			return errors.Wrapf(err, "channel %s", rule.Name())
		}
		paths, err := visualization.NewViewer(raster, rule.Name()).SaveChannels(out)
		if err != nil {
			return errors.Wrapf(err, "failed to save channel %s", rule.Name())
		}
		r.log.Info().Str("channel", rule.Name()).Strs("files", paths).Msg("channel saved")
	}

	if r.pointsIn == "" {
		return nil
	}
	f, err := os.Open(r.pointsIn)
	if err != nil {
		return err
	}
	points, err := volumeio.ReadPoints(f)
	f.Close()
	if err != nil {
		return err
	}
	mappings, err := t.MapPoints(ctx, points)
	if err != nil {
		return err
	}

	path := r.pointsOut
	if !filepath.IsAbs(path) {
		path = filepath.Join(out, path)
	}
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := volumeio.WritePoints(w, points, mappings); err != nil {
		w.Close()
		return err
	}
	r.log.Info().Str("points", humanize.Comma(int64(len(points)))).Str("file", path).Msg("points written")
	return w.Close()
}
