package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/core/usecases"
	"github.com/samirrijal/geomeasure/internal/pkg/geospatial"
	"github.com/samirrijal/geomeasure/internal/pkg/readout"
)

type Options struct {
	Input  string `short:"i" long:"in" description:"Points file (YAML or JSON). Reads from stdin if empty"`
	Output string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"text" choice:"json" choice:"yaml" default:"text"`
	Kind   string `short:"k" long:"kind" description:"Override the annotation kind of the file" choice:"marker" choice:"distance" choice:"field"`
}

// Track is the input document: a kind and its vertices in capture order.
// JSON input parses as YAML.
type Track struct {
	Kind   string            `yaml:"kind"`
	Points []domain.GeoPoint `yaml:"points"`
}

// Report is the measured result of a track.
type Report struct {
	Kind        domain.AnnotationKind `json:"kind" yaml:"kind"`
	Points      []string              `json:"points" yaml:"points"`
	Measurement *domain.Measurement   `json:"measurement,omitempty" yaml:"measurement,omitempty"`
	Perimeter   *domain.Measurement   `json:"perimeter,omitempty" yaml:"perimeter,omitempty"`
	Bounds      *domain.Bounds        `json:"bounds,omitempty" yaml:"bounds,omitempty"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	var inputData []byte
	var err error
	if opts.Input != "" {
		inputData, err = os.ReadFile(opts.Input)
	} else {
		inputData, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	track, err := parseTrack(inputData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if opts.Kind != "" {
		track.Kind = opts.Kind
	}

	report, err := measure(track)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outputData, err := render(report, opts.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling report: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, outputData, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Measured %d points to %s (format: %s)\n", len(track.Points), opts.Output, opts.Format)
		return
	}
	fmt.Print(string(outputData))
}

func parseTrack(data []byte) (*Track, error) {
	var track Track
	if err := yaml.Unmarshal(data, &track); err != nil {
		return nil, fmt.Errorf("parse points file: %w", err)
	}
	if track.Kind == "" {
		track.Kind = string(domain.KindDistance)
	}
	return &track, nil
}

func measure(track *Track) (*Report, error) {
	kind, err := domain.ParseAnnotationKind(track.Kind)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePoints(track.Points); err != nil {
		return nil, err
	}

	m, perimeter := geospatial.Measure(kind, track.Points)
	report := &Report{
		Kind:        kind,
		Points:      make([]string, len(track.Points)),
		Measurement: readout.Annotate(m),
		Perimeter:   readout.Annotate(perimeter),
	}
	for i, p := range track.Points {
		report.Points[i] = readout.FormatPoint(p)
	}
	if b, ok := usecases.FitCamera(track.Points); ok {
		report.Bounds = &b
	}
	return report, nil
}

func render(r *Report, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "kind:      %s\n", r.Kind)
	for i, p := range r.Points {
		fmt.Fprintf(&b, "  %3d  %s\n", i+1, p)
	}
	if r.Measurement != nil {
		fmt.Fprintf(&b, "%-10s %s\n", string(r.Measurement.Kind)+":", r.Measurement.Display)
	}
	if r.Perimeter != nil {
		fmt.Fprintf(&b, "perimeter: %s\n", r.Perimeter.Display)
	}
	if r.Bounds != nil {
		fmt.Fprintf(&b, "bounds:    %.6f,%.6f %.6f,%.6f\n", r.Bounds.MinLat, r.Bounds.MinLng, r.Bounds.MaxLat, r.Bounds.MaxLng)
	}
	return []byte(b.String()), nil
}
