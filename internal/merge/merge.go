// Package merge joins the harvested results with their source records and
// exports the combined list as a single minified JSON document.
package merge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/source"
)

const (
	nameField    = "name"
	countryField = "country"
	maxLineBytes = 16 << 20
)

// BlobStore receives the exported document.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Config controls an export.
type Config struct {
	// ResultsPath is the JSON-lines results file written by the workers.
	ResultsPath string
	// Object is the destination path inside the blob store.
	Object string
	// IDField names the source field holding the city code.
	IDField string
}

// Record is a result enriched with the matching source entry.
type Record struct {
	harvest.ResultRecord
	CityName string `json:"cityName,omitempty"`
	Country  any    `json:"country,omitempty"`
}

// Report describes a completed export.
type Report struct {
	Merged    int
	Unmatched int
	Malformed int
	URI       string
}

// Exporter merges results and uploads them.
type Exporter struct {
	store  BlobStore
	cfg    Config
	logger *zap.Logger
}

// New creates an Exporter.
func New(store BlobStore, cfg Config, logger *zap.Logger) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if cfg.ResultsPath == "" || cfg.Object == "" {
		return nil, errors.New("results path and object are required")
	}
	if cfg.IDField == "" {
		cfg.IDField = source.DefaultIDField
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, cfg: cfg, logger: logger}, nil
}

// Run reads the results file, enriches every well-formed line with the
// cityName and country of the source record sharing its code, and writes the
// list as one JSON array. Malformed lines are skipped and counted.
func (e *Exporter) Run(ctx context.Context, sources []source.Record) (Report, error) {
	var report Report

	index := make(map[string]source.Record, len(sources))
	for _, rec := range sources {
		code, err := rec.Identifier(e.cfg.IDField)
		if err != nil {
			continue
		}
		if _, dup := index[string(code)]; !dup {
			index[string(code)] = rec
		}
	}

	f, err := os.Open(e.cfg.ResultsPath)
	if err != nil {
		return report, fmt.Errorf("open results: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	merged := make([]Record, 0, len(index))
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec.ResultRecord); err != nil || rec.CityCode == "" {
			report.Malformed++
			e.logger.Warn("skipping malformed result line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if rec.HotelCodes == nil {
			rec.HotelCodes = []string{}
		}
		if src, ok := index[rec.CityCode]; ok {
			rec.CityName = src.String(nameField)
			rec.Country = src[countryField]
		} else {
			report.Unmatched++
		}
		merged = append(merged, rec)
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read results: %w", err)
	}
	report.Merged = len(merged)

	payload, err := json.Marshal(merged)
	if err != nil {
		return report, fmt.Errorf("marshal merged results: %w", err)
	}
	uri, err := e.store.PutObject(ctx, e.cfg.Object, "application/json", bytes.NewReader(payload))
	if err != nil {
		return report, fmt.Errorf("export merged results: %w", err)
	}
	report.URI = uri

	e.logger.Info("merged results exported",
		zap.String("uri", uri),
		zap.Int("merged", report.Merged),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("malformed", report.Malformed),
	)
	return report, nil
}
