// Package storage keeps recorded runs on disk: one directory per run with a
// metadata.json and a frames.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/boxsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

var ErrNoRun = errors.New("storage: run not found")

var header = []string{"frame", "time", "dt", "entities", "mean_height", "gravity"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Preset    string             `json:"preset"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Frames    int                `json:"frames"`
	Duration  float64            `json:"duration"`
	GPU       bool               `json:"gpu"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Recorder collects one sample per loop step.
type Recorder struct {
	Samples []sim.Frame
}

func (r *Recorder) OnStep(f sim.Frame) {
	r.Samples = append(r.Samples, f)
}

// Save writes a new run and returns its id. ID, Timestamp, Frames and
// Duration are filled in from the samples.
func (s *Store) Save(meta RunMetadata, frames []sim.Frame) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d_%s", meta.Preset, now.Unix(), uuid.NewString()[:8])
	meta.Timestamp = now
	meta.Frames = len(frames)
	if len(frames) > 0 {
		meta.Duration = frames[len(frames)-1].Time
	}
	if meta.Metrics == nil {
		meta.Metrics = Summarize(frames)
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, framesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, f := range frames {
		row := []string{
			strconv.FormatUint(f.Index, 10),
			strconv.FormatFloat(f.Time, 'f', 6, 64),
			strconv.FormatFloat(f.Dt, 'f', 6, 64),
			strconv.Itoa(f.Entities),
			strconv.FormatFloat(f.MeanHeight, 'f', 6, 64),
			strconv.FormatBool(f.GravityOn),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return meta.ID, w.Error()
}

// List returns every readable run, oldest first. Directories without valid
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", runID, err)
	}
	return &meta, nil
}

// LoadFrames reads back the samples of a run. Malformed rows are skipped.
func (s *Store) LoadFrames(runID string) ([]sim.Frame, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Frame{}, nil
	}

	frames := make([]sim.Frame, 0, len(records)-1)
	for _, rec := range records[1:] {
		f, err := parseFrame(rec)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func parseFrame(rec []string) (sim.Frame, error) {
	if len(rec) != len(header) {
		return sim.Frame{}, fmt.Errorf("want %d fields, got %d", len(header), len(rec))
	}
	var (
		f   sim.Frame
		err error
	)
	if f.Index, err = strconv.ParseUint(rec[0], 10, 64); err != nil {
		return f, err
	}
	if f.Time, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return f, err
	}
	if f.Dt, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return f, err
	}
	if f.Entities, err = strconv.Atoi(rec[3]); err != nil {
		return f, err
	}
	if f.MeanHeight, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return f, err
	}
	if f.GravityOn, err = strconv.ParseBool(rec[5]); err != nil {
		return f, err
	}
	return f, nil
}

// Summarize computes the run metrics stored in the metadata.
func Summarize(frames []sim.Frame) map[string]float64 {
	m := map[string]float64{}
	if len(frames) == 0 {
		return m
	}
	last := frames[len(frames)-1]
	m["final_entities"] = float64(last.Entities)
	m["final_mean_height"] = last.MeanHeight

	minH, maxE := last.MeanHeight, 0
	for _, f := range frames {
		if f.Entities > 0 && f.MeanHeight < minH {
			minH = f.MeanHeight
		}
		maxE = max(maxE, f.Entities)
	}
	m["min_mean_height"] = minH
	m["max_entities"] = float64(maxE)
	return m
}
