package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ModelFile is the name of the saved model inside a model directory.
const ModelFile = "model.json"

const modelVersion = 1

type modelJSON struct {
	Version   int       `json:"version"`
	Config    Config    `json:"config"`
	W1        []float64 `json:"w1"`
	B1        []float64 `json:"b1"`
	W2        []float64 `json:"w2"`
	B2        float64   `json:"b2"`
	Report    Report    `json:"report"`
	TrainedAt time.Time `json:"trained_at"`
}

// Save writes the model to dir/model.json, creating dir if needed. It
// returns the file path.
func (m *Model) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	data, err := json.Marshal(modelJSON{
		Version:   modelVersion,
		Config:    m.config,
		W1:        m.w1.RawMatrix().Data,
		B1:        m.b1,
		W2:        m.w2,
		B2:        m.b2,
		Report:    m.report,
		TrainedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encode model: %w", err)
	}

	path := filepath.Join(dir, ModelFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write model: %w", err)
	}

	log.Infof("classifier: model saved to %s", path)

	return path, nil
}

// Load reads a model saved by Save. path may be the model directory or the
// model file itself.
func Load(path string) (*Model, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ModelFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var f modelJSON
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if f.Version != modelVersion {
		return nil, fmt.Errorf("unsupported model version %d", f.Version)
	}
	if err := f.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}

	h := f.Config.Hidden
	if len(f.W1) != h*f.Config.Features() || len(f.B1) != h || len(f.W2) != h {
		return nil, fmt.Errorf("model %s: weight shapes do not match its config", path)
	}

	m := newModel(f.Config)
	copy(m.w1.RawMatrix().Data, f.W1)
	copy(m.b1, f.B1)
	copy(m.w2, f.W2)
	m.b2 = f.B2
	m.report = f.Report

	return m, nil
}
