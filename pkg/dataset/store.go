// Package dataset stores uploaded (image, label) pairs in a YOLO-style
// directory layout:
//
//	<root>/<dataset>/<split>/images/<name>.jpg
//	<root>/<dataset>/<split>/labels/<name>.txt
//
// The split for each upload is drawn at random (80% train, 10% val,
// 10% test); names are a UTC timestamp plus a short random suffix.
package dataset

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-yolocapture/pkg/upload"
)

// Splits are the dataset partitions, in weight order.
var Splits = []string{"train", "val", "test"}

var splitWeights = []float64{0.8, 0.1, 0.1}

const (
	imagesDir = "images"
	labelsDir = "labels"
	imageExt  = ".jpg"
	labelExt  = ".txt"
)

// Stored describes a pair written by Put. Paths are relative to the store root.
type Stored struct {
	Status  string `json:"status"`
	Dataset string `json:"dataset"`
	Split   string `json:"split"`
	Image   string `json:"image"`
	Label   string `json:"label"`
}

// Stats counts images per split for one dataset.
type Stats struct {
	Name   string         `json:"name"`
	Splits map[string]int `json:"splits"`
	Total  int            `json:"total"`
}

// Store is a filesystem dataset store. It is safe for concurrent use.
type Store struct {
	root   string
	now    func() time.Time
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Store.
type Option func(*Store)

// WithRand sets the random source used for split selection.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rng = r }
}

// WithClock sets the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore opens (creating if needed) a store rooted at root.
func NewStore(root string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create root: %w", err)
	}

	s := &Store{
		root:   root,
		now:    time.Now,
		logger: slog.Default(),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "dataset.store")
	return s, nil
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// PickSplit draws a split according to the 80/10/10 weights.
func (s *Store) PickSplit() string {
	s.mu.Lock()
	x := s.rng.Float64()
	s.mu.Unlock()

	for i, w := range splitWeights {
		if x < w {
			return Splits[i]
		}
		x -= w
	}
	return Splits[len(Splits)-1]
}

func (s *Store) fileStem() string {
	ts := s.now().UTC().Format("20060102-150405")
	tail := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return ts + "-" + tail
}

// Put validates req and writes its image and label to a randomly chosen split.
func (s *Store) Put(req *upload.Request) (*Stored, error) {
	if !upload.ValidDataset(req.Dataset) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataset, req.Dataset)
	}
	if strings.TrimSpace(req.Label) == "" {
		return nil, ErrEmptyLabel
	}
	img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if err := s.ensureDirs(req.Dataset); err != nil {
		return nil, err
	}

	split := s.PickSplit()
	stem := s.fileStem()
	imgRel := filepath.Join(req.Dataset, split, imagesDir, stem+imageExt)
	lblRel := filepath.Join(req.Dataset, split, labelsDir, stem+labelExt)

	if err := os.WriteFile(filepath.Join(s.root, imgRel), img, 0o644); err != nil {
		return nil, fmt.Errorf("dataset: write image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.root, lblRel), []byte(strings.TrimSpace(req.Label)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("dataset: write label: %w", err)
	}

	s.logger.Info("stored pair", "dataset", req.Dataset, "split", split, "image", stem+imageExt, "bytes", len(img))

	return &Stored{
		Status:  "stored",
		Dataset: req.Dataset,
		Split:   split,
		Image:   filepath.ToSlash(imgRel),
		Label:   filepath.ToSlash(lblRel),
	}, nil
}

func (s *Store) ensureDirs(name string) error {
	for _, split := range Splits {
		for _, sub := range []string{imagesDir, labelsDir} {
			if err := os.MkdirAll(filepath.Join(s.root, name, split, sub), 0o755); err != nil {
				return fmt.Errorf("dataset: create dirs: %w", err)
			}
		}
	}
	return nil
}

// dir returns the directory of an existing dataset.
func (s *Store) dir(name string) (string, error) {
	if !upload.ValidDataset(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDataset, name)
	}
	dir := filepath.Join(s.root, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
	}
	return dir, nil
}

// Exists reports whether the dataset directory exists.
func (s *Store) Exists(name string) bool {
	_, err := s.dir(name)
	return err == nil
}

func (s *Store) images(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*", imagesDir, "*"+imageExt))
}

// Sample returns the paths of a random image in the dataset and its label
// file. The label file may not exist.
func (s *Store) Sample(name string) (imagePath, labelPath string, err error) {
	dir, err := s.dir(name)
	if err != nil {
		return "", "", err
	}
	matches, err := s.images(dir)
	if err != nil {
		return "", "", err
	}
	if len(matches) == 0 {
		return "", "", fmt.Errorf("%w: %q", ErrEmptyDataset, name)
	}

	s.mu.Lock()
	imagePath = matches[s.rng.IntN(len(matches))]
	s.mu.Unlock()

	return imagePath, LabelPathFor(imagePath), nil
}

// LabelPathFor maps <split>/images/<name>.jpg to <split>/labels/<name>.txt.
func LabelPathFor(imagePath string) string {
	splitDir := filepath.Dir(filepath.Dir(imagePath))
	name := strings.TrimSuffix(filepath.Base(imagePath), imageExt) + labelExt
	return filepath.Join(splitDir, labelsDir, name)
}

// Stats counts the images of one dataset per split.
func (s *Store) Stats(name string) (*Stats, error) {
	dir, err := s.dir(name)
	if err != nil {
		return nil, err
	}

	st := &Stats{Name: name, Splits: make(map[string]int, len(Splits))}
	for _, split := range Splits {
		matches, err := filepath.Glob(filepath.Join(dir, split, imagesDir, "*"+imageExt))
		if err != nil {
			return nil, err
		}
		st.Splits[split] = len(matches)
		st.Total += len(matches)
	}
	return st, nil
}

// List returns stats for every dataset, sorted by name.
func (s *Store) List() ([]*Stats, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("dataset: read root: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && upload.ValidDataset(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	all := make([]*Stats, 0, len(names))
	for _, name := range names {
		st, err := s.Stats(name)
		if err != nil {
			return nil, err
		}
		all = append(all, st)
	}
	return all, nil
}
