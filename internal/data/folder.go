package data

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	errorsmod "cosmossdk.io/errors"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/tensor"
	"github.com/born-ml/srgan/internal/types"
)

// FolderConfig configures a FolderSource.
type FolderConfig struct {
	Root      string
	BatchSize int
	HRSize    int
	Scale     int
	Workers   int // prefetch goroutines, at least 1
	UseFlip   bool
	UseRot    bool
	Seed      int64
}

// FolderSource crops random HR patches from the images of a directory.
//
// Images are decoded once when the source is created. Workers then assemble
// batches in the background and hand them over through a buffered channel.
type FolderSource struct {
	images  []*tensor.RawTensor // [3, H, W]
	batches chan Batch
	cancel  context.CancelFunc
	done    chan struct{}
	err     error // set before done is closed
}

// NewFolderSource loads every PNG and JPEG under cfg.Root and starts the
// prefetch workers. They stop when ctx is cancelled or Close is called.
func NewFolderSource(ctx context.Context, cfg FolderConfig) (*FolderSource, error) {
	if err := checkPatch(cfg.BatchSize, cfg.HRSize, cfg.Scale); err != nil {
		return nil, err
	}
	paths, err := listImages(cfg.Root)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "no images in dataroot_HR [%s]", cfg.Root)
	}

	images, err := loadImages(ctx, paths)
	if err != nil {
		return nil, err
	}
	for i, img := range images {
		s := img.Shape()
		if s[1] < cfg.HRSize || s[2] < cfg.HRSize {
			return nil, errorsmod.Wrapf(types.ErrInvalidConfig,
				"%s is %dx%d, smaller than HR_size %d", paths[i], s[2], s[1], cfg.HRSize)
		}
	}
	logging.Info("Loaded HR images", types.Data, "root", cfg.Root, "images", len(images))

	workers := max(cfg.Workers, 1)
	ctx, cancel := context.WithCancel(ctx)
	s := &FolderSource{
		images:  images,
		batches: make(chan Batch, workers),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(w)))
		g.Go(func() error {
			for {
				b := s.sample(cfg, rng)
				select {
				case s.batches <- b:
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	go func() {
		s.err = g.Wait()
		close(s.done)
	}()
	return s, nil
}

// Next returns the next prefetched batch.
func (s *FolderSource) Next(ctx context.Context) (Batch, error) {
	select {
	case <-s.done:
		return Batch{}, s.stopped()
	default:
	}
	select {
	case b := <-s.batches:
		return b, nil
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case <-s.done:
		return Batch{}, s.stopped()
	}
}

func (s *FolderSource) stopped() error {
	if s.err != nil {
		return s.err
	}
	return context.Canceled
}

// Close stops the workers and waits for them to exit.
func (s *FolderSource) Close() error {
	s.cancel()
	<-s.done
	return s.err
}

// Len returns the number of loaded images.
func (s *FolderSource) Len() int {
	return len(s.images)
}

func (s *FolderSource) sample(cfg FolderConfig, rng *rand.Rand) Batch {
	size := cfg.HRSize
	hr := tensor.Zeros(tensor.Shape{cfg.BatchSize, 3, size, size})
	per := 3 * size * size
	d := hr.Data()
	for b := 0; b < cfg.BatchSize; b++ {
		img := s.images[rng.Intn(len(s.images))]
		sh := img.Shape()
		top, left := rng.Intn(sh[1]-size+1), rng.Intn(sh[2]-size+1)
		flip := cfg.UseFlip && rng.Intn(2) == 1
		rot := cfg.UseRot && rng.Intn(2) == 1
		crop(d[b*per:(b+1)*per], img, top, left, size, flip, rot)
	}
	return Batch{LR: Downsample(hr, cfg.Scale), HR: hr}
}

// crop copies the size×size window at (top, left) of img [C, H, W] into dst,
// optionally mirrored horizontally and transposed.
func crop(dst []float32, img *tensor.RawTensor, top, left, size int, flip, rot bool) {
	sh := img.Shape()
	h, w := sh[1], sh[2]
	src := img.Data()
	for c := 0; c < sh[0]; c++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				sy, sx := y, x
				if rot {
					sy, sx = x, y
				}
				if flip {
					sx = size - 1 - sx
				}
				dst[(c*size+y)*size+x] = src[(c*h+top+sy)*w+left+sx]
			}
		}
	}
}

func listImages(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrInvalidConfig, "dataroot_HR: %v", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			paths = append(paths, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func loadImages(ctx context.Context, paths []string) ([]*tensor.RawTensor, error) {
	images := make([]*tensor.RawTensor, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := LoadImage(p)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}
