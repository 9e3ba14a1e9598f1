// Package dutil batches dataset items for a training loop.
package dutil

import (
	"math/rand"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Dataset is an index-addressable collection of samples.
type Dataset interface {
	Len() int
	Item(idx int) (interface{}, error)
	// DType is the type of the values Item returns.
	DType() reflect.Type
}

// BatchSampler yields batches of dataset indices.
type BatchSampler struct {
	n         int
	batchSize int
	dropLast  bool
	shuffle   bool
	rng       *rand.Rand

	batches [][]int
}

// NewBatchSampler creates a sampler over n items. With dropLast the final
// incomplete batch is skipped. With shuffle the order changes on every Reset.
func NewBatchSampler(n, batchSize int, dropLast, shuffle bool) (*BatchSampler, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", batchSize)
	}
	if n < 0 {
		return nil, errors.Errorf("invalid dataset size %d", n)
	}

	s := &BatchSampler{
		n:         n,
		batchSize: batchSize,
		dropLast:  dropLast,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.Reset()

	return s, nil
}

// Seed reseeds the shuffle and rebuilds the batches.
func (s *BatchSampler) Seed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
	s.Reset()
}

// Reset rebuilds the batches, reshuffling when enabled.
func (s *BatchSampler) Reset() {
	var idx []int
	if s.shuffle {
		idx = s.rng.Perm(s.n)
	} else {
		idx = make([]int, s.n)
		for i := range idx {
			idx[i] = i
		}
	}

	s.batches = s.batches[:0]
	for start := 0; start < s.n; start += s.batchSize {
		end := start + s.batchSize
		if end > s.n {
			if s.dropLast {
				break
			}
			end = s.n
		}
		s.batches = append(s.batches, idx[start:end])
	}
}

// Batches returns the number of batches per epoch.
func (s *BatchSampler) Batches() int {
	return len(s.batches)
}

// Batch returns the indices of batch i.
func (s *BatchSampler) Batch(i int) []int {
	return s.batches[i]
}

// DataLoader iterates a dataset batch by batch.
type DataLoader struct {
	dataset Dataset
	sampler *BatchSampler
	workers int
	next    int
}

// Option configures a DataLoader.
type Option func(*DataLoader)

// WithWorkers loads the items of a batch with n goroutines.
func WithWorkers(n int) Option {
	return func(dl *DataLoader) {
		if n > 0 {
			dl.workers = n
		}
	}
}

// NewDataLoader creates a loader of ds batched by s.
func NewDataLoader(ds Dataset, s *BatchSampler, opts ...Option) (*DataLoader, error) {
	if ds == nil || s == nil {
		return nil, errors.New("nil dataset or sampler")
	}
	if s.n != ds.Len() {
		return nil, errors.Errorf("sampler covers %d items, dataset has %d", s.n, ds.Len())
	}

	dl := &DataLoader{dataset: ds, sampler: s, workers: 1}
	for _, o := range opts {
		o(dl)
	}
	return dl, nil
}

// HasNext reports whether another batch is available.
func (dl *DataLoader) HasNext() bool {
	return dl.next < dl.sampler.Batches()
}

// Next returns the next batch as a slice of the dataset's DType, in sampler
// order.
func (dl *DataLoader) Next() (interface{}, error) {
	if !dl.HasNext() {
		return nil, errors.New("no more batches")
	}
	idx := dl.sampler.Batch(dl.next)
	dl.next++

	items := make([]interface{}, len(idx))
	if dl.workers <= 1 {
		for i, j := range idx {
			item, err := dl.dataset.Item(j)
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
	} else if err := dl.loadParallel(idx, items); err != nil {
		return nil, err
	}

	batch := reflect.MakeSlice(reflect.SliceOf(dl.dataset.DType()), 0, len(items))
	for _, item := range items {
		batch = reflect.Append(batch, reflect.ValueOf(item))
	}

	return batch.Interface(), nil
}

func (dl *DataLoader) loadParallel(idx []int, items []interface{}) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	jobs := make(chan int)
	for w := 0; w < dl.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item, err := dl.dataset.Item(idx[i])
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				items[i] = item
			}
		}()
	}
	for i := range idx {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return firstErr
}

// Reset starts a new epoch.
func (dl *DataLoader) Reset() {
	dl.sampler.Reset()
	dl.next = 0
}

// Len returns the number of batches per epoch.
func (dl *DataLoader) Len() int {
	return dl.sampler.Batches()
}
