package dutil_test

import (
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sugarme/droneseg/dutil"
)

type intDataset struct {
	n    int
	fail int
}

func (ds *intDataset) Len() int { return ds.n }

func (ds *intDataset) Item(idx int) (interface{}, error) {
	if idx == ds.fail {
		return nil, fmt.Errorf("broken item %d", idx)
	}
	return idx * 10, nil
}

func (ds *intDataset) DType() reflect.Type { return reflect.TypeOf(0) }

func TestBatchSampler(t *testing.T) {
	s, err := dutil.NewBatchSampler(10, 4, false, false)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Batches())
	assert.Equal(t, []int{8, 9}, s.Batch(2))

	s, err = dutil.NewBatchSampler(10, 4, true, true)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Batches())

	_, err = dutil.NewBatchSampler(10, 0, true, true)
	assert.Error(t, err)
}

func TestDataLoaderOrder(t *testing.T) {
	ds := &intDataset{n: 5, fail: -1}
	s, err := dutil.NewBatchSampler(ds.Len(), 2, false, false)
	require.NoError(t, err)
	dl, err := dutil.NewDataLoader(ds, s)
	require.NoError(t, err)

	var got [][]int
	for dl.HasNext() {
		b, err := dl.Next()
		require.NoError(t, err)
		got = append(got, b.([]int))
	}
	assert.Equal(t, [][]int{{0, 10}, {20, 30}, {40}}, got)

	_, err = dl.Next()
	assert.Error(t, err)

	dl.Reset()
	assert.True(t, dl.HasNext())
	assert.Equal(t, 3, dl.Len())
}

func TestDataLoaderWorkersKeepOrder(t *testing.T) {
	ds := &intDataset{n: 64, fail: -1}
	s, err := dutil.NewBatchSampler(ds.Len(), 16, true, true)
	require.NoError(t, err)
	s.Seed(1)
	dl, err := dutil.NewDataLoader(ds, s, dutil.WithWorkers(4))
	require.NoError(t, err)

	var all []int
	for i := 0; dl.HasNext(); i++ {
		b, err := dl.Next()
		require.NoError(t, err)
		batch := b.([]int)
		for k, j := range s.Batch(i) {
			assert.Equal(t, j*10, batch[k])
		}
		all = append(all, batch...)
	}
	sort.Ints(all)
	assert.Len(t, all, 64)
	assert.Equal(t, 630, all[63])
}

func TestDataLoaderError(t *testing.T) {
	ds := &intDataset{n: 4, fail: 2}
	s, err := dutil.NewBatchSampler(ds.Len(), 4, false, false)
	require.NoError(t, err)

	for _, workers := range []int{1, 3} {
		dl, err := dutil.NewDataLoader(ds, s, dutil.WithWorkers(workers))
		require.NoError(t, err)
		_, err = dl.Next()
		assert.EqualError(t, err, "broken item 2")
	}

	other, err := dutil.NewBatchSampler(3, 1, false, false)
	require.NoError(t, err)
	_, err = dutil.NewDataLoader(ds, other)
	assert.Error(t, err)
}
