package pkg

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSpill[T any](t testing.TB) FileSpill[T] {
	t.Helper()

	spill, err := NewFileSpill[T](t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = spill.Close()
	})

	return spill
}

func TestFileSpill(t *testing.T) {
	t.Run("NewFileSpill in dir", func(t *testing.T) {
		dir := t.TempDir()

		spill, err := NewFileSpill[int](dir)
		require.NoError(t, err)
		require.Contains(t, spill.Path(), dir)
		require.NoError(t, spill.Close())
	})

	t.Run("NewFileSpill defaults to temp dir", func(t *testing.T) {
		spill, err := NewFileSpill[int]("")
		require.NoError(t, err)
		require.Contains(t, spill.Path(), "grafter-journal")
		require.NoError(t, spill.Close())
	})

	t.Run("Append and Get", func(t *testing.T) {
		spill := newSpill[string](t)

		require.NoError(t, spill.Append("first"))
		require.NoError(t, spill.Append("second"))

		val1, err := spill.Get(0)
		require.NoError(t, err)
		require.Equal(t, "first", val1)

		val2, err := spill.Get(1)
		require.NoError(t, err)
		require.Equal(t, "second", val2)

		val3, err := spill.Get(3)
		require.Error(t, err)
		require.Equal(t, "", val3)
	})

	t.Run("AppendBatch adds multiple items", func(t *testing.T) {
		spill := newSpill[int](t)

		require.NoError(t, spill.AppendBatch([]int{10, 20, 30, 40, 50}))
		require.Equal(t, uint64(5), spill.Len())

		val, err := spill.Get(4)
		require.NoError(t, err)
		require.Equal(t, 50, val)
	})

	t.Run("Range iterates all items in order", func(t *testing.T) {
		spill := newSpill[int](t)

		expected := []int{100, 200, 300}
		require.NoError(t, spill.AppendBatch(expected))

		var collected []int
		err := spill.Range(func(_ uint64, item int) error {
			collected = append(collected, item)
			return nil
		})

		require.NoError(t, err)
		require.Equal(t, expected, collected)
	})

	t.Run("Range callback error stops iteration", func(t *testing.T) {
		spill := newSpill[int](t)
		require.NoError(t, spill.AppendBatch([]int{1, 2, 3}))

		count := 0
		rangeErr := spill.Range(func(index uint64, _ int) error {
			count++
			if index == 1 {
				return errors.New("stop at index 1")
			}
			return nil
		})

		require.Error(t, rangeErr)
		require.Equal(t, 2, count)
	})

	t.Run("zero fields do not leak between items", func(t *testing.T) {
		type row struct {
			Name  string
			Lines []int
			Names map[string]string
		}

		spill := newSpill[row](t)
		require.NoError(t, spill.Append(row{Name: "a", Lines: []int{1, 2}, Names: map[string]string{"y": "x"}}))
		require.NoError(t, spill.Append(row{}))

		var rows []row
		require.NoError(t, spill.Range(func(_ uint64, item row) error {
			rows = append(rows, item)
			return nil
		}))

		require.Len(t, rows, 2)
		require.Equal(t, row{}, rows[1])
	})

	t.Run("Reset starts a new segment", func(t *testing.T) {
		spill := newSpill[string](t)

		require.NoError(t, spill.AppendBatch([]string{"a", "b"}))
		require.NoError(t, spill.Reset())
		require.Equal(t, uint64(0), spill.Len())

		require.NoError(t, spill.Append("c"))

		val, err := spill.Get(0)
		require.NoError(t, err)
		require.Equal(t, "c", val)
	})

	t.Run("Close removes the file", func(t *testing.T) {
		spill, err := NewFileSpill[int](t.TempDir())
		require.NoError(t, err)
		require.NoError(t, spill.Append(1))
		require.NoError(t, spill.Close())

		_, statErr := os.Stat(spill.Path())
		require.True(t, os.IsNotExist(statErr))

		require.Error(t, spill.Append(2))
		require.NoError(t, spill.Close())
	})
}

func TestEdgeCases(t *testing.T) {
	t.Run("empty filespill range returns no items", func(t *testing.T) {
		spill := newSpill[int](t)

		called := false
		require.NoError(t, spill.Range(func(uint64, int) error {
			called = true
			return nil
		}))
		require.False(t, called)
	})

	t.Run("get on empty filespill returns error", func(t *testing.T) {
		spill := newSpill[int](t)

		_, err := spill.Get(0)
		require.Error(t, err)
	})

	t.Run("float special values", func(t *testing.T) {
		spill := newSpill[float64](t)
		require.NoError(t, spill.AppendBatch([]float64{math.Inf(1), math.Inf(-1), math.MaxFloat64}))

		val, err := spill.Get(0)
		require.NoError(t, err)
		require.True(t, math.IsInf(val, 1))

		val, err = spill.Get(2)
		require.NoError(t, err)
		require.Equal(t, math.MaxFloat64, val)
	})
}

// BenchmarkAppend measures the performance of appending items.
func BenchmarkAppend(b *testing.B) {
	spill := newSpill[int](b)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = spill.Append(i)
	}
}

// BenchmarkRange measures a full scan of a journal.
func BenchmarkRange(b *testing.B) {
	spill := newSpill[int](b)

	for i := range 1000 {
		_ = spill.Append(i)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = spill.Range(func(uint64, int) error { return nil })
	}
}
