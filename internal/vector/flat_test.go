package vector

import (
	"errors"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	vecs := [][]float32{{1, 0, 0}, {0.9, 0.1, 0}, {0, 1, 0}}
	if err := idx.Add(vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 3 {
		t.Fatalf("Len=%d, want 3", idx.Len())
	}

	hits, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Position != 0 || hits[0].Distance != 0 {
		t.Errorf("top hit = %+v, want position 0 at distance 0", hits[0])
	}
	if hits[1].Position != 1 {
		t.Errorf("second hit = %+v, want position 1", hits[1])
	}
}

func TestFlatIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([][]float32{{0, 1}, {0, 1}, {0, 1}})
	hits, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, h := range hits {
		if h.Position != int64(i) {
			t.Errorf("hit %d has position %d", i, h.Position)
		}
	}
}

func TestFlatIndex_KLargerThanLen(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([][]float32{{1, 0}})
	hits, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestFlatIndex_EmptyAndZeroK(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	if hits, err := idx.Search([]float32{1, 0}, 5); err != nil || len(hits) != 0 {
		t.Errorf("empty index: hits=%v err=%v", hits, err)
	}
	_ = idx.Add([][]float32{{1, 0}})
	if hits, err := idx.Search([]float32{1, 0}, 0); err != nil || len(hits) != 0 {
		t.Errorf("k=0: hits=%v err=%v", hits, err)
	}
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	if err := idx.Add([][]float32{{1, 0, 0}, {1, 0}}); err == nil {
		t.Error("expected error for wrong dimension")
	}
	if idx.Len() != 0 {
		t.Errorf("partial add: Len=%d", idx.Len())
	}
	if _, err := idx.Search([]float32{1}, 1); err == nil {
		t.Error("expected error for wrong query dimension")
	}
	if _, err := NewFlatIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestFlatIndex_RoundTrip(t *testing.T) {
	idx, _ := NewFlatIndex(4)
	_ = idx.Add([][]float32{{1, 2, 3, 4}, {-1, 0.5, 0, 2}})

	data, err := idx.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeFlat(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 || got.Dimensions() != 4 {
		t.Fatalf("decoded Len=%d dims=%d", got.Len(), got.Dimensions())
	}
	hits, _ := got.Search([]float32{-1, 0.5, 0, 2}, 1)
	if hits[0].Position != 1 || hits[0].Distance != 0 {
		t.Errorf("decoded search = %+v", hits)
	}
}

func TestDecodeFlat_Corrupt(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	_ = idx.Add([][]float32{{1, 0}})
	good, _ := idx.MarshalBinary()

	badMagic := append([]byte{}, good...)
	badMagic[0] = 'X'

	tests := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("not an index"),
		"bad magic": badMagic,
		"truncated": good[:len(good)-1],
		"trailing":  append(append([]byte{}, good...), 0),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFlat(data)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestSquaredL2(t *testing.T) {
	if d := SquaredL2([]float32{1, 2}, []float32{4, 6}); d != 25 {
		t.Errorf("SquaredL2 = %f, want 25", d)
	}
	if d := SquaredL2([]float32{1}, []float32{1, 2}); d < 1e30 {
		t.Errorf("length mismatch should be +Inf, got %f", d)
	}
}
