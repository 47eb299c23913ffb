package posmap_test

import (
	"testing"

	"github.com/grailbio/uindex/posmap"
)

func checkMap(t *testing.T, name string, m posmap.Map, want []int) {
	t.Helper()
	if m.Len() != len(want) {
		t.Fatalf("%s: Len() = %d, want %d", name, m.Len(), len(want))
	}
	for i, w := range want {
		if got := m.Get(i); got != w {
			t.Errorf("%s: Get(%d) = %d, want %d", name, i, got, w)
		}
	}
}

func TestPlain(t *testing.T) {
	want := []int{0, 5, 8, 100, 1000}
	checkMap(t, "Plain", posmap.NewPlain(want), want)
}

func TestEliasFanoAgreesWithPlain(t *testing.T) {
	cases := [][]int{
		{0},
		{0, 5, 8},
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{3, 3, 3, 100, 100, 250},
		{0, 1000000, 2000000, 2000001},
	}
	for _, want := range cases {
		ef := posmap.NewEliasFano(want)
		checkMap(t, "EliasFano", ef, want)
	}
}

func TestEliasFanoSingleton(t *testing.T) {
	ef := posmap.NewEliasFano([]int{42})
	if ef.Len() != 1 || ef.Get(0) != 42 {
		t.Errorf("EliasFano singleton = %d (len %d), want 42 (len 1)", ef.Get(0), ef.Len())
	}
}

func TestEliasFanoAllZero(t *testing.T) {
	want := []int{0, 0, 0, 0}
	ef := posmap.NewEliasFano(want)
	checkMap(t, "EliasFano", ef, want)
}
