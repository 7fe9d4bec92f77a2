package main

import "testing"

func TestMatrixMultiplyIdentity(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 0, 3)
	m.Set(1, 1, 4)

	got := m.Multiply(Identity(2))
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			if got.At(r, c) != m.At(r, c) {
				t.Errorf("At(%d,%d) = %v, want %v", r, c, got.At(r, c), m.At(r, c))
			}
		}
	}
}

func TestMatrixInverse2x2(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Set(0, 0, 4)
	m.Set(0, 1, 7)
	m.Set(1, 0, 2)
	m.Set(1, 1, 6)

	inv := m.Inverse()
	product := m.Multiply(inv)

	const tol = 1e-9
	if abs(product.At(0, 0)-1) > tol || abs(product.At(1, 1)-1) > tol {
		t.Fatalf("M * M^-1 not identity: %+v", product)
	}
	if abs(product.At(0, 1)) > tol || abs(product.At(1, 0)) > tol {
		t.Fatalf("M * M^-1 not identity: %+v", product)
	}
}

func TestMatrixInversePanicsOnSingular(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic inverting a singular matrix")
		}
	}()
	m := NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 0, 2)
	m.Set(1, 1, 4)
	m.Inverse()
}

func TestMatrixScale(t *testing.T) {
	m := NewMatrix(1, 3)
	m.Set(0, 0, 1)
	m.Set(0, 1, -2)
	m.Set(0, 2, 3)

	scaled := m.Scale(2)
	want := []float64{2, -4, 6}
	for i, w := range want {
		if scaled.data[i] != w {
			t.Errorf("Scale()[%d] = %v, want %v", i, scaled.data[i], w)
		}
	}
}
