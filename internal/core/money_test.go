package core

import (
	"encoding/json"
	"math"
	"testing"
)

type grams int16

type priceText string

func TestSanitize(t *testing.T) {
	cases := []struct {
		in  any
		out float64
	}{
		{1, 1},
		{int64(3), 3},
		{2.5, 2.5},
		{float32(0.5), 0.5},
		{"1.23", 1.23},
		{"1,23", 1.23},
		{" 2.50 ", 2.5},
		{json.Number("4"), 4},
		{int8(7), 7},
		{int16(300), 300},
		{uint8(9), 9},
		{uint16(65535), 65535},
		{grams(250), 250},
		{grams(-5), 0},
		{priceText("3,75"), 3.75},
		{"", 0},
		{"abc", 0},
		{"1.2.3", 0},
		{"NaN", 0},
		{"Inf", 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{-1.0, 0},
		{"-3", 0},
		{nil, 0},
		{true, 0},
		{struct{}{}, 0},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.out {
			t.Fatalf("Sanitize(%#v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}
