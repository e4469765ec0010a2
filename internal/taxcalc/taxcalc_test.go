package taxcalc

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestForNet(t *testing.T) {
	q, err := ForNet(100)
	if err != nil {
		t.Fatalf("ForNet: %v", err)
	}
	if q.Gross != 105.58 {
		t.Errorf("gross = %.2f", q.Gross)
	}
	if q.Net < 100 {
		t.Errorf("net %.2f fell below target", q.Net)
	}
	if got := roundCent(q.Gross - q.Fee); got != q.Net {
		t.Errorf("quote does not balance: gross %.2f - fee %.2f != net %.2f", q.Gross, q.Fee, q.Net)
	}
}

func TestForNetAlwaysCoversTarget(t *testing.T) {
	for _, amount := range []float64{0.01, 1, 9.99, 25, 40.50, 1234.56} {
		q, err := ForNet(amount)
		if err != nil {
			t.Fatalf("ForNet(%v): %v", amount, err)
		}
		if q.Net+0.001 < amount {
			t.Errorf("ForNet(%v): net %.2f below target", amount, q.Net)
		}
	}
}

func TestForGross(t *testing.T) {
	q, err := ForGross(50)
	if err != nil {
		t.Fatalf("ForGross: %v", err)
	}
	if q.Fee != 2.80 {
		t.Errorf("fee = %.2f", q.Fee)
	}
	if q.Net != 47.20 {
		t.Errorf("net = %.2f", q.Net)
	}
}

func TestInvalidAmounts(t *testing.T) {
	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		if _, err := ForNet(amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ForNet(%v): %v", amount, err)
		}
		if _, err := ForGross(amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ForGross(%v): %v", amount, err)
		}
	}
}

func TestFormat(t *testing.T) {
	q, _ := ForNet(100)
	out := Format(q, "USD")
	if !strings.Contains(out, "105.58 USD") || !strings.Contains(out, "100.00") {
		t.Errorf("format: %q", out)
	}
}
