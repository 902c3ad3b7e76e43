package ledger_test

import (
	"errors"
	"math"
	"testing"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantMsg string
	}{
		{raw: "250", want: 250},
		{raw: "250.5", want: 250.5},
		{raw: " 0.01 ", want: 0.01},
		{raw: "", wantMsg: domain.MsgMissingDetails},
		{raw: "abc", wantMsg: domain.MsgInvalidAmount},
		{raw: "0", wantMsg: domain.MsgInvalidAmount},
		{raw: "-5", wantMsg: domain.MsgInvalidAmount},
		{raw: "10.001", wantMsg: domain.MsgInvalidAmount},
		{raw: "1e400", wantMsg: domain.MsgInvalidAmount},
		{raw: "1000000000000", wantMsg: domain.MsgInvalidAmount},
		{raw: "999999999999.99", want: 999999999999.99},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ledger.ParseAmount(tt.raw)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("got %v, want %v", got, tt.want)
				}
				return
			}
			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if ve.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", ve.Message, tt.wantMsg)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	if got := ledger.Sub(0.3, 0.1); got != 0.2 {
		t.Errorf("Sub(0.3, 0.1) = %v, want 0.2", got)
	}
	if got := ledger.Add(0.1, 0.2); got != 0.3 {
		t.Errorf("Add(0.1, 0.2) = %v, want 0.3", got)
	}
	if got := ledger.Round2(2.675); got != 2.68 {
		t.Errorf("Round2(2.675) = %v, want 2.68", got)
	}
}

func TestMoneyArithmetic_NonFinite(t *testing.T) {
	inf := math.Inf(1)
	if got := ledger.Round2(inf); !math.IsInf(got, 1) {
		t.Errorf("Round2(+Inf) = %v", got)
	}
	if got := ledger.Add(1, inf); !math.IsInf(got, 1) {
		t.Errorf("Add(1, +Inf) = %v", got)
	}
	if got := ledger.Sub(1, math.NaN()); !math.IsNaN(got) {
		t.Errorf("Sub(1, NaN) = %v", got)
	}
}
