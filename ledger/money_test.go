package ledger_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ledgerline/payables/ledger"
)

func TestParseMoney_RoundsHalfUpToTwoDecimals(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10.00"},
		{"10.015", "10.02"},
		{"-10.005", "-10.01"}, // half away from zero
		{"0.125", "0.13"},
		{"100", "100.00"},
		{"0.1", "0.10"},
	}
	for _, c := range cases {
		m, err := ledger.ParseMoney(c.in)
		if err != nil {
			t.Fatalf("ParseMoney(%q): %v", c.in, err)
		}
		if m.String() != c.want {
			t.Errorf("ParseMoney(%q) = %s, want %s", c.in, m, c.want)
		}
	}
}

func TestParseMoney_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "10,50", "1.2.3"} {
		_, err := ledger.ParseMoney(in)
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("ParseMoney(%q) = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestMoney_ArithmeticStaysExact(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.30, not 0.30000000000000004.
	sum := ledger.MustMoney("0.10").Add(ledger.MustMoney("0.20"))
	if sum.String() != "0.30" {
		t.Errorf("0.10 + 0.20 = %s, want 0.30", sum)
	}

	diff := ledger.MustMoney("1.00").Sub(ledger.MustMoney("0.42"))
	if diff.String() != "0.58" {
		t.Errorf("1.00 - 0.42 = %s, want 0.58", diff)
	}
}

func TestMoney_ExceedsWithTolerance(t *testing.T) {
	balance := ledger.MustMoney("100.00")

	if ledger.MustMoney("100.00").ExceedsWithTolerance(balance) {
		t.Error("paying the exact balance must be allowed")
	}
	if !ledger.MustMoney("100.01").ExceedsWithTolerance(balance) {
		t.Error("100.01 against 100.00 must exceed tolerance")
	}
	if ledger.MustMoney("99.99").ExceedsWithTolerance(balance) {
		t.Error("paying less than the balance must be allowed")
	}
}

func TestMoney_WithinEpsilonOfZero(t *testing.T) {
	if !ledger.Zero().WithinEpsilonOfZero() {
		t.Error("zero must be within epsilon")
	}
	if !ledger.MustMoney("0.00").WithinEpsilonOfZero() {
		t.Error("0.00 must be within epsilon")
	}
	if ledger.MustMoney("0.01").WithinEpsilonOfZero() {
		t.Error("0.01 must not be within epsilon")
	}
	if ledger.MustMoney("-0.01").WithinEpsilonOfZero() {
		t.Error("-0.01 must not be within epsilon")
	}
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := ledger.MustMoney("150.50")

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"150.50"` {
		t.Errorf("marshal = %s, want \"150.50\"", b)
	}

	var back ledger.Money
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(m) {
		t.Errorf("round trip = %s, want %s", back, m)
	}
}
