package brokerage

import "testing"

func TestMoney_String(t *testing.T) {
	tests := []struct {
		m    Money
		want string
	}{
		{M(1234.5, "USD"), "$1,234.50"},
		{NO(10.333333), "10.33"},
		{NO(-18), "-18.00"},
		{M(3, "XYZ"), "3.00"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("%#v.String() = %q, want %q", tt.m.Decimal().String(), got, tt.want)
		}
	}
}

func TestMoney_WeakCurrency(t *testing.T) {
	if got := NO(1).Add(EUR(2)); !got.Equal(EUR(3)) {
		t.Errorf("NO(1)+EUR(2) = %v %s, want 3 EUR", got.Decimal(), got.Currency())
	}
	if got := EUR(2).Sub(NO(1)); !got.Equal(EUR(1)) {
		t.Errorf("EUR(2)-NO(1) = %v %s, want 1 EUR", got.Decimal(), got.Currency())
	}
	defer func() {
		if recover() == nil {
			t.Error("adding EUR and USD did not panic")
		}
	}()
	EUR(1).Add(M(1, "USD"))
}

func TestMoney_CmpAbs(t *testing.T) {
	if NO(-10).CmpAbs(NO(5)) != 1 || NO(5).CmpAbs(NO(-5)) != 0 || NO(0).CmpAbs(NO(-1)) != -1 {
		t.Error("CmpAbs does not compare absolute values")
	}
}

func TestQuantity_IsWhole(t *testing.T) {
	for _, tt := range []struct {
		q    Quantity
		want bool
	}{
		{Q(3), true},
		{Q(3.0), true},
		{Q(2.5), false},
	} {
		if got := tt.q.IsWhole(); got != tt.want {
			t.Errorf("%v.IsWhole() = %v, want %v", tt.q, got, tt.want)
		}
	}
}
