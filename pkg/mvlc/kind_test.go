package mvlc

import "testing"

func TestKindSize(t *testing.T) {
	cases := []struct {
		kind Kind
		want uint32
	}{
		{KindUnit, 0},
		{KindS64, 8},
	}
	for _, tc := range cases {
		if got := tc.kind.Size(); got != tc.want {
			t.Errorf("%v.Size() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestKindSizePanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Size() on unknown kind did not panic")
		}
	}()
	Kind(99).Size()
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("s64"); !ok || k != KindS64 {
		t.Errorf("ParseKind(s64) = (%v, %v), want (KindS64, true)", k, ok)
	}
	if k, ok := ParseKind("unit"); !ok || k != KindUnit {
		t.Errorf("ParseKind(unit) = (%v, %v), want (KindUnit, true)", k, ok)
	}
	if _, ok := ParseKind("bogus"); ok {
		t.Errorf("ParseKind(bogus) = ok, want not ok")
	}
}

func TestValueString(t *testing.T) {
	if got := S64Value(-5).String(); got != "-5" {
		t.Errorf("S64Value(-5).String() = %q, want -5", got)
	}
}

func TestUnitValueStringPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("UnitValue().String() did not panic")
		}
	}()
	UnitValue().String()
}
