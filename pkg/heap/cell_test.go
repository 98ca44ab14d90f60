package heap

import "testing"

func TestNilIsSelfReferential(t *testing.T) {
	if Nil.Car != Nil || Nil.Cdr != Nil || Nil.Tag != Nil {
		t.Fatalf("Nil's car/cdr/tag = %v/%v/%v, want Nil itself", Nil.Car, Nil.Cdr, Nil.Tag)
	}
	if Nil.Kind != KindNil {
		t.Errorf("Nil.Kind = %v, want KindNil", Nil.Kind)
	}
}

func TestIsNilAcceptsGoNilAndKindNil(t *testing.T) {
	if !IsNil(nil) {
		t.Error("IsNil(nil) = false, want true")
	}
	if !IsNil(Nil) {
		t.Error("IsNil(Nil) = false, want true")
	}
	other := &Cell{Kind: KindNil}
	if !IsNil(other) {
		t.Error("IsNil on a distinct KindNil cell = false, want true (identity isn't the only test)")
	}
	if IsNil(&Cell{Kind: KindSymbol}) {
		t.Error("IsNil(a symbol) = true, want false")
	}
}

func TestIsCell(t *testing.T) {
	for _, k := range []Kind{KindCons, KindLanguage, KindDots} {
		if !IsCell(&Cell{Kind: k}) {
			t.Errorf("IsCell(%v) = false, want true", k)
		}
	}
	if IsCell(Nil) {
		t.Error("IsCell(Nil) = true, want false")
	}
	if IsCell(nil) {
		t.Error("IsCell(nil) = true, want false")
	}
}

func TestSymEqStrAndSymEq(t *testing.T) {
	x := &Cell{Kind: KindSymbol, PrintName: newChar("x")}
	x2 := &Cell{Kind: KindSymbol, PrintName: newChar("x")}
	y := &Cell{Kind: KindSymbol, PrintName: newChar("y")}

	if !SymEqStr(x, "x") {
		t.Error("SymEqStr(x, \"x\") = false, want true")
	}
	if SymEqStr(x, "y") {
		t.Error("SymEqStr(x, \"y\") = true, want false")
	}
	if !SymEq(x, x2) {
		t.Error("SymEq(x, x2) = false, want true (same print-name, distinct cells)")
	}
	if SymEq(x, y) {
		t.Error("SymEq(x, y) = true, want false")
	}
	if SymEqStr(Nil, "x") {
		t.Error("SymEqStr(Nil, ...) = true, want false")
	}
}

func TestListBuilders(t *testing.T) {
	a, b, c := &Cell{Kind: KindSymbol}, &Cell{Kind: KindSymbol}, &Cell{Kind: KindSymbol}

	l1 := List1(a)
	if l1.Car != a || !IsNil(l1.Cdr) {
		t.Errorf("List1 = %+v, want (a . Nil)", l1)
	}

	l3 := List3(a, b, c)
	got := ListToSlice(l3)
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Errorf("ListToSlice(List3(a,b,c)) = %v, want [a b c]", got)
	}
	if ListLen(l3) != 3 {
		t.Errorf("ListLen(List3(...)) = %d, want 3", ListLen(l3))
	}

	empty := ListN()
	if !IsNil(empty) {
		t.Errorf("ListN() = %v, want Nil", empty)
	}
	if ListLen(empty) != 0 {
		t.Errorf("ListLen(ListN()) = %d, want 0", ListLen(empty))
	}
}

func TestKindIsVector(t *testing.T) {
	for _, k := range []Kind{KindLogical, KindInteger, KindDouble, KindComplex, KindRaw, KindString, KindList, KindExpression} {
		if !k.IsVector() {
			t.Errorf("%v.IsVector() = false, want true", k)
		}
	}
	for _, k := range []Kind{KindNil, KindSymbol, KindCons, KindClosure, KindEnvironment} {
		if k.IsVector() {
			t.Errorf("%v.IsVector() = true, want false", k)
		}
	}
}
