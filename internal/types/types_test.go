// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import "testing"

func TestStructLayout_CharThenInt(t *testing.T) {
	// struct { char a; int b; } -> size 8, align 4 (§8 boundary case).
	members := []*Member{
		{Name: "a", Type: TyChar},
		{Name: "b", Type: TyInt},
	}
	st := NewStructType("", members)
	if st.Size != 8 {
		t.Errorf("Size = %d, want 8", st.Size)
	}
	if st.Align != 4 {
		t.Errorf("Align = %d, want 4", st.Align)
	}
	if members[1].Offset != 4 {
		t.Errorf("members[1].Offset = %d, want 4", members[1].Offset)
	}
}

func TestUnionLayout_MaxSize(t *testing.T) {
	members := []*Member{
		{Name: "a", Type: TyChar},
		{Name: "b", Type: TyLong},
	}
	ut := NewUnionType("", members)
	if ut.Size != 8 {
		t.Errorf("Size = %d, want 8", ut.Size)
	}
	for _, m := range members {
		if m.Offset != 0 {
			t.Errorf("member %s offset = %d, want 0", m.Name, m.Offset)
		}
	}
}

func TestCommonType_IntLong(t *testing.T) {
	got := CommonType(TyInt, TyLong)
	if got != TyLong {
		t.Errorf("CommonType(int, long) = %v, want TyLong", got)
	}
}

func TestCommonType_UnsignedWins(t *testing.T) {
	got := CommonType(TyInt, TyUInt)
	if !got.Unsigned || got.Size != 4 {
		t.Errorf("CommonType(int, uint) = %+v, want unsigned 4-byte", got)
	}
}

func TestCommonType_FloatPromotesToDouble(t *testing.T) {
	got := CommonType(TyFloat, TyDouble)
	if got != TyDouble {
		t.Errorf("CommonType(float, double) = %v, want TyDouble", got)
	}
}

func TestPromoteInt_CharToInt(t *testing.T) {
	if PromoteInt(TyChar) != TyInt {
		t.Errorf("PromoteInt(char) != TyInt")
	}
	if PromoteInt(TyLong) != TyLong {
		t.Errorf("PromoteInt(long) should be unchanged")
	}
}

func TestAlignTo(t *testing.T) {
	cases := []struct{ n, align, want int }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{5, 4, 8},
	}
	for _, c := range cases {
		if got := AlignTo(c.n, c.align); got != c.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", c.n, c.align, got, c.want)
		}
	}
}
