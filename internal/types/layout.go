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

// NewStructType lays out members sequentially, each aligned up to its own
// alignment, then rounds the aggregate size up to the max member
// alignment (§4.3). members is mutated in place: Offset is filled in.
func NewStructType(tag string, members []*Member) *Type {
	offset := 0
	align := 1
	for _, m := range members {
		offset = AlignTo(offset, m.Type.Align)
		m.Offset = offset
		offset += m.Type.Size
		if m.Type.Align > align {
			align = m.Type.Align
		}
	}
	return &Type{
		Kind:    Struct,
		Size:    AlignTo(offset, align),
		Align:   align,
		Members: members,
		Name:    tag,
	}
}

// NewUnionType places every member at offset 0; the union's size is the
// max member size rounded up to the max member alignment.
func NewUnionType(tag string, members []*Member) *Type {
	size := 0
	align := 1
	for _, m := range members {
		m.Offset = 0
		if m.Type.Size > size {
			size = m.Type.Size
		}
		if m.Type.Align > align {
			align = m.Type.Align
		}
	}
	return &Type{
		Kind:    Union,
		Size:    AlignTo(size, align),
		Align:   align,
		Members: members,
		Name:    tag,
	}
}

// FindMember looks up a member by name, returning nil if absent.
func (t *Type) FindMember(name string) *Member {
	for _, m := range t.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}
