package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyValueSetTypedValue(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		in      any
		want    any
		wantErr error
	}{
		{name: "int from string", kind: KindInt, in: "42", want: int64(42)},
		{name: "int from int", kind: KindInt, in: 7, want: int64(7)},
		{name: "blank int clears", kind: KindInt, in: "  ", want: nil},
		{name: "int rejects words", kind: KindInt, in: "many", wantErr: ErrTypeMismatch},
		{name: "text from int", kind: KindText, in: 12, want: "12"},
		{name: "varchar keeps string", kind: KindVarChar, in: "Oryza", want: "Oryza"},
		{name: "nil clears", kind: KindText, in: nil, want: nil},
		{name: "unknown kind", kind: Kind("blob"), in: "x", wantErr: ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewPropertyValue("organism", "field", "value", "", 0)
			err := v.SetTypedValue(tt.kind, tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Value())
		})
	}
}

func TestIsEmptyValue(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, true},
		{"", true},
		{"   ", true},
		{"0", true},
		{0, true},
		{int64(0), true},
		{false, true},
		{[]byte{}, true},
		{"Oryza", false},
		{int64(12), false},
		{3.5, false},
		{true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsEmptyValue(tt.in), "IsEmptyValue(%#v)", tt.in)
	}
}

func TestValuesEntriesOrder(t *testing.T) {
	def := &FieldDefinition{Name: "b_field", BaseTable: "organism"}
	v := Values{}
	for _, e := range []struct {
		field string
		delta int
		key   string
	}{
		{"b_field", 1, "value"},
		{"b_field", 0, "value"},
		{"a_field", 0, "record_id"},
		{"b_field", 0, "rank"},
	} {
		pt := NewIntPropertyType("organism", e.field, e.key, "", StorageSettings{Action: ActionStore})
		v.Set(e.field, e.delta, e.key, &PropertyInfo{
			Value:      NewPropertyValue("organism", e.field, e.key, "", 0),
			Type:       pt,
			Definition: def,
		})
	}

	var got []string
	for _, e := range v.Entries() {
		got = append(got, e.Field+"/"+e.Key+"/"+string(rune('0'+e.Delta)))
	}
	assert.Equal(t, []string{
		"a_field/record_id/0",
		"b_field/rank/0",
		"b_field/value/0",
		"b_field/value/1",
	}, got)

	_, ok := v.Get("b_field", 2, "value")
	assert.False(t, ok)
	assert.Nil(t, v.Value("missing", 0, "value"))
}
