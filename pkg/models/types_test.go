package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionItemUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want SelectionItem
	}{
		{
			name: "current key",
			raw:  `{"on":false,"entry_name":"a.safetensors","strength":0.5,"strength_clip":0.25,"use_trigger":false}`,
			want: SelectionItem{On: false, EntryName: "a.safetensors", Strength: 0.5, StrengthClip: Float(0.25), UseTrigger: false},
		},
		{
			name: "legacy lora key",
			raw:  `{"on":true,"lora":"sub/b.safetensors","strength":1.2}`,
			want: SelectionItem{On: true, EntryName: "sub/b.safetensors", Strength: 1.2, UseTrigger: true},
		},
		{
			name: "missing flags default to enabled",
			raw:  `{"entry_name":"c.pt"}`,
			want: SelectionItem{On: true, EntryName: "c.pt", Strength: 1.0, UseTrigger: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SelectionItem
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectionItemMarshalUsesEntryName(t *testing.T) {
	data, err := json.Marshal(SelectionItem{On: true, EntryName: "a", Strength: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":true,"entry_name":"a","strength":1,"use_trigger":false}`, string(data))
}

func TestSelectionItemCloneDoesNotAlias(t *testing.T) {
	orig := SelectionItem{EntryName: "a", StrengthClip: Float(0.5)}
	cp := orig.Clone()
	*cp.StrengthClip = 2
	assert.Equal(t, 0.5, *orig.StrengthClip)
	assert.Equal(t, 0.5, orig.ClipStrength())
	assert.Equal(t, 1.0, SelectionItem{Strength: 1}.ClipStrength())
}

func TestCatalogEntryDefaults(t *testing.T) {
	var e CatalogEntry
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x.safetensors"}`), &e))
	assert.Equal(t, 1.0, e.PreferredWeight)
	assert.Equal(t, "Unknown", e.SDVersion)
	assert.Equal(t, PreviewNone, e.PreviewKind)
	assert.NotNil(t, e.Tags)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"y","activation text":"tok","preferred weight":0.7,"tags":["a","a"]}`), &e))
	assert.Equal(t, "tok", e.TriggerText)
	assert.Equal(t, 0.7, e.PreferredWeight)
	assert.Equal(t, []string{"a"}, e.DisplayTags())
}

func TestMetadataUpdate(t *testing.T) {
	t.Run("nil tags are sent as null", func(t *testing.T) {
		data, err := json.Marshal(MetadataUpdate{Notes: String("n")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"tags":null,"notes":"n"}`, string(data))
	})

	t.Run("apply only touches set fields", func(t *testing.T) {
		e := CatalogEntry{Name: "a", TriggerText: "old", Notes: "keep", Tags: []string{"x"}}
		MetadataUpdate{TriggerText: String("new"), Tags: []string{" y ", ""}}.Apply(&e)
		assert.Equal(t, "new", e.TriggerText)
		assert.Equal(t, "keep", e.Notes)
		assert.Equal(t, []string{"y"}, e.Tags)
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, MetadataUpdate{}.Empty())
		assert.False(t, MetadataUpdate{Tags: []string{}}.Empty())
	})
}

func TestTagModeHelpers(t *testing.T) {
	assert.Equal(t, TagModeAND, ParseTagMode(" and "))
	assert.Equal(t, TagModeOR, ParseTagMode(""))
	assert.Equal(t, TagModeAND, TagModeOR.Flip())
	assert.Equal(t, TagModeOR, TagModeAND.Flip())
}

func TestPresetBookCloneAndNames(t *testing.T) {
	book := PresetBook{"b": {{EntryName: "x"}}, "A": {{EntryName: "y"}}}
	cp := book.Clone()
	cp["b"][0].EntryName = "changed"
	assert.Equal(t, "x", book["b"][0].EntryName)
	assert.Equal(t, []string{"A", "b"}, book.Names())
}
