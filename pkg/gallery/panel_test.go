package gallery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

// run applies cmd and performs the fresh fetch it asks for, like the UI does
func run(t *testing.T, p *Panel, cmd Command) Effects {
	t.Helper()
	fx, err := p.Dispatch(cmd)
	require.NoError(t, err)
	if fx.FreshFetch {
		p.Fetch(context.Background(), true)
	}
	return fx
}

func TestPanel_EmptyCatalog(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	p := newTestPanel(remote, &fakeHost{})

	p.Start(ctx, false)
	assert.Empty(t, p.Entries())
	assert.Equal(t, models.PaginationCursor{CurrentPage: 1, TotalPages: 1}, p.Cursor())

	for i := 0; i < 3; i++ {
		assert.False(t, p.Fetch(ctx, false))
	}
	assert.Equal(t, 1, remote.fetchCount())
	p.Wait()
}

func TestPanel_ScrollsThroughPages(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 3, genNames("a", 50)...)
	remote.pages[2] = page(2, 3, genNames("b", 50)...)
	remote.pages[3] = page(3, 3, genNames("c", 10)...)
	p := newTestPanel(remote, &fakeHost{})

	p.Start(ctx, false)
	for i := 0; i < 10; i++ {
		p.Fetch(ctx, false)
	}

	assert.Equal(t, 3, remote.fetchCount())
	assert.Len(t, p.Entries(), 110)
	assert.False(t, p.Cursor().HasMore())

	p.FetchAll(ctx)
	assert.Equal(t, 6, remote.fetchCount())
	assert.Len(t, p.Entries(), 110)
	p.Wait()
}

func TestPanel_StaleResultIsDropped(t *testing.T) {
	remote := newFakeRemote()
	p := newTestPanel(remote, &fakeHost{})

	first, ok := p.BeginFetch(true)
	require.True(t, ok)
	second, ok := p.BeginFetch(true)
	require.True(t, ok)

	assert.True(t, p.ApplyFetch(second, page(1, 1, "new")))
	assert.False(t, p.ApplyFetch(first, page(1, 4, "old")))
	assert.Equal(t, []string{"new"}, names(p.Entries()))
	assert.Equal(t, 1, p.Cursor().TotalPages)
}

func TestPanel_FetchExcludesSelection(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a", "b", "c")
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	run(t, p, ToggleEntry{Name: "b"})
	run(t, p, ToggleEntry{Name: "a"})
	ticket, ok := p.BeginFetch(true)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, ticket.Excluded)

	p.ApplyFetch(ticket, p.RunFetch(ctx, ticket))
	last := remote.fetchCalls[len(remote.fetchCalls)-1]
	assert.Equal(t, []string{"b", "a"}, last.Excluded)
	p.Wait()
}

func TestPanel_StackEditsKeepPageOrder(t *testing.T) {
	tests := []struct {
		name   string
		host   []models.SelectionItem
		toggle string
	}{
		{"toggle off a pinned entry", []models.SelectionItem{{On: true, EntryName: "j", Strength: 1, UseTrigger: true}}, "j"},
		{"toggle on a loaded entry", nil, "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			remote := newFakeRemote()
			remote.catalog = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
			remote.perPage = 4
			host := &fakeHost{}
			if tt.host != nil {
				host = hostWith(t, tt.host)
			}
			p := newTestPanel(remote, host)

			p.Start(ctx, tt.host != nil)
			require.Equal(t, 3, p.Cursor().TotalPages)
			run(t, p, ToggleEntry{Name: tt.toggle})
			for p.Fetch(ctx, false) {
			}

			loaded := names(p.Entries())
			assert.ElementsMatch(t, remote.catalog, loaded)
			assert.Len(t, loaded, len(remote.catalog))
			assert.False(t, p.Cursor().HasMore())
			p.Wait()
		})
	}
}

func TestPanel_FreshFetchRepinsStack(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.catalog = []string{"a", "b", "c", "d", "e"}
	remote.perPage = 2
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	run(t, p, ToggleEntry{Name: "c"})
	p.Fetch(ctx, false)
	assert.Empty(t, remote.fetchCalls[len(remote.fetchCalls)-1].Excluded)

	p.Fetch(ctx, true)
	assert.Equal(t, []string{"c"}, remote.fetchCalls[len(remote.fetchCalls)-1].Excluded)
	assert.Equal(t, []string{"c", "a"}, names(p.Entries()))
	p.Wait()
}

func TestPanel_ToggleEntryUsesPreferredWeight(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	styled := entry("styleA")
	styled.PreferredWeight = 0.8
	remote.pages[1] = models.PageResult{Entries: []models.CatalogEntry{styled}, CurrentPage: 1, TotalPages: 1}
	host := &fakeHost{}
	p := newTestPanel(remote, host)
	p.Start(ctx, false)

	fx := run(t, p, ToggleEntry{Name: "styleA"})
	assert.False(t, fx.FreshFetch)
	assert.Equal(t, []models.SelectionItem{{
		On:           true,
		EntryName:    "styleA",
		Strength:     0.8,
		StrengthClip: models.Float(0.8),
		UseTrigger:   true,
	}}, p.Stack())
	assert.True(t, p.IsSelected("styleA"))
	assert.Equal(t, p.Stack(), hostItems(t, host))

	run(t, p, ToggleEntry{Name: "styleA"})
	assert.Empty(t, p.Stack())
	assert.Equal(t, "[]", host.raw)
	p.Wait()
}

func TestPanel_ModeFlipRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a")
	remote.uiState[testKey.String()] = map[string]any{"filter_tag": "style,anime"}
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	initial := p.Filters()
	before := remote.fetchCount()

	run(t, p, FlipMode{})
	assert.Equal(t, models.TagModeAND, p.Filters().Mode)
	run(t, p, FlipMode{})

	assert.Equal(t, initial, p.Filters())
	assert.Equal(t, before+2, remote.fetchCount())

	p.Wait()
	assert.Equal(t, "OR", remote.uiState[testKey.String()]["filter_mode"])
	assert.Equal(t, "style,anime", remote.uiState[testKey.String()]["filter_tag"])
}

func TestPanel_DispatchEffects(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a", "b", "c")
	remote.presets["P"] = twoItems()
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)
	run(t, p, ToggleEntry{Name: "a"})
	run(t, p, ToggleEntry{Name: "b"})

	tests := []struct {
		name  string
		cmd   Command
		fresh bool
	}{
		{"move", MoveItem{From: 0, To: 1}, false},
		{"set strength", SetItemField{Index: 0, Field: FieldStrength, Value: 0.4}, false},
		{"toggle all", ToggleAll{}, false},
		{"collapse", ToggleCollapsed{}, false},
		{"tag text", SetTagText{Text: "x"}, true},
		{"same tag text", SetTagText{Text: "x"}, false},
		{"toggle tag", ToggleTag{Tag: "y"}, true},
		{"clear tags", ClearTags{}, true},
		{"clear no tags", ClearTags{}, false},
		{"folder", SetFolder{Folder: "."}, true},
		{"same folder", SetFolder{Folder: "."}, false},
		{"remove", RemoveItem{Index: 0}, true},
		{"clear stack", ClearStack{}, true},
		{"load preset", LoadPreset{Name: "P"}, true},
	}

	for _, tt := range tests {
		fx, err := p.Dispatch(tt.cmd)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.fresh, fx.FreshFetch, tt.name)
	}
	assert.True(t, p.Collapsed())
	p.Wait()
}

func TestPanel_DispatchFailuresLeaveState(t *testing.T) {
	remote := newFakeRemote()
	p := newTestPanel(remote, &fakeHost{})
	run(t, p, ToggleEntry{Name: "a"})
	before := p.Stack()

	for _, cmd := range []Command{
		RemoveItem{Index: 3},
		MoveItem{From: 0, To: 2},
		SetItemField{Index: 0, Field: "weight", Value: 1.0},
		LoadPreset{Name: "missing"},
	} {
		fx, err := p.Dispatch(cmd)
		assert.Error(t, err)
		assert.Equal(t, Effects{}, fx)
	}
	assert.Equal(t, before, p.Stack())
	p.Wait()
}

func TestPanel_NameFilterDebounce(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "Anime", "Real", "animal")
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)
	before := remote.fetchCount()

	first, _ := p.Dispatch(SetNameFilter{Text: "an"})
	second, _ := p.Dispatch(SetNameFilter{Text: "ani"})
	assert.Equal(t, []string{"Anime", "animal"}, names(p.VisibleEntries()))

	stale, _ := p.Dispatch(DebounceExpired{Token: first.Debounce})
	assert.False(t, stale.FreshFetch)
	current, _ := p.Dispatch(DebounceExpired{Token: second.Debounce})
	assert.True(t, current.FreshFetch)

	assert.Equal(t, before, remote.fetchCount(), "keystrokes alone never fetch")
	p.Wait()
}

func TestPanel_PresetRoundTrip(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	p.stack.Replace(twoItems())
	original := p.Stack()
	require.NoError(t, p.SavePreset(ctx, "P1"))

	run(t, p, ClearStack{})
	assert.Empty(t, p.Stack())

	run(t, p, LoadPreset{Name: "P1"})
	loaded := p.Stack()
	assert.Equal(t, original, loaded)
	assert.Equal(t, "P1", p.ActivePreset())

	stored, err := p.Preset("P1")
	require.NoError(t, err)
	require.NoError(t, p.stack.SetField(0, FieldStrength, 1.9))
	assert.Equal(t, original, stored)
	assert.Empty(t, p.ActivePreset(), "editing the stack detaches the preset")

	again, _ := p.Preset("P1")
	assert.Equal(t, original, again)

	assert.ErrorIs(t, p.DeletePreset(ctx, "P1", false), ErrNotConfirmed)
	require.NoError(t, p.DeletePreset(ctx, "P1", true))
	assert.Empty(t, p.PresetNames())
	p.Wait()
}

func TestPanel_SetPresetsDropsMissingActive(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.presets["P1"] = twoItems()
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	run(t, p, LoadPreset{Name: "P1"})
	require.Equal(t, "P1", p.ActivePreset())

	p.SetPresets(models.PresetBook{"P1": twoItems(), "P2": twoItems()})
	assert.Equal(t, "P1", p.ActivePreset())
	assert.Equal(t, []string{"P1", "P2"}, p.PresetNames())

	p.SetPresets(models.PresetBook{"P2": twoItems()})
	assert.Empty(t, p.ActivePreset())
	p.Wait()
}

func TestPanel_StartDropsMissingFolder(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a")
	remote.uiState[testKey.String()] = map[string]any{"filter_folder": "deleted"}
	p := newTestPanel(remote, &fakeHost{})

	p.Start(ctx, false)
	require.Equal(t, 2, remote.fetchCount())
	assert.Equal(t, "deleted", remote.fetchCalls[0].Filters.Folder)
	assert.Equal(t, "", remote.fetchCalls[1].Filters.Folder)
	assert.Equal(t, "", p.Filters().Folder)

	p.Wait()
	assert.Equal(t, "", remote.uiState[testKey.String()]["filter_folder"])
}

func TestPanel_StartRestoresHostStack(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.tags = []string{"anime", "style"}
	remote.presets["P"] = twoItems()
	host := hostWith(t, twoItems())
	p := newTestPanel(remote, host)

	p.Start(ctx, true)
	assert.Equal(t, twoItems(), p.Stack())
	assert.Equal(t, []string{"anime", "style"}, p.Vocabulary())
	assert.Equal(t, []string{"P"}, p.PresetNames())
	assert.Equal(t, []string{"a", "b"}, remote.fetchCalls[0].Excluded)
	p.Wait()
}

func TestPanel_CommitEdit(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a")
	remote.tags = []string{"old"}
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	remote.tags = []string{"new", "old"}
	update := models.MetadataUpdate{
		Tags:        []string{"new", " old ", ""},
		TriggerText: models.String("trigger words"),
	}
	require.NoError(t, p.CommitEdit(ctx, "a", update))

	e, ok := p.Entry("a")
	require.True(t, ok)
	assert.Equal(t, []string{"new", "old"}, e.Tags)
	assert.Equal(t, "trigger words", e.TriggerText)
	assert.Equal(t, []string{"new", "old"}, p.Vocabulary())
	assert.Len(t, remote.updates["a"], 1)
}

func TestPanel_CommitEditFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a")
	remote.tags = []string{"old"}
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)
	before, _ := p.Entry("a")

	remote.updateErr = errRemote
	remote.tags = []string{"changed"}
	err := p.CommitEdit(ctx, "a", models.MetadataUpdate{Tags: []string{"x"}, Notes: models.String("n")})
	assert.ErrorIs(t, err, errRemote)

	after, _ := p.Entry("a")
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"old"}, p.Vocabulary())
}

func TestPanel_EditTags(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = models.PageResult{
		Entries:     []models.CatalogEntry{entry("a", "x", "shared"), entry("b", "shared")},
		CurrentPage: 1,
		TotalPages:  1,
	}
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	assert.Equal(t, []string{"shared"}, p.CommonTags([]string{"a", "b"}))

	require.NoError(t, p.EditTags(ctx, []string{"a", "b"}, "x", true))
	assert.Empty(t, remote.updates["a"], "a already has x")
	assert.Len(t, remote.updates["b"], 1)
	assert.ElementsMatch(t, []string{"shared", "x"}, p.CommonTags([]string{"a", "b"}))

	require.NoError(t, p.EditTags(ctx, []string{"a", "b"}, "shared", false))
	a, _ := p.Entry("a")
	assert.Equal(t, []string{"x"}, a.Tags)

	_, err := p.TagEdits([]string{"zzz"}, "x", true)
	assert.ErrorIs(t, err, ErrEntryNotLoaded)
	_, err = p.TagEdits([]string{"a"}, "bad,tag", true)
	assert.Error(t, err)
}

func TestPanel_Sync(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a")
	p := NewPanel(remote, &fakeHost{}, Options{
		Key:    testKey,
		Logger: logger.Discard(),
		Now:    func() time.Time { return now },
	})
	p.Start(ctx, false)

	remote.syncMeta = &models.SyncedMetadata{
		PreviewURL:  "/preview?lora_name=a",
		PreviewKind: models.PreviewImage,
		TriggerText: models.String("tw1, tw2"),
		DownloadURL: models.String("https://civitai.com/models/42"),
		Tags:        []string{"remote"},
	}

	t.Run("image only leaves text alone", func(t *testing.T) {
		meta, err := p.SyncEntry(ctx, "a", models.SyncOptions{Image: true, UpdateMemory: true})
		require.NoError(t, err)
		require.NotNil(t, meta)
		e, _ := p.Entry("a")
		assert.Equal(t, "/preview?lora_name=a", e.PreviewURL)
		assert.Equal(t, models.PreviewImage, e.PreviewKind)
		assert.Empty(t, e.TriggerText)
		assert.Equal(t, SyncIdle, p.SyncState("a"))
	})

	t.Run("without memory update nothing changes", func(t *testing.T) {
		_, err := p.SyncEntry(ctx, "a", models.SyncOptions{Meta: true})
		require.NoError(t, err)
		e, _ := p.Entry("a")
		assert.Empty(t, e.TriggerText)
	})

	t.Run("metadata", func(t *testing.T) {
		_, err := p.SyncEntry(ctx, "a", models.SyncOptions{Meta: true, UpdateMemory: true})
		require.NoError(t, err)
		e, _ := p.Entry("a")
		assert.Equal(t, "tw1, tw2", e.TriggerText)
		assert.Equal(t, "https://civitai.com/models/42", e.DownloadURL)
		assert.Equal(t, []string{"remote"}, e.Tags)
	})

	t.Run("failure shows a mark that expires", func(t *testing.T) {
		remote.syncErr = errRemote
		defer func() { remote.syncErr = nil }()

		p.BeginSync("a")
		assert.Equal(t, SyncLoading, p.SyncState("a"))

		_, err := p.SyncEntry(ctx, "a", models.SyncOptions{Image: true, Meta: true})
		assert.ErrorIs(t, err, errRemote)
		assert.Equal(t, SyncFailed, p.SyncState("a"))

		now = now.Add(DefaultSyncErrorDisplay - time.Millisecond)
		assert.Equal(t, SyncFailed, p.SyncState("a"))
		now = now.Add(time.Millisecond)
		assert.Equal(t, SyncIdle, p.SyncState("a"))
	})
	p.Wait()
}

func TestPanel_ApplyRemoteChange(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.pages[1] = page(1, 1, "a")
	p := newTestPanel(remote, &fakeHost{})
	p.Start(ctx, false)

	changed := entry("a", "fresh")
	changed.Notes = "edited elsewhere"
	assert.True(t, p.ApplyRemoteChange(changed))
	assert.False(t, p.ApplyRemoteChange(entry("unknown")))

	e, _ := p.Entry("a")
	assert.Equal(t, "edited elsewhere", e.Notes)
	assert.Len(t, p.Entries(), 1)
}
