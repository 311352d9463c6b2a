package session

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tactline/internal/engine"
	"github.com/roach88/tactline/internal/ir"
	"github.com/roach88/tactline/internal/store"
	"github.com/roach88/tactline/internal/testutil"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRegistryCreateAndProcess(t *testing.T) {
	dir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	r := NewRegistry(WithIDGenerator(NewFixedGenerator("s-1")))
	ctx := t.Context()

	sess, err := r.Create(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "s-1", sess.ID)
	assert.Equal(t, dir, sess.KBSource)
	assert.Equal(t, ir.MustKBHash(testutil.IntervalEventKB()), sess.KBHash)

	tact, err := r.CurrentTact("s-1")
	require.NoError(t, err)
	assert.Equal(t, engine.NotStarted, tact)

	require.NoError(t, r.UpdateWM("s-1", testutil.Items("sensor.attr2", 1), false))
	res, err := r.ProcessTact(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Tact)

	snap, err := r.Timeline("s-1")
	require.NoError(t, err)
	require.Len(t, snap.Tacts, 1)
	require.Len(t, snap.Tacts[0].OpenedIntervals, 1)
	assert.Equal(t, "I", snap.Tacts[0].OpenedIntervals[0].Interval)
}

func TestRegistryUnknownSession(t *testing.T) {
	r := NewRegistry()
	ctx := t.Context()

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.ProcessTact(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.UpdateWM("nope", nil, false), ErrNotFound)
	assert.ErrorIs(t, r.Reset(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "nope"), ErrNotFound)
	_, err = r.Timeline("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	r := NewRegistry(WithIDGenerator(NewFixedGenerator("a", "b")))
	ctx := t.Context()

	_, err := r.CreateWithKB(ctx, testutil.IntervalEventKB(), "")
	require.NoError(t, err)
	_, err = r.CreateWithKB(ctx, testutil.IntervalEventKB(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.IDs())

	_, err = r.ProcessTact(ctx, "a")
	require.NoError(t, err)
	_, err = r.ProcessTact(ctx, "a")
	require.NoError(t, err)

	ta, _ := r.CurrentTact("a")
	tb, _ := r.CurrentTact("b")
	assert.Equal(t, 1, ta)
	assert.Equal(t, engine.NotStarted, tb)

	require.NoError(t, r.Reset(ctx, "a"))
	ta, _ = r.CurrentTact("a")
	assert.Equal(t, engine.NotStarted, ta)

	require.NoError(t, r.Delete(ctx, "b"))
	assert.Equal(t, []string{"a"}, r.IDs())
}

func TestRegistryRejectsInvalidKB(t *testing.T) {
	dir := testutil.WriteKBDir(t, `rule: R: condition: {allen: "b", left: {event: "E"}, right: {interval: "I"}}`)
	r := NewRegistry()

	_, err := r.Create(t.Context(), dir)
	require.Error(t, err)
	assert.True(t, IsKBError(err))
	assert.Contains(t, err.Error(), "undefined event")
}

func TestRegistryLoadKBIsCached(t *testing.T) {
	dir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	r := NewRegistry()

	var wg sync.WaitGroup
	kbs := make([]*ir.KnowledgeBase, 8)
	for i := range kbs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kb, err := r.LoadKB(dir)
			assert.NoError(t, err)
			kbs[i] = kb
		}()
	}
	wg.Wait()

	again, err := r.LoadKB(dir)
	require.NoError(t, err)
	for _, kb := range kbs {
		assert.Same(t, again, kb)
	}
}

func TestRegistryLoadKBKeysOnCleanAbsolutePath(t *testing.T) {
	dir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	t.Chdir(filepath.Dir(dir))
	r := NewRegistry(WithIDGenerator(NewFixedGenerator("s-1")))

	kb, err := r.LoadKB(dir)
	require.NoError(t, err)
	for _, spelling := range []string{
		dir + "/",
		dir + "/./",
		filepath.Join(dir, "..", filepath.Base(dir)),
		filepath.Base(dir),
		"./" + filepath.Base(dir),
	} {
		got, err := r.LoadKB(spelling)
		require.NoError(t, err, spelling)
		assert.Same(t, kb, got, spelling)
	}

	sess, err := r.Create(t.Context(), "./"+filepath.Base(dir)+"/")
	require.NoError(t, err)
	assert.Equal(t, dir, sess.KBSource)
}

func TestRegistryConcurrentTactsOnOneSession(t *testing.T) {
	r := NewRegistry(WithIDGenerator(NewFixedGenerator("s")))
	ctx := t.Context()
	_, err := r.CreateWithKB(ctx, testutil.IntervalEventKB(), "")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ProcessTact(ctx, "s")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	tact, err := r.CurrentTact("s")
	require.NoError(t, err)
	assert.Equal(t, n-1, tact)

	snap, err := r.Timeline("s")
	require.NoError(t, err)
	assert.Len(t, snap.Tacts, n)
}

func TestRegistryFailedUpdateIsNotLogged(t *testing.T) {
	st := newTestStore(t)
	r := NewRegistry(WithStore(st), WithIDGenerator(NewFixedGenerator("s")))
	ctx := t.Context()
	_, err := r.CreateWithKB(ctx, testutil.IntervalEventKB(), "mem")
	require.NoError(t, err)

	require.NoError(t, r.UpdateWM("s", testutil.Items("sensor.attr2", 1), false))
	err = r.UpdateWM("s", testutil.Items("sensor.attr2", "high"), false)
	require.Error(t, err)
	assert.True(t, engine.IsInputError(err))

	_, err = r.ProcessTact(ctx, "s")
	require.NoError(t, err)

	rows, err := st.ReadTacts(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Inputs, 1)
	assert.Equal(t, "sensor.attr2", rows[0].Inputs[0].Items[0].Ref)
}

func TestRegistryWithStoreReplays(t *testing.T) {
	st := newTestStore(t)
	dir := testutil.WriteKBDir(t, testutil.IntervalEventCUE)
	r := NewRegistry(WithStore(st), WithIDGenerator(NewFixedGenerator("s")))
	ctx := t.Context()

	_, err := r.Create(ctx, dir)
	require.NoError(t, err)

	steps := [][]ir.WMItem{
		testutil.Items("sensor.attr2", 4, "sensor.attr1", 2),
		testutil.Items("sensor.attr2", 1),
		testutil.Items("sensor.attr1", 6),
	}
	for _, items := range steps {
		require.NoError(t, r.UpdateWM("s", items, false))
		_, err := r.ProcessTact(ctx, "s")
		require.NoError(t, err)
	}

	kb, err := r.LoadKB(dir)
	require.NoError(t, err)
	report, err := st.ReplaySession(ctx, kb, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Tacts)
	assert.True(t, report.Deterministic())

	// Reset moves the log to a new epoch.
	require.NoError(t, r.Reset(ctx, "s"))
	_, err = r.ProcessTact(ctx, "s")
	require.NoError(t, err)
	rows, err := st.ReadTacts(ctx, "s", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, r.Delete(ctx, "s"))
	_, err = st.GetSession(ctx, "s")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestKBErrorMessage(t *testing.T) {
	err := &KBError{Source: "kb/", Errors: nil}
	assert.Equal(t, "knowledge base kb/ failed validation: ", err.Error())
	assert.False(t, IsKBError(errors.New("other")))
}
