package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/client/repositories/devices"
	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2017, 7, 3, 10, 0, 0, 0, time.UTC)

func confirmed() Options {
	return Options{Policy: PolicyConfirmed, MaxDeleteAttempts: 2}
}

func optimistic() Options {
	return Options{Policy: PolicyOptimistic}
}

func seed(t *testing.T, store devices.Repository, list ...*models.Device) {
	t.Helper()
	for _, d := range list {
		require.NoError(t, store.Insert(context.Background(), d))
	}
}

func all(t *testing.T, store devices.Repository) []*models.Device {
	t.Helper()
	list, err := store.Scan(context.Background(), devices.All())
	require.NoError(t, err)
	return list
}

func get(t *testing.T, store devices.Repository, id int64) *models.Device {
	t.Helper()
	d, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return d
}

func TestPullMerge_IsIdempotent(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)
	ctx := context.Background()

	seed(t, repos.Devices, dev(1, "old"))
	snapshot := []*models.Device{dev(1, "iPhone"), checkedOut(2, "Pixel", "Ann", t0), dev(3, "iPad")}

	var rep Report
	r.pullMerge(ctx, snapshot, &rep)
	first := all(t, repos.Devices)
	assert.Equal(t, 2, rep.Inserted)
	assert.Equal(t, 1, rep.Refreshed)

	r.pullMerge(ctx, snapshot, &rep)
	second := all(t, repos.Devices)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second pull changed the store (-first +second):\n%s", diff)
	}
}

func TestPullMerge_RemoteWinsForSyncedRows(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)

	seed(t, repos.Devices, checkedOut(1, "iPhone", "Bob", t0))
	var rep Report
	r.pullMerge(context.Background(), []*models.Device{dev(1, "iPhone")}, &rep)

	got := get(t, repos.Devices, 1)
	assert.False(t, got.IsCheckedOut)
	assert.Nil(t, got.LastCheckedOutBy)
	assert.Nil(t, got.LastCheckedOutDate)
}

func TestPullMerge_LocalEditWins(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)

	local := tagged(checkedOut(7, "iPhone", "Ann", t0), models.OpCheckOut)
	seed(t, repos.Devices, local)

	remote := checkedOut(7, "iPhone", "Bob", t0.Add(time.Hour))
	var rep Report
	r.pullMerge(context.Background(), []*models.Device{remote}, &rep)

	got := get(t, repos.Devices, 7)
	if diff := cmp.Diff(local, got); diff != "" {
		t.Fatalf("pending row changed (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, rep.Preserved)
}

func TestBootstrap_FillsEmptyStore(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{}
	r := NewReconciler(repos.Devices, remote, confirmed(), nil)
	ctx := context.Background()

	snapshot := []*models.Device{dev(1, "a"), dev(2, "b"), checkedOut(3, "c", "Ann", t0), dev(4, "d")}
	_, err := r.Reconcile(ctx, snapshot)
	require.NoError(t, err)

	list := all(t, repos.Devices)
	require.Len(t, list, 4)
	for _, d := range list {
		assert.Equal(t, models.OpSynced, d.PendingOperation)
	}
	assert.Empty(t, remote.Calls())
}

func TestBootstrap_DirectInsertWhenStoreEmpty(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)

	var rep Report
	require.NoError(t, r.bootstrap(context.Background(), []*models.Device{dev(1, "a"), dev(2, "b")}, &rep))
	assert.Equal(t, 2, rep.Bootstrapped)

	// a non-empty store is left alone
	require.NoError(t, r.bootstrap(context.Background(), []*models.Device{dev(3, "c")}, &rep))
	assert.Len(t, all(t, repos.Devices), 2)
}

func TestPurge_OptimisticRemovesEveryDelete(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{deleteErr: errDown}
	r := NewReconciler(repos.Devices, remote, optimistic(), nil)

	seed(t, repos.Devices,
		tagged(dev(1, "a"), models.OpDelete),
		tagged(dev(2, "b"), models.OpDelete),
		dev(3, "c"))

	rep, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Purged)
	left, err := repos.Devices.Scan(context.Background(), devices.WithOperation(models.OpDelete))
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.ElementsMatch(t, []string{"delete 1", "delete 2"}, remote.Calls())
}

func TestPurge_ConfirmedRetainsUntilAttemptsExhausted(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{deleteErr: errDown}
	r := NewReconciler(repos.Devices, remote, confirmed(), nil)
	ctx := context.Background()

	seed(t, repos.Devices, tagged(dev(3, "a"), models.OpDelete))

	rep, err := r.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Retained)
	got := get(t, repos.Devices, 3)
	assert.Equal(t, models.OpDelete, got.PendingOperation)
	assert.Equal(t, 1, got.DeleteAttempts)

	rep, err = r.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Purged)
	_, err = repos.Devices.GetByID(ctx, 3)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, []string{"delete 3", "delete 3"}, remote.Calls())
}

func TestPurge_ConfirmedRemovesConfirmedDelete(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)

	seed(t, repos.Devices, tagged(dev(3, "a"), models.OpDelete), dev(4, "b"))
	rep, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Purged)
	assert.Len(t, all(t, repos.Devices), 1)
}

func TestPush_FailedReplayDependsOnPolicy(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want models.PendingOperation
	}{
		{name: "confirmed keeps the tag", opts: confirmed(), want: models.OpCheckIn},
		{name: "optimistic clears the tag", opts: optimistic(), want: models.OpSynced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := newRepos(t)
			remote := &fakeRemote{checkInErr: errDown}
			r := NewReconciler(repos.Devices, remote, tt.opts, nil)

			seed(t, repos.Devices, tagged(dev(5, "a"), models.OpCheckIn))
			rep, err := r.Reconcile(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, 1, rep.Failed)
			assert.Equal(t, tt.want, get(t, repos.Devices, 5).PendingOperation)
			assert.Equal(t, []string{"checkin 5"}, remote.Calls())
		})
	}
}

func TestPush_ConfirmedRetriesOnNextCycle(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{checkInErr: errDown}
	r := NewReconciler(repos.Devices, remote, confirmed(), nil)
	ctx := context.Background()

	seed(t, repos.Devices, tagged(dev(5, "a"), models.OpCheckIn))
	_, err := r.Reconcile(ctx, nil)
	require.NoError(t, err)

	remote.mu.Lock()
	remote.checkInErr = nil
	remote.mu.Unlock()

	rep, err := r.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Pushed)
	assert.Equal(t, models.OpSynced, get(t, repos.Devices, 5).PendingOperation)
	assert.Equal(t, []string{"checkin 5", "checkin 5"}, remote.Calls())
}

func TestPush_MalformedCheckoutIsSkippedAndNormalized(t *testing.T) {
	for _, opts := range []Options{confirmed(), optimistic()} {
		t.Run(string(opts.Policy), func(t *testing.T) {
			repos := newRepos(t)
			remote := &fakeRemote{}
			r := NewReconciler(repos.Devices, remote, opts, nil)

			d := tagged(dev(8, "a"), models.OpCheckOut)
			d.IsCheckedOut = true
			seed(t, repos.Devices, d)

			rep, err := r.Reconcile(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, 1, rep.Malformed)
			assert.Equal(t, 1, rep.Normalized)
			assert.Empty(t, remote.Calls())
			assert.Equal(t, models.OpSynced, get(t, repos.Devices, 8).PendingOperation)
		})
	}
}

func TestNormalize_UnknownTag(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)

	seed(t, repos.Devices, tagged(dev(9, "a"), models.PendingOperation("rename")))
	_, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.OpSynced, get(t, repos.Devices, 9).PendingOperation)
}

func TestNoPendingTagSurvivesOptimisticCycle(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{createErr: errDown, checkInErr: errDown, checkOutErr: errDown, deleteErr: errDown}
	r := NewReconciler(repos.Devices, remote, optimistic(), nil)

	seed(t, repos.Devices,
		tagged(dev(1, "a"), models.OpAdd),
		tagged(dev(2, "b"), models.OpCheckIn),
		tagged(checkedOut(3, "c", "Ann", t0), models.OpCheckOut),
		tagged(dev(4, "d"), models.OpDelete))

	_, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)

	pending, err := repos.Devices.Scan(context.Background(), devices.PendingOnly())
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, all(t, repos.Devices), 3)
}

func TestCheckoutScenario_OfflineThenSync(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{snapshot: []*models.Device{dev(7, "iPhone")}}
	r := NewReconciler(repos.Devices, remote, confirmed(), nil)

	seed(t, repos.Devices, tagged(checkedOut(7, "iPhone", "Ann", t0), models.OpCheckOut))

	_, err := r.Reconcile(context.Background(), remote.snapshot)
	require.NoError(t, err)

	got := get(t, repos.Devices, 7)
	assert.True(t, got.IsCheckedOut)
	assert.Equal(t, "Ann", *got.LastCheckedOutBy)
	assert.True(t, t0.Equal(*got.LastCheckedOutDate))
	assert.Equal(t, models.OpSynced, got.PendingOperation)
	assert.Equal(t, []string{"checkout 7 Ann 2017-07-03T10:00:00+00:00"}, remote.Calls())
}

func TestCreate_AdoptsServerID(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{createEcho: func(name, os, manufacturer string) *models.Device {
		return &models.Device{ID: 500, Name: name, OS: os, Manufacturer: manufacturer}
	}}
	r := NewReconciler(repos.Devices, remote, Options{AdoptServerIDs: true}, nil)
	ctx := context.Background()

	seed(t, repos.Devices, tagged(dev(123456, "Pixel"), models.OpAdd))
	rep, err := r.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Remapped)

	_, err = repos.Devices.GetByID(ctx, 123456)
	require.ErrorIs(t, err, common.ErrNotFound)
	got := get(t, repos.Devices, 500)
	assert.Equal(t, models.OpSynced, got.PendingOperation)
	assert.Equal(t, "Pixel", got.Name)
}

func TestCreate_KeepsClientIDWhenServerIDTaken(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{createEcho: func(name, os, manufacturer string) *models.Device {
		return &models.Device{ID: 1, Name: name, OS: os, Manufacturer: manufacturer}
	}}
	r := NewReconciler(repos.Devices, remote, Options{AdoptServerIDs: true}, nil)

	seed(t, repos.Devices, dev(1, "existing"), tagged(dev(99, "Pixel"), models.OpAdd))
	rep, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Remapped)
	assert.Equal(t, models.OpSynced, get(t, repos.Devices, 99).PendingOperation)
}

func TestCreate_PushesCheckoutMadeBeforeCreate(t *testing.T) {
	repos := newRepos(t)
	remote := &fakeRemote{checkOutErr: errDown}
	r := NewReconciler(repos.Devices, remote, confirmed(), nil)

	seed(t, repos.Devices, tagged(checkedOut(42, "Pixel", "Ann", t0), models.OpAdd))
	_, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create Pixel/OS/Maker",
		"checkout 42 Ann 2017-07-03T10:00:00+00:00",
	}, remote.Calls())
	assert.Equal(t, models.OpCheckOut, get(t, repos.Devices, 42).PendingOperation)
}

func TestReconcile_PhasesRunInOrder(t *testing.T) {
	repos := newRepos(t)
	// remote still lists device 3; local has it queued for deletion
	remote := &fakeRemote{snapshot: []*models.Device{dev(3, "a"), dev(4, "b")}}
	r := NewReconciler(repos.Devices, remote, optimistic(), nil)

	seed(t, repos.Devices, tagged(dev(3, "a"), models.OpDelete))
	rep, err := r.Reconcile(context.Background(), remote.snapshot)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Preserved)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Purged)
	list := all(t, repos.Devices)
	require.Len(t, list, 1)
	assert.Equal(t, int64(4), list[0].ID)
}

func TestReconcile_StorageFailureAbortsPhases(t *testing.T) {
	repos := newRepos(t)
	r := NewReconciler(repos.Devices, &fakeRemote{}, confirmed(), nil)
	require.NoError(t, repos.DB.Close())

	rep, err := r.Reconcile(context.Background(), []*models.Device{dev(1, "a")})
	require.Error(t, err)
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, 1, rep.StorageErrors)
}

// flakyStore fails writes for the ids in broken and delegates the rest.
type flakyStore struct {
	devices.Repository
	broken map[int64]bool
}

func (s *flakyStore) Insert(ctx context.Context, d *models.Device) error {
	if s.broken[d.ID] {
		return fmt.Errorf("%w: disk full", common.ErrStorage)
	}
	return s.Repository.Insert(ctx, d)
}

func (s *flakyStore) Update(ctx context.Context, id int64, fn devices.Mutator) (*models.Device, error) {
	if s.broken[id] {
		return nil, fmt.Errorf("%w: disk full", common.ErrStorage)
	}
	return s.Repository.Update(ctx, id, fn)
}

func TestReconcile_StorageFailureSkipsOnlyThatRecord(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	seed(t, repos.Devices,
		tagged(dev(2, "b"), models.OpCheckIn),
		tagged(dev(5, "e"), models.OpCheckIn),
	)

	remote := &fakeRemote{}
	store := &flakyStore{Repository: repos.Devices, broken: map[int64]bool{2: true}}
	r := NewReconciler(store, remote, confirmed(), nil)

	rep, err := r.Reconcile(ctx, []*models.Device{dev(1, "a"), dev(2, "b"), dev(3, "c")})
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Inserted)
	assert.Equal(t, 1, rep.Preserved)
	assert.Equal(t, 2, rep.Pushed)
	assert.Equal(t, 1, rep.StorageErrors)
	assert.ElementsMatch(t, []string{"checkin 2", "checkin 5"}, remote.Calls())

	for _, id := range []int64{1, 3, 5} {
		assert.Equal(t, models.OpSynced, get(t, repos.Devices, id).PendingOperation, "id %d", id)
	}
	assert.Equal(t, models.OpCheckIn, get(t, repos.Devices, 2).PendingOperation)
}
