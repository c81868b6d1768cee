package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/client"
	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/stretchr/testify/require"
)

// fakeRemote records every call. Errors are preset per operation.
type fakeRemote struct {
	client.Client

	mu       sync.Mutex
	snapshot []*models.Device
	listErr  error

	createErr   error
	createEcho  func(name, os, manufacturer string) *models.Device
	checkInErr  error
	checkOutErr error
	deleteErr   error

	listCalls int
	calls     []string

	inList    int
	maxInList int
	listDelay time.Duration
}

func (f *fakeRemote) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRemote) List(ctx context.Context) ([]*models.Device, error) {
	f.mu.Lock()
	f.listCalls++
	f.inList++
	if f.inList > f.maxInList {
		f.maxInList = f.inList
	}
	delay := f.listDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inList--
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Device, 0, len(f.snapshot))
	for _, d := range f.snapshot {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, name, os, manufacturer string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create %s/%s/%s", name, os, manufacturer)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createEcho != nil {
		return f.createEcho(name, os, manufacturer), nil
	}
	return nil, nil
}

func (f *fakeRemote) SetCheckedIn(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("checkin %d", id)
	return f.checkInErr
}

func (f *fakeRemote) SetCheckedOut(ctx context.Context, id int64, by string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("checkout %d %s %s", id, by, models.FormatWireTime(at))
	return f.checkOutErr
}

func (f *fakeRemote) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete %d", id)
	return f.deleteErr
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// switchable reachability for tests.
type reach struct {
	mu     sync.Mutex
	online bool
	asked  int
}

func (r *reach) IsOnline(context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asked++
	return r.online
}

func (r *reach) set(online bool) {
	r.mu.Lock()
	r.online = online
	r.mu.Unlock()
}

var errDown = fmt.Errorf("%w: connection refused", common.ErrTransport)

func newRepos(t *testing.T) *client.Repositories {
	t.Helper()
	repos, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func dev(id int64, name string) *models.Device {
	return &models.Device{ID: id, Name: name, OS: "OS", Manufacturer: "Maker"}
}

func checkedOut(id int64, name, by string, at time.Time) *models.Device {
	d := dev(id, name)
	d.CheckOut(by, at)
	return d
}

func tagged(d *models.Device, op models.PendingOperation) *models.Device {
	d.PendingOperation = op
	return d
}
