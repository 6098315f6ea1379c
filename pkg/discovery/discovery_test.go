package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrowse replays found and lost services, then waits for ctx.
func fakeBrowse(found []*CoreService, lost []*CoreService) browseFunc {
	return func(ctx context.Context, f, l chan<- *CoreService) error {
		for _, svc := range found {
			select {
			case f <- svc:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, svc := range lost {
			select {
			case l <- svc:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		<-ctx.Done()
		return nil
	}
}

func newTestBrowser(config BrowserConfig, fn browseFunc) *Browser {
	b := NewBrowser(config)
	b.browse = fn
	return b
}

func TestCoreTXT(t *testing.T) {
	info := &CoreInfo{CoreID: "core-1", Name: "Living Core", Version: "2.1"}
	strs := TXTRecordsToStrings(EncodeCoreTXT(info))
	assert.Equal(t, []string{"id=core-1", "name=Living Core", "ver=2.1"}, strs)

	got, err := DecodeCoreTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)
	assert.Equal(t, "core-1", got.CoreID)
	assert.Equal(t, "Living Core", got.Name)
	assert.Equal(t, "2.1", got.Version)

	_, err = DecodeCoreTXT(TXTRecordMap{TXTKeyName: "nameless"})
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"id=a=b", "flag", ""})
	assert.Equal(t, "a=b", txt["id"])
	v, ok := txt["flag"]
	assert.True(t, ok)
	assert.Empty(t, v)
	assert.Len(t, txt, 2)
}

func TestCoreServiceAddress(t *testing.T) {
	tests := []struct {
		name string
		svc  CoreService
		want string
		err  error
	}{
		{"ipv4 preferred", CoreService{Port: 9330, Addresses: []string{"fe80::1", "192.168.1.20"}}, "192.168.1.20:9330", nil},
		{"ipv6 only", CoreService{Port: 9330, Addresses: []string{"fe80::1"}}, "[fe80::1]:9330", nil},
		{"host fallback", CoreService{Host: "core.local.", Port: 1}, "core.local.:1", nil},
		{"nothing", CoreService{Port: 1, Addresses: []string{"bogus"}}, "", ErrNoAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.svc.Address()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBrowseAggregatesInstances(t *testing.T) {
	b := newTestBrowser(BrowserConfig{}, fakeBrowse([]*CoreService{
		{InstanceName: "Core", CoreID: "c1", Addresses: []string{"10.0.0.1"}},
		{InstanceName: "Core", CoreID: "c1", Addresses: []string{"fe80::1"}},
		{InstanceName: "Other", CoreID: "c2", Addresses: []string{"10.0.0.2"}},
	}, nil))
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	results, err := b.Browse(ctx)
	require.NoError(t, err)

	first := <-results
	assert.Equal(t, "c1", first.CoreID)
	second := <-results
	assert.Equal(t, "c2", second.CoreID)

	b.Stop()
	_, ok := <-results
	assert.False(t, ok)
}

func TestFindCore(t *testing.T) {
	services := []*CoreService{
		{InstanceName: "A", CoreID: "a", Port: 9330, Addresses: []string{"10.0.0.1"}},
		{InstanceName: "B", CoreID: "b", Port: 9331, Addresses: []string{"10.0.0.2"}},
	}

	b := newTestBrowser(BrowserConfig{}, fakeBrowse(services, nil))
	svc, err := b.FindCore(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "B", svc.InstanceName)

	svc, err = b.FindCore(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "A", svc.InstanceName)
	b.Stop()
}

func TestFindCoreTimeout(t *testing.T) {
	b := newTestBrowser(BrowserConfig{}, fakeBrowse(nil, nil))
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.FindCore(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolve(t *testing.T) {
	b := newTestBrowser(BrowserConfig{CoreID: "b", Timeout: time.Second}, fakeBrowse([]*CoreService{
		{InstanceName: "A", CoreID: "a", Port: 9330, Addresses: []string{"10.0.0.1"}},
		{InstanceName: "B", CoreID: "b", Port: 9331, Addresses: []string{"10.0.0.2"}},
	}, nil))
	defer b.Stop()

	addr, err := b.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2:9331", addr)
}

func TestResolveNoAddress(t *testing.T) {
	b := newTestBrowser(BrowserConfig{Timeout: time.Second}, fakeBrowse([]*CoreService{
		{InstanceName: "A", CoreID: "a"},
	}, nil))
	defer b.Stop()

	_, err := b.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrNoAddress))
}

func TestBrowseFailureClosesNothing(t *testing.T) {
	b := newTestBrowser(BrowserConfig{}, func(context.Context, chan<- *CoreService, chan<- *CoreService) error {
		return errors.New("no multicast interface")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := b.FindCore(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	merged := mergeAddresses([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, merged)

	left := removeAddresses(merged, []string{"a", "c"})
	assert.Equal(t, []string{"b"}, left)
}

func TestValidateInstanceName(t *testing.T) {
	assert.NoError(t, ValidateInstanceName("Living Core"))
	assert.ErrorIs(t, ValidateInstanceName(""), ErrInstanceNameTooLong)

	long := make([]byte, MaxInstanceNameLen+1)
	for i := range long {
		long[i] = 'x'
	}
	assert.ErrorIs(t, ValidateInstanceName(string(long)), ErrInstanceNameTooLong)
}

func TestAdvertiserUpdateWithoutAdvertise(t *testing.T) {
	a := NewAdvertiser(DefaultAdvertiserConfig())
	assert.ErrorIs(t, a.Update(&CoreInfo{CoreID: "x"}), ErrNotFound)
	a.Stop()
}
