package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory Remote. Gates, when set, block the matching call until
// closed; errors, when set, fail it.
type fakeRemote struct {
	mu       sync.Mutex
	comments map[string][]annotation.Comment
	nextID   int

	fetchCalls, createCalls, resolveCalls atomic.Int32

	fetchGate, createGate, resolveGate chan struct{}
	fetchErr, createErr, resolveErr    error

	// snapshotFirst reads the comments before waiting on fetchGate instead of after
	snapshotFirst bool

	lastCreate annotation.CommentRequest

	inResolve    map[string]int
	maxInResolve int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{comments: map[string][]annotation.Comment{}, inResolve: map[string]int{}}
}

func (f *fakeRemote) seed(cs ...annotation.Comment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range cs {
		f.comments[c.DocumentID] = append(f.comments[c.DocumentID], c)
	}
}

func wait(ctx context.Context, gate chan struct{}) {
	if gate == nil {
		return
	}
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

func (f *fakeRemote) FetchComments(ctx context.Context, documentID string) ([]annotation.Comment, error) {
	f.fetchCalls.Add(1)
	if f.snapshotFirst {
		out := f.snapshot(documentID)
		wait(ctx, f.fetchGate)
		return out, nil
	}
	wait(ctx, f.fetchGate)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshot(documentID), nil
}

func (f *fakeRemote) snapshot(documentID string) []annotation.Comment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]annotation.Comment, 0, len(f.comments[documentID]))
	for _, c := range f.comments[documentID] {
		out = append(out, c.Clone())
	}
	return out
}

func (f *fakeRemote) CreateComment(ctx context.Context, req annotation.CommentRequest) (annotation.Comment, error) {
	f.createCalls.Add(1)
	wait(ctx, f.createGate)
	if f.createErr != nil {
		return annotation.Comment{}, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreate = req
	f.nextID++
	c := annotation.Comment{
		ID:         fmt.Sprintf("c-%d", f.nextID),
		DocumentID: req.DocumentID,
		Comment:    req.Comment,
		Author:     annotation.User{ID: req.AuthorID},
		CreatedAt:  time.Now().UTC(),
	}
	if req.Marker != nil {
		c.Marker = &annotation.Marker{ID: fmt.Sprintf("m-%d", f.nextID), PageNumber: req.Marker.PageNumber, Position: req.Marker.Position}
	}
	f.comments[req.DocumentID] = append(f.comments[req.DocumentID], c)
	return c.Clone(), nil
}

func (f *fakeRemote) ResolveComment(ctx context.Context, documentID, commentID string) (annotation.Comment, error) {
	f.resolveCalls.Add(1)
	f.mu.Lock()
	f.inResolve[commentID]++
	if f.inResolve[commentID] > f.maxInResolve {
		f.maxInResolve = f.inResolve[commentID]
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inResolve[commentID]--
		f.mu.Unlock()
	}()

	wait(ctx, f.resolveGate)
	if f.resolveErr != nil {
		return annotation.Comment{}, f.resolveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments[documentID] {
		if c.ID == commentID {
			f.comments[documentID][i].IsResolved = true
			return f.comments[documentID][i].Clone(), nil
		}
	}
	return annotation.Comment{}, annotation.NewRemoteError(http.StatusNotFound, "Not Found", nil)
}

func marker(page int) *annotation.Marker {
	return &annotation.Marker{ID: fmt.Sprintf("m-p%d", page), PageNumber: page, Position: annotation.Position{X: 1, Y: 2}}
}

func seeded() *fakeRemote {
	f := newFakeRemote()
	f.seed(
		annotation.Comment{ID: "a", DocumentID: "doc-1", Comment: "page 1", Marker: marker(1)},
		annotation.Comment{ID: "b", DocumentID: "doc-1", Comment: "whole doc"},
		annotation.Comment{ID: "c", DocumentID: "doc-1", Comment: "page 2 done", Marker: marker(2), IsResolved: true},
		annotation.Comment{ID: "d", DocumentID: "doc-1", Comment: "page 1 again", Marker: marker(1)},
		annotation.Comment{ID: "x", DocumentID: "doc-2", Comment: "other doc", Marker: marker(1)},
	)
	return f
}

func ids(cs []annotation.Comment) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestFetch_CachesPerDocument(t *testing.T) {
	f := seeded()
	s := New(f)
	ctx := context.Background()

	got, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, ids(got))

	again, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, got, again)
	require.Equal(t, int32(1), f.fetchCalls.Load())

	_, err = s.Fetch(ctx, "doc-2")
	require.NoError(t, err)
	require.Equal(t, int32(2), f.fetchCalls.Load())
	require.Equal(t, 5, s.Len())
}

func TestFilters(t *testing.T) {
	s := New(seeded())
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	_, err = s.Fetch(ctx, "doc-2")
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b", "c", "d"}, ids(s.GetByDocument("doc-1")))
	require.Equal(t, []string{"x"}, ids(s.GetByDocument("doc-2")))
	require.Empty(t, s.GetByDocument("doc-3"))
	require.NotNil(t, s.GetByDocument("doc-3"))

	require.Equal(t, []string{"a", "d"}, ids(s.GetByPage("doc-1", 1)))
	require.Equal(t, []string{"c"}, ids(s.GetByPage("doc-1", 2)))
	require.Empty(t, s.GetByPage("doc-1", 0))
	require.Empty(t, s.GetByPage("doc-1", 99))
	for _, c := range s.GetByPage("doc-1", 1) {
		require.True(t, c.HasMarker())
	}

	unresolved := s.GetUnresolved("doc-1")
	require.Equal(t, []string{"a", "b", "d"}, ids(unresolved))
	all := map[string]bool{}
	for _, c := range s.GetByDocument("doc-1") {
		all[c.ID] = true
	}
	for _, c := range unresolved {
		require.True(t, all[c.ID])
		require.False(t, c.IsResolved)
	}
}

func TestFilters_ReturnCopies(t *testing.T) {
	s := New(seeded())
	_, err := s.Fetch(context.Background(), "doc-1")
	require.NoError(t, err)

	got := s.GetByPage("doc-1", 1)
	got[0].Marker.PageNumber = 7
	got[0].IsResolved = true
	require.Equal(t, []string{"a", "d"}, ids(s.GetByPage("doc-1", 1)))
	require.Len(t, s.GetUnresolved("doc-1"), 3)
}

func TestFetch_Deduplicates(t *testing.T) {
	f := seeded()
	f.fetchGate = make(chan struct{})
	s := New(f)

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]annotation.Comment, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Fetch(context.Background(), "doc-1")
		}(i)
	}
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 1 }, time.Second, time.Millisecond)
	// give the remaining callers time to join the in-flight fetch
	time.Sleep(20 * time.Millisecond)
	close(f.fetchGate)
	wg.Wait()

	require.Equal(t, int32(1), f.fetchCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, []string{"a", "b", "c", "d"}, ids(results[i]))
	}
}

func TestFetch_WaiterCancellationDoesNotCancelSharedFetch(t *testing.T) {
	f := seeded()
	f.fetchGate = make(chan struct{})
	s := New(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := s.Fetch(ctx, "doc-1")
		cancelled <- err
	}()
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 1 }, time.Second, time.Millisecond)

	other := make(chan []annotation.Comment, 1)
	go func() {
		got, _ := s.Fetch(context.Background(), "doc-1")
		other <- got
	}()

	cancel()
	require.ErrorIs(t, <-cancelled, context.Canceled)

	close(f.fetchGate)
	require.Equal(t, []string{"a", "b", "c", "d"}, ids(<-other))
	require.Equal(t, int32(1), f.fetchCalls.Load())
}

func TestFetch_ErrorLeavesDocumentUnloaded(t *testing.T) {
	f := seeded()
	f.fetchErr = annotation.NewRemoteError(http.StatusBadGateway, "Bad Gateway", nil)
	s := New(f)

	_, err := s.Fetch(context.Background(), "doc-1")
	var re *annotation.RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, http.StatusBadGateway, re.Status)
	require.Zero(t, s.Len())

	f.fetchErr = nil
	got, err := s.Fetch(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, int32(2), f.fetchCalls.Load())
}

func TestInvalidateAndReset(t *testing.T) {
	f := seeded()
	s := New(f)
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)

	f.seed(annotation.Comment{ID: "e", DocumentID: "doc-1", Comment: "added elsewhere"})
	got, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 4)

	s.Invalidate("doc-1")
	require.Len(t, s.GetByDocument("doc-1"), 4, "cached comments stay visible until refetched")
	got, err = s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(got))

	s.Reset()
	require.Zero(t, s.Len())
	_, err = s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, int32(3), f.fetchCalls.Load())
}

func TestInvalidate_DuringFetchDiscardsOldSnapshot(t *testing.T) {
	f := seeded()
	f.fetchGate = make(chan struct{})
	f.snapshotFirst = true
	s := New(f)
	ctx := context.Background()

	first := make(chan []annotation.Comment, 1)
	go func() {
		got, err := s.Fetch(ctx, "doc-1")
		assert.NoError(t, err)
		first <- got
	}()
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 1 }, time.Second, time.Millisecond)

	f.seed(annotation.Comment{ID: "e", DocumentID: "doc-1", Comment: "added elsewhere"})
	s.Invalidate("doc-1")
	close(f.fetchGate)

	// the caller that asked before Invalidate still gets its answer
	require.Equal(t, []string{"a", "b", "c", "d"}, ids(<-first))
	require.Empty(t, s.GetByDocument("doc-1"))

	got, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(got))
	require.Equal(t, int32(2), f.fetchCalls.Load())
}

func TestInvalidate_NewFetchDoesNotJoinOldOne(t *testing.T) {
	f := seeded()
	f.fetchGate = make(chan struct{})
	f.snapshotFirst = true
	s := New(f)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Fetch(ctx, "doc-1")
	}()
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 1 }, time.Second, time.Millisecond)

	f.seed(annotation.Comment{ID: "e", DocumentID: "doc-1", Comment: "added elsewhere"})
	s.Invalidate("doc-1")

	second := make(chan []annotation.Comment, 1)
	go func() {
		got, err := s.Fetch(ctx, "doc-1")
		assert.NoError(t, err)
		second <- got
	}()
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 2 }, time.Second, time.Millisecond)
	close(f.fetchGate)
	<-done

	require.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(<-second))
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(s.GetByDocument("doc-1")))
}

func TestReset_DuringFetchStaysEmpty(t *testing.T) {
	f := seeded()
	f.fetchGate = make(chan struct{})
	f.snapshotFirst = true
	s := New(f)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Fetch(ctx, "doc-1")
	}()
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 1 }, time.Second, time.Millisecond)

	s.Reset()
	close(f.fetchGate)
	<-done
	require.Zero(t, s.Len())

	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), f.fetchCalls.Load())
	require.Equal(t, 4, s.Len())
}

func TestFetch_LateCallersNeverRefetch(t *testing.T) {
	for trial := 0; trial < 50; trial++ {
		f := seeded()
		s := New(f)
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := s.Fetch(context.Background(), "doc-1")
				assert.NoError(t, err)
				assert.Len(t, got, 4)
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), f.fetchCalls.Load(), "trial %d", trial)
	}
}

func TestAddComment_ReplacesPendingInPlace(t *testing.T) {
	f := seeded()
	f.createGate = make(chan struct{})
	s := New(f, WithUserProvider(credentials.StaticUser{ID: "u-1", Name: "Ann"}))
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := s.AddComment(ctx, "doc-1", "Needs review", &annotation.MarkerRequest{PageNumber: 3, Position: annotation.Position{X: 0.5, Y: 0.2}})
		done <- result{id, err}
	}()

	require.Eventually(t, func() bool { return len(s.GetByDocument("doc-1")) == 5 }, time.Second, time.Millisecond)
	pending := s.GetByDocument("doc-1")[4]
	require.True(t, pending.Pending)
	require.Contains(t, pending.ID, TempIDPrefix)
	require.Equal(t, "Ann", pending.Author.Name)
	require.True(t, pending.OnPage(3))

	close(f.createGate)
	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, "c-1", r.id)

	got := s.GetByDocument("doc-1")
	require.Equal(t, []string{"a", "b", "c", "d", "c-1"}, ids(got))
	require.False(t, got[4].Pending)
	require.Equal(t, "m-1", got[4].Marker.ID)
	require.Equal(t, "u-1", f.lastCreate.AuthorID)
	require.False(t, f.lastCreate.IsResolved)
}

func TestAddComment_RollbackOnFailure(t *testing.T) {
	f := seeded()
	s := New(f)
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	before := s.GetByDocument("doc-1")

	f.createErr = annotation.NewRemoteError(http.StatusInternalServerError, "Internal Server Error", nil)
	id, err := s.AddComment(ctx, "doc-1", "will fail", nil)
	require.ErrorIs(t, err, annotation.ErrRemote)
	require.Empty(t, id)
	require.Equal(t, before, s.GetByDocument("doc-1"))
	require.Equal(t, 4, s.Len())
}

func TestAddComment_ValidatesBeforeNetwork(t *testing.T) {
	f := seeded()
	s := New(f)
	ctx := context.Background()

	_, err := s.AddComment(ctx, "doc-1", "bad page", &annotation.MarkerRequest{PageNumber: 0})
	var verr *annotation.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "pageNumber", verr.Field)

	_, err = s.AddComment(ctx, "doc-1", "", nil)
	require.ErrorIs(t, err, annotation.ErrValidation)

	require.Equal(t, int32(0), f.createCalls.Load())
	require.Zero(t, s.Len())
}

type brokenUsers struct{}

func (brokenUsers) CurrentUser(context.Context) (annotation.User, error) {
	return annotation.User{}, errors.New("profile service down")
}

func TestAddComment_UserProvider(t *testing.T) {
	f := seeded()
	ctx := context.Background()

	s := New(f, WithUserProvider(credentials.StaticUser{}))
	_, err := s.AddComment(ctx, "doc-1", "anonymous", nil)
	require.NoError(t, err)
	require.Empty(t, f.lastCreate.AuthorID)

	s = New(f, WithUserProvider(brokenUsers{}))
	_, err = s.AddComment(ctx, "doc-1", "no author", nil)
	require.ErrorContains(t, err, "profile service down")
	require.Zero(t, s.Len())
}

func TestAddComment_ConcurrentFetchKeepsConfirmed(t *testing.T) {
	f := seeded()
	f.fetchGate = make(chan struct{})
	s := New(f)
	ctx := context.Background()

	fetched := make(chan []annotation.Comment, 1)
	go func() {
		got, _ := s.Fetch(ctx, "doc-1")
		fetched <- got
	}()
	require.Eventually(t, func() bool { return f.fetchCalls.Load() == 1 }, time.Second, time.Millisecond)

	// confirmed while the fetch is in flight; the fake's fetch snapshot is taken after the gate,
	// so drop the new comment from the remote to simulate a stale listing
	id, err := s.AddComment(ctx, "doc-1", "racing", nil)
	require.NoError(t, err)
	f.mu.Lock()
	f.comments["doc-1"] = f.comments["doc-1"][:4]
	f.mu.Unlock()

	close(f.fetchGate)
	got := <-fetched
	assert.Contains(t, ids(got), id)
	assert.Equal(t, []string{"a", "b", "c", "d", id}, ids(s.GetByDocument("doc-1")))
}

func TestResolveComment_Idempotent(t *testing.T) {
	f := seeded()
	s := New(f)
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	a := s.GetByDocument("doc-1")[0]

	first, err := s.ResolveComment(ctx, a)
	require.NoError(t, err)
	require.True(t, first.IsResolved)
	second, err := s.ResolveComment(ctx, a)
	require.NoError(t, err)
	require.True(t, second.IsResolved)

	require.Equal(t, []string{"b", "d"}, ids(s.GetUnresolved("doc-1")))
	require.Equal(t, int32(2), f.resolveCalls.Load())
}

func TestResolveComment_OptimisticThenRollback(t *testing.T) {
	f := seeded()
	f.resolveGate = make(chan struct{})
	f.resolveErr = annotation.NewRemoteError(http.StatusServiceUnavailable, "Service Unavailable", nil)
	s := New(f)
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	a := s.GetByDocument("doc-1")[0]

	done := make(chan error, 1)
	go func() {
		_, err := s.ResolveComment(ctx, a)
		done <- err
	}()
	require.Eventually(t, func() bool { return len(s.GetUnresolved("doc-1")) == 2 }, time.Second, time.Millisecond)

	close(f.resolveGate)
	require.ErrorIs(t, <-done, annotation.ErrRemote)
	require.Equal(t, []string{"a", "b", "d"}, ids(s.GetUnresolved("doc-1")))
}

func TestResolveComment_RollbackKeepsPreviouslyResolved(t *testing.T) {
	f := seeded()
	f.resolveErr = annotation.NewRemoteError(0, "transport failure", nil)
	s := New(f)
	_, err := s.Fetch(context.Background(), "doc-1")
	require.NoError(t, err)
	c := s.GetByDocument("doc-1")[2]
	require.True(t, c.IsResolved)

	_, err = s.ResolveComment(context.Background(), c)
	require.Error(t, err)
	require.True(t, s.GetByDocument("doc-1")[2].IsResolved)
}

func TestResolveComment_SerializedPerComment(t *testing.T) {
	f := seeded()
	f.resolveGate = make(chan struct{})
	s := New(f)
	ctx := context.Background()
	_, err := s.Fetch(ctx, "doc-1")
	require.NoError(t, err)
	a := s.GetByDocument("doc-1")[0]
	b := s.GetByDocument("doc-1")[1]

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _, _ = s.ResolveComment(ctx, a) }()
		go func() { defer wg.Done(); _, _ = s.ResolveComment(ctx, b) }()
	}
	// different ids proceed in parallel
	require.Eventually(t, func() bool { return f.resolveCalls.Load() == 2 }, time.Second, time.Millisecond)
	close(f.resolveGate)
	wg.Wait()

	require.Equal(t, int32(8), f.resolveCalls.Load())
	require.Equal(t, 1, f.maxInResolve)
	require.Zero(t, s.locks.size())
	require.Equal(t, []string{"d"}, ids(s.GetUnresolved("doc-1")))
}

func TestResolveComment_UncachedIsInserted(t *testing.T) {
	f := seeded()
	s := New(f)

	res, err := s.ResolveComment(context.Background(), annotation.Comment{ID: "x", DocumentID: "doc-2"})
	require.NoError(t, err)
	require.True(t, res.IsResolved)
	require.Equal(t, []string{"x"}, ids(s.GetByDocument("doc-2")))
	require.Empty(t, s.GetUnresolved("doc-2"))
}

func TestResolveComment_RejectsUnconfirmed(t *testing.T) {
	f := seeded()
	s := New(f)
	_, err := s.ResolveComment(context.Background(), annotation.Comment{ID: TempIDPrefix + "1", DocumentID: "doc-1", Pending: true})
	require.ErrorIs(t, err, annotation.ErrValidation)
	_, err = s.ResolveComment(context.Background(), annotation.Comment{ID: "a"})
	require.ErrorIs(t, err, annotation.ErrValidation)
	require.Equal(t, int32(0), f.resolveCalls.Load())
}

func TestStoresAreIsolated(t *testing.T) {
	f := seeded()
	s1, s2 := New(f), New(f)
	_, err := s1.Fetch(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, 4, s1.Len())
	require.Zero(t, s2.Len())
}
