// Package store is the client-side annotation cache. It keeps comments for the documents
// a session has loaded, applies mutations optimistically and reconciles them with the
// remote's authoritative records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/annotation/client"
	"github.com/pdfmarker/pdfmarker/internal/annotation/mapper"
	"github.com/pdfmarker/pdfmarker/internal/credentials"
	"github.com/pdfmarker/pdfmarker/pkg/logger"
	"github.com/pdfmarker/pdfmarker/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// TempIDPrefix marks ids minted locally for unconfirmed comments.
const TempIDPrefix = "tmp-"

type entry struct {
	c annotation.Comment
	// seq is the store sequence at the last local confirmation; 0 for fetched entries.
	seq uint64
}

type Store struct {
	remote client.Remote
	users  credentials.UserProvider
	now    func() time.Time

	mu      sync.RWMutex
	entries []entry
	loaded  map[string]bool
	seq     uint64

	// gens counts Invalidate calls per document and epoch counts Reset calls; a fetch
	// started under an older value must not write its result into the cache.
	gens  map[string]uint64
	epoch uint64

	fetches singleflight.Group
	locks   keyedMutex
}

type Option func(*Store)

// WithUserProvider sets where new comments get their author from. Without one,
// comments are created without an authorId.
func WithUserProvider(p credentials.UserProvider) Option {
	return func(s *Store) { s.users = p }
}

func New(remote client.Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		now:    time.Now,
		loaded: make(map[string]bool),
		gens:   make(map[string]uint64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Fetch returns the comments of documentID, loading them from the remote on first use.
// Concurrent fetches of the same document share one remote call. A caller whose ctx ends
// while waiting gets ctx.Err(); the shared call keeps running for the others.
func (s *Store) Fetch(ctx context.Context, documentID string) ([]annotation.Comment, error) {
	s.mu.RLock()
	if s.loaded[documentID] {
		out := s.filterLocked(documentID, nil)
		s.mu.RUnlock()
		metrics.StoreFetches.WithLabelValues("hit").Inc()
		return out, nil
	}
	g := s.generationLocked(documentID)
	s.mu.RUnlock()

	// the generation is part of the key so fetches started before Invalidate or Reset
	// are never joined by later callers
	key := fmt.Sprintf("%s\x00%d.%d", documentID, g.doc, g.epoch)
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.fetches.DoChan(key, func() (interface{}, error) {
		s.mu.RLock()
		if s.loaded[documentID] {
			s.mu.RUnlock()
			return fetchResult{applied: true}, nil
		}
		since := s.seq
		s.mu.RUnlock()

		list, err := s.remote.FetchComments(fetchCtx, documentID)
		if err != nil {
			return nil, err
		}
		return fetchResult{list: list, applied: s.replace(documentID, list, since, g)}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.StoreFetches.WithLabelValues("error").Inc()
			return nil, res.Err
		}
		if res.Shared {
			metrics.StoreFetches.WithLabelValues("shared").Inc()
		} else {
			metrics.StoreFetches.WithLabelValues("remote").Inc()
		}
		fr := res.Val.(fetchResult)
		if !fr.applied {
			// invalidated while in flight: answer with the snapshot, leave the cache alone
			out := make([]annotation.Comment, 0, len(fr.list))
			for _, c := range fr.list {
				out = append(out, c.Clone())
			}
			return out, nil
		}
		return s.GetByDocument(documentID), nil
	}
}

type fetchResult struct {
	list    []annotation.Comment
	applied bool
}

type generation struct {
	doc, epoch uint64
}

func (s *Store) generationLocked(documentID string) generation {
	return generation{doc: s.gens[documentID], epoch: s.epoch}
}

// replace swaps the cached subset of documentID for list. Pending entries and entries
// confirmed locally after the fetch started (seq > since) survive; a surviving entry
// that is also in list wins over the fetched copy. It does nothing and returns false
// when the document was invalidated or the store reset since g was taken.
func (s *Store) replace(documentID string, list []annotation.Comment, since uint64, g generation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generationLocked(documentID) != g {
		return false
	}

	local := make(map[string]entry)
	var extras []entry
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.c.DocumentID != documentID {
			kept = append(kept, e)
			continue
		}
		if e.c.Pending || e.seq > since {
			local[e.c.ID] = e
			extras = append(extras, e)
		}
	}

	seen := make(map[string]bool, len(list))
	for _, c := range list {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if e, ok := local[c.ID]; ok {
			kept = append(kept, e)
			continue
		}
		kept = append(kept, entry{c: c.Clone()})
	}
	for _, e := range extras {
		if !seen[e.c.ID] {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	s.loaded[documentID] = true
	return true
}

// AddComment creates a comment. The comment is visible immediately under a temporary id
// and replaced by the remote's record on success, or removed on failure. It returns the
// remote-assigned id.
func (s *Store) AddComment(ctx context.Context, documentID, body string, marker *annotation.MarkerRequest) (string, error) {
	if marker != nil {
		if err := annotation.ValidateMarker(marker.PageNumber, marker.Position); err != nil {
			return "", err
		}
	}
	author, err := s.currentUser(ctx)
	if err != nil {
		return "", err
	}
	req := mapper.ToCreateRequest(documentID, body, marker, author.ID)
	if err := annotation.ValidateRequest(req); err != nil {
		return "", err
	}

	tmp := annotation.Comment{
		ID:         TempIDPrefix + uuid.NewString(),
		DocumentID: documentID,
		Comment:    body,
		Author:     author,
		CreatedAt:  s.now().UTC(),
		Pending:    true,
	}
	if req.Marker != nil {
		tmp.Marker = &annotation.Marker{PageNumber: req.Marker.PageNumber, Position: req.Marker.Position}
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{c: tmp})
	s.mu.Unlock()

	created, err := s.remote.CreateComment(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.removeLocked(tmp.ID)
		s.mu.Unlock()
		metrics.StoreRollbacks.WithLabelValues("create").Inc()
		logger.Debugf("store: create on %s rolled back: %v", documentID, err)
		return "", err
	}

	created.Pending = false
	s.mu.Lock()
	s.seq++
	e := entry{c: created.Clone(), seq: s.seq}
	if i := s.indexLocked(created.ID); i >= 0 {
		// a concurrent fetch already brought the confirmed comment in
		s.entries[i] = e
		s.removeLocked(tmp.ID)
	} else if i := s.indexLocked(tmp.ID); i >= 0 {
		s.entries[i] = e
	} else {
		s.entries = append(s.entries, e)
	}
	s.mu.Unlock()
	return created.ID, nil
}

// ResolveComment marks c resolved. Calls for the same comment id run one at a time.
// The cached flag flips immediately and is restored if the remote call fails. Resolving
// an already resolved comment succeeds.
func (s *Store) ResolveComment(ctx context.Context, c annotation.Comment) (annotation.Comment, error) {
	if c.Pending || strings.HasPrefix(c.ID, TempIDPrefix) {
		return annotation.Comment{}, &annotation.ValidationError{Field: "id", Reason: "comment is not confirmed yet"}
	}
	if c.ID == "" || c.DocumentID == "" {
		return annotation.Comment{}, &annotation.ValidationError{Field: "id", Reason: "comment id and documentId are required"}
	}

	unlock := s.locks.Lock(c.ID)
	defer unlock()

	s.mu.Lock()
	prev, cached := false, false
	if i := s.indexLocked(c.ID); i >= 0 {
		cached = true
		prev = s.entries[i].c.IsResolved
		s.entries[i].c.IsResolved = true
	}
	s.mu.Unlock()

	res, err := s.remote.ResolveComment(ctx, c.DocumentID, c.ID)
	if err != nil {
		if cached {
			s.mu.Lock()
			if i := s.indexLocked(c.ID); i >= 0 {
				s.entries[i].c.IsResolved = prev
			}
			s.mu.Unlock()
		}
		metrics.StoreRollbacks.WithLabelValues("resolve").Inc()
		logger.Debugf("store: resolve %s rolled back: %v", c.ID, err)
		return annotation.Comment{}, err
	}

	res.IsResolved = true
	res.Pending = false
	s.mu.Lock()
	s.seq++
	e := entry{c: res.Clone(), seq: s.seq}
	if i := s.indexLocked(c.ID); i >= 0 {
		s.entries[i] = e
	} else {
		s.entries = append(s.entries, e)
	}
	s.mu.Unlock()
	return res, nil
}

// GetByDocument returns the cached comments of documentID in cache order.
func (s *Store) GetByDocument(documentID string) []annotation.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(documentID, nil)
}

// GetByPage returns the cached comments of documentID anchored to page.
func (s *Store) GetByPage(documentID string, page int) []annotation.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(documentID, func(c *annotation.Comment) bool { return c.OnPage(page) })
}

// GetUnresolved returns the cached comments of documentID that are not resolved.
func (s *Store) GetUnresolved(documentID string) []annotation.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(documentID, func(c *annotation.Comment) bool { return !c.IsResolved })
}

// Invalidate makes the next Fetch of documentID go to the remote. Cached comments stay
// visible until that fetch replaces them.
func (s *Store) Invalidate(documentID string) {
	s.mu.Lock()
	delete(s.loaded, documentID)
	s.gens[documentID]++
	s.mu.Unlock()
}

// Reset drops everything the store holds. Fetches still in flight do not refill it.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = nil
	s.loaded = make(map[string]bool)
	s.epoch++
	s.mu.Unlock()
}

// Len is the number of cached comments across all documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) currentUser(ctx context.Context) (annotation.User, error) {
	if s.users == nil {
		return annotation.User{}, nil
	}
	u, err := s.users.CurrentUser(ctx)
	if errors.Is(err, credentials.ErrNoUser) {
		return annotation.User{}, nil
	}
	if err != nil {
		return annotation.User{}, fmt.Errorf("current user: %w", err)
	}
	return u, nil
}

func (s *Store) filterLocked(documentID string, keep func(*annotation.Comment) bool) []annotation.Comment {
	out := []annotation.Comment{}
	for i := range s.entries {
		c := &s.entries[i].c
		if c.DocumentID != documentID {
			continue
		}
		if keep != nil && !keep(c) {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.entries {
		if s.entries[i].c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id string) {
	if i := s.indexLocked(id); i >= 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
}
