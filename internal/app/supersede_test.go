package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pinta/internal/domain/wrapped"
)

func TestSupersedeRegistry(t *testing.T) {
	Convey("Given two overlapping builds of one summary", t, func() {
		r := newSupersedeRegistry(0)
		k := summaryKey{customerID: "c-1", year: 2024}
		older, newer := r.begin(k), r.begin(k)
		oldSum, newSum := &wrapped.Summary{TotalLiters: 1}, &wrapped.Summary{TotalLiters: 2}

		Convey("When the newer build finishes first", func() {
			got, ok := r.publish(k, newer, newSum, 0, 0)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, newSum)

			Convey("Then the older result is discarded", func() {
				got, ok := r.publish(k, older, oldSum, 0, 0)
				So(ok, ShouldBeFalse)
				So(got, ShouldEqual, newSum)
				cached, hit := r.cached(k, 0)
				So(hit, ShouldBeTrue)
				So(cached, ShouldEqual, newSum)
			})
		})

		Convey("When the older build finishes first", func() {
			_, ok := r.publish(k, older, oldSum, 0, 0)
			So(ok, ShouldBeTrue)

			Convey("Then the newer result still replaces it", func() {
				got, ok := r.publish(k, newer, newSum, 0, 0)
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, newSum)
			})
		})

		Convey("When a build finishes after the data epoch moved on", func() {
			_, ok := r.publish(k, newer, newSum, 0, 1)
			So(ok, ShouldBeTrue)

			Convey("Then the result is returned but not reused", func() {
				_, hit := r.cached(k, 0)
				So(hit, ShouldBeFalse)
				_, hit = r.cached(k, 1)
				So(hit, ShouldBeFalse)
			})
		})

		Convey("When the key is forgotten", func() {
			r.forget(k)

			Convey("Then it is no longer tracked", func() {
				So(r.tracked(), ShouldBeEmpty)
			})
		})
	})
}

func TestSupersedeRegistryBound(t *testing.T) {
	Convey("Given a registry tracking at most two summaries", t, func() {
		r := newSupersedeRegistry(2)
		a := summaryKey{customerID: "a", year: 2024}
		b := summaryKey{customerID: "b", year: 2024}
		c := summaryKey{customerID: "c", year: 2024}
		r.publish(a, r.begin(a), &wrapped.Summary{}, 0, 0)
		r.publish(b, r.begin(b), &wrapped.Summary{}, 0, 0)

		Convey("When a third summary is requested", func() {
			r.begin(c)

			Convey("Then the least recently requested one is dropped", func() {
				So(r.size(), ShouldEqual, 2)
				So(r.tracked(), ShouldResemble, []summaryKey{c, b})
				_, hit := r.cached(a, 0)
				So(hit, ShouldBeFalse)
			})
		})

		Convey("When the oldest summary is read again before the third arrives", func() {
			_, hit := r.cached(a, 0)
			So(hit, ShouldBeTrue)
			r.begin(c)

			Convey("Then the other one is dropped instead", func() {
				So(r.tracked(), ShouldResemble, []summaryKey{c, a})
			})
		})
	})
}

type countingSource struct {
	loads atomic.Int32
	fail  error
	gate  chan struct{}
}

func (s *countingSource) Community(_ context.Context, year int) (*wrapped.Community, error) {
	s.loads.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return &wrapped.Community{Year: year, Catalog: []string{"IPA 355ml"}}, nil
}

// ctxSource blocks until released or until the load context ends.
type ctxSource struct {
	loads   atomic.Int32
	release chan struct{}
}

func (s *ctxSource) Community(ctx context.Context, year int) (*wrapped.Community, error) {
	s.loads.Add(1)
	select {
	case <-s.release:
		return &wrapped.Community{Year: year}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCommunityCacheDetachedLoad(t *testing.T) {
	Convey("Given a slow community load started by a request that gives up", t, func() {
		src := &ctxSource{release: make(chan struct{})}
		c := newCommunityCache()
		c.source = src

		first, cancel := context.WithCancel(context.Background())
		firstErr := make(chan error, 1)
		go func() {
			_, err := c.Community(first, 2024)
			firstErr <- err
		}()
		for src.loads.Load() == 0 {
			runtime.Gosched()
		}

		type result struct {
			community *wrapped.Community
			err       error
		}
		second := make(chan result, 1)
		go func() {
			got, err := c.Community(context.Background(), 2024)
			second <- result{got, err}
		}()

		cancel()
		So(errors.Is(<-firstErr, context.Canceled), ShouldBeTrue)
		close(src.release)
		res := <-second

		Convey("Then a caller still waiting gets the snapshot", func() {
			So(res.err, ShouldBeNil)
			So(res.community, ShouldNotBeNil)
			So(res.community.Year, ShouldEqual, 2024)
			So(src.loads.Load(), ShouldEqual, 1)
		})

		Convey("Then the snapshot is kept for later callers", func() {
			So(c.Years(), ShouldEqual, 1)
			_, err := c.Community(context.Background(), 2024)
			So(err, ShouldBeNil)
			So(src.loads.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given a load that never finishes", t, func() {
		src := &ctxSource{release: make(chan struct{})}
		c := newCommunityCache()
		c.source = src
		c.loadTimeout = 10 * time.Millisecond

		_, err := c.Community(context.Background(), 2024)

		Convey("Then the load timeout ends it and nothing is cached", func() {
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(c.Years(), ShouldEqual, 0)
		})
	})
}

func TestCommunityCache(t *testing.T) {
	Convey("Given a community cache", t, func() {
		ctx := context.Background()
		src := &countingSource{}
		c := newCommunityCache()
		c.source = src

		Convey("When a year is read twice", func() {
			a, err := c.Community(ctx, 2024)
			So(err, ShouldBeNil)
			b, err := c.Community(ctx, 2024)
			So(err, ShouldBeNil)

			Convey("Then it is loaded once", func() {
				So(a, ShouldEqual, b)
				So(src.loads.Load(), ShouldEqual, 1)
				So(c.Years(), ShouldEqual, 1)
			})

			Convey("Then invalidation forces a reload", func() {
				So(c.Invalidate(), ShouldEqual, uint64(1))
				So(c.Years(), ShouldEqual, 0)
				_, err := c.Community(ctx, 2024)
				So(err, ShouldBeNil)
				So(src.loads.Load(), ShouldEqual, 2)
			})
		})

		Convey("When concurrent readers miss together", func() {
			src.gate = make(chan struct{})
			var wg sync.WaitGroup
			results := make([]*wrapped.Community, 5)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], _ = c.Community(ctx, 2024)
				}(i)
			}
			for src.loads.Load() == 0 {
				runtime.Gosched()
			}
			close(src.gate)
			wg.Wait()

			Convey("Then they share one load", func() {
				So(src.loads.Load(), ShouldEqual, 1)
				for _, r := range results {
					So(r, ShouldEqual, results[0])
				}
			})
		})

		Convey("When loading fails", func() {
			src.fail = errors.New("store down")
			_, err := c.Community(ctx, 2024)
			So(err, ShouldNotBeNil)

			Convey("Then the failure is not cached", func() {
				src.fail = nil
				got, err := c.Community(ctx, 2024)
				So(err, ShouldBeNil)
				So(got, ShouldNotBeNil)
				So(src.loads.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the epoch moves during a load", func() {
			src.gate = make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer close(done)
				_, _ = c.Community(ctx, 2024)
			}()
			for src.loads.Load() == 0 {
				runtime.Gosched()
			}
			c.Invalidate()
			close(src.gate)
			<-done

			Convey("Then the stale snapshot is not kept", func() {
				So(c.Years(), ShouldEqual, 0)
			})
		})
	})
}
