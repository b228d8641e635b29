package models

import (
	"slices"
	"strings"
	"time"
)

// Collection is an ordered sequence of posts with memoized filtered views.
// Views are recomputed after the backing sequence changes; the published and
// pending views are also recomputed whenever the clock has moved.
type Collection struct {
	posts []*Post
	now   func() time.Time

	views map[string][]*Post
	timed map[string]timedView
	tags  []string
}

type timedView struct {
	at    time.Time
	posts []*Post
}

// NewCollection wraps posts, keeping their order.
func NewCollection(posts []*Post) *Collection {
	return &Collection{posts: slices.Clone(posts), now: time.Now}
}

// WithClock sets the clock used to separate published and pending posts.
func (c *Collection) WithClock(now func() time.Time) *Collection {
	c.now = now
	c.reset()
	return c
}

func (c *Collection) reset() {
	c.views = nil
	c.timed = nil
	c.tags = nil
}

// Posts returns the backing sequence.
func (c *Collection) Posts() []*Post { return c.posts }

// Len returns the number of posts.
func (c *Collection) Len() int { return len(c.posts) }

// Append adds posts to the end of the collection.
func (c *Collection) Append(posts ...*Post) {
	c.posts = append(c.posts, posts...)
	c.reset()
}

// SortNewest orders the collection by timestamp, newest first.
func (c *Collection) SortNewest() {
	slices.SortStableFunc(c.posts, NewerThan)
	c.reset()
}

func (c *Collection) view(name string, keep func(*Post) bool) []*Post {
	if v, ok := c.views[name]; ok {
		return v
	}
	if c.views == nil {
		c.views = make(map[string][]*Post)
	}
	var out []*Post
	for _, p := range c.posts {
		if keep(p) {
			out = append(out, p)
		}
	}
	c.views[name] = out
	return out
}

// viewAt memoizes a view that depends on the current time.
func (c *Collection) viewAt(name string, keep func(*Post, time.Time) bool) []*Post {
	now := c.now()
	if v, ok := c.timed[name]; ok && v.at.Equal(now) {
		return v.posts
	}
	if c.timed == nil {
		c.timed = make(map[string]timedView)
	}
	var out []*Post
	for _, p := range c.posts {
		if keep(p, now) {
			out = append(out, p)
		}
	}
	c.timed[name] = timedView{at: now, posts: out}
	return out
}

// Published returns posts that are published with a timestamp in the past.
func (c *Collection) Published() []*Post {
	return c.viewAt("published", (*Post).IsPublished)
}

// Pending returns published posts whose timestamp is still in the future.
func (c *Collection) Pending() []*Post {
	return c.viewAt("pending", (*Post).IsPending)
}

// Drafts returns posts in draft status.
func (c *Collection) Drafts() []*Post {
	return c.view("drafts", (*Post).IsDraft)
}

// Review returns posts awaiting review.
func (c *Collection) Review() []*Post {
	return c.view("review", (*Post).IsReview)
}

// Tagged returns posts carrying tag, compared case-insensitively.
func (c *Collection) Tagged(tag string) []*Post {
	return c.view("tag:"+strings.ToLower(tag), func(p *Post) bool {
		return slices.ContainsFunc(p.Tags, func(t string) bool { return strings.EqualFold(t, tag) })
	})
}

// AllTags returns the distinct tags of every post, sorted case-insensitively.
// The first spelling seen for a tag wins.
func (c *Collection) AllTags() []string {
	if c.tags != nil {
		return c.tags
	}
	seen := make(map[string]bool)
	tags := []string{}
	for _, p := range c.posts {
		for _, t := range p.Tags {
			key := strings.ToLower(t)
			if !seen[key] {
				seen[key] = true
				tags = append(tags, t)
			}
		}
	}
	slices.SortFunc(tags, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	c.tags = tags
	return tags
}

// Paginate splits the collection into order-preserving pages of size posts.
// The last page may be shorter. A size below one yields a single page.
func (c *Collection) Paginate(size int) [][]*Post {
	if len(c.posts) == 0 {
		return nil
	}
	if size < 1 {
		return [][]*Post{c.posts}
	}
	pages := make([][]*Post, 0, (len(c.posts)+size-1)/size)
	for chunk := range slices.Chunk(c.posts, size) {
		pages = append(pages, chunk)
	}
	return pages
}

// Index returns the position of p in the collection, or -1.
func (c *Collection) Index(p *Post) int {
	return slices.Index(c.posts, p)
}

// Neighbors returns the posts immediately before and after p. Either may be
// nil.
func (c *Collection) Neighbors(p *Post) (prev, next *Post) {
	i := c.Index(p)
	if i < 0 {
		return nil, nil
	}
	if i > 0 {
		prev = c.posts[i-1]
	}
	if i < len(c.posts)-1 {
		next = c.posts[i+1]
	}
	return prev, next
}
