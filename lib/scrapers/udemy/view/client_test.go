package view

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"coursetrack/lib/scrapers/udemy/core"
	viewdb "coursetrack/lib/scrapers/udemy/view/db"
	"coursetrack/lib/testutil"

	"github.com/stretchr/testify/require"
)

// fakeSession serves canned page bodies by url. WaitVisible evaluates the
// selector once instead of polling, a missing page or selector reports the
// same wrapped timeout the real session would.
type fakeSession struct {
	pages map[string][]byte
	opens []string
}

func (s *fakeSession) Open(ctx context.Context, pageUrl string) (core.Page, error) {
	s.opens = append(s.opens, pageUrl)
	body, ok := s.pages[pageUrl]
	if !ok {
		return core.Page{}, fmt.Errorf("no such page %q", pageUrl)
	}
	return core.Page{URL: pageUrl, Body: body}, nil
}

func (s *fakeSession) Submit(ctx context.Context, action string, fields url.Values) (core.Page, error) {
	return core.Page{}, fmt.Errorf("unexpected form submit to %q", action)
}

func (s *fakeSession) WaitVisible(ctx context.Context, pageUrl, selector string, timeout time.Duration) (core.Page, error) {
	page, err := s.Open(ctx, pageUrl)
	if err != nil {
		// a page that never loaded is a fetch failure, same as the
		// production session
		return core.Page{}, err
	}
	doc, err := page.Document()
	if err != nil || doc.Find(selector).Length() == 0 {
		return core.Page{}, fmt.Errorf("%w: %q on %s", core.ErrWaitTimeout, selector, pageUrl)
	}
	return page, nil
}

func (s *fakeSession) Cookies() []*http.Cookie     { return nil }
func (s *fakeSession) SetCookies(c []*http.Cookie) {}

func (s *fakeSession) listingOpens() []string {
	var out []string
	for _, u := range s.opens {
		if strings.Contains(u, "?p=") {
			out = append(out, u)
		}
	}
	return out
}

func listingPage(label string, hrefs ...string) []byte {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	fmt.Fprintf(&b, `<div class="pagination-label--3xyz">%s</div>`, label)
	for i, href := range hrefs {
		fmt.Fprintf(&b,
			`<h3 data-purpose="course-title-url" class="ud-heading-md"><a href="%s">Course %d</a></h3>`,
			href, i+1)
	}
	b.WriteString(`</body></html>`)
	return []byte(b.String())
}

func coursePage(title, duration string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>%s</title></head><body>`, title)
	if duration != "" {
		fmt.Fprintf(&b,
			`<div class="video-length--2abc"><span class="ud-heading-md">%s</span></div>`,
			duration)
	}
	b.WriteString(`<div>What you'll learn</div></body></html>`)
	return []byte(b.String())
}

func twoPageListing() *fakeSession {
	first := listingPage("1–12 of 15 courses", "/course/a/", "/course/b/")
	second := listingPage("13–15 of 15 courses", "/course/c/")
	return &fakeSession{pages: map[string][]byte{
		core.HomeUrl:          first,
		core.HomeUrl + "?p=1": first,
		core.HomeUrl + "?p=2": second,
	}}
}

var twoPageUrls = []string{
	"https://www.udemy.com/course/a/",
	"https://www.udemy.com/course/b/",
	"https://www.udemy.com/course/c/",
}

func TestCoursesCrawl(t *testing.T) {
	testutil.SetupTest(t)

	session := twoPageListing()
	lists := FileListCache{Path: filepath.Join(t.TempDir(), "course_list.json")}
	client := NewClient(session, ClientOptions{Lists: lists})

	urls, err := client.Courses(context.Background())
	require.NoError(t, err)
	require.Equal(t, twoPageUrls, urls)

	cached, err := lists.Load()
	require.NoError(t, err)
	require.Equal(t, CourseList{PagesCount: 2, Urls: twoPageUrls}, cached)
}

func TestCoursesCacheHit(t *testing.T) {
	testutil.SetupTest(t)

	// only the landing page exists, any listing-page fetch would fail
	session := &fakeSession{pages: map[string][]byte{
		core.HomeUrl: listingPage("1–12 of 15 courses"),
	}}
	lists := FileListCache{Path: filepath.Join(t.TempDir(), "course_list.json")}
	require.NoError(t, lists.Save(CourseList{PagesCount: 2, Urls: twoPageUrls}))
	client := NewClient(session, ClientOptions{Lists: lists})

	urls, err := client.Courses(context.Background())
	require.NoError(t, err)
	require.Equal(t, twoPageUrls, urls)
	require.Empty(t, session.listingOpens(), "a cache hit must not crawl listing pages")
}

func TestCoursesCacheInvalidatedByPageCount(t *testing.T) {
	testutil.SetupTest(t)

	session := twoPageListing()
	lists := FileListCache{Path: filepath.Join(t.TempDir(), "course_list.json")}
	require.NoError(t, lists.Save(CourseList{PagesCount: 1, Urls: []string{"https://www.udemy.com/course/old/"}}))
	client := NewClient(session, ClientOptions{Lists: lists})

	urls, err := client.Courses(context.Background())
	require.NoError(t, err)
	require.Equal(t, twoPageUrls, urls)
	require.Len(t, session.listingOpens(), 2)

	cached, err := lists.Load()
	require.NoError(t, err)
	require.Equal(t, 2, cached.PagesCount, "stale cache must be rewritten")
}

func TestCoursesAbortsOnBrokenListingPage(t *testing.T) {
	testutil.SetupTest(t)

	session := twoPageListing()
	delete(session.pages, core.HomeUrl+"?p=2")
	lists := FileListCache{Path: filepath.Join(t.TempDir(), "course_list.json")}
	client := NewClient(session, ClientOptions{Lists: lists})

	_, err := client.Courses(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "listing page 2")

	// a partial crawl must never be memoized
	_, err = lists.Load()
	require.ErrorIs(t, err, ErrNotCached)
}

func TestCoursesNoListIsFatal(t *testing.T) {
	testutil.SetupTest(t)

	session := &fakeSession{pages: map[string][]byte{
		core.HomeUrl: []byte(`<html><body>Log in to continue</body></html>`),
	}}
	client := NewClient(session, ClientOptions{})

	_, err := client.Courses(context.Background())
	require.ErrorIs(t, err, ErrNoCourseList)
}

func TestDetail(t *testing.T) {
	testutil.SetupTest(t)

	link := "https://www.udemy.com/course/go-deep-dive/"
	session := &fakeSession{pages: map[string][]byte{
		link: coursePage("Course: Go Deep Dive | Udemy", "5 hours 30 mins"),
	}}
	db := testutil.SetupDB(t, viewdb.Schema)
	cache := NewPageCache(db)
	client := NewClient(session, ClientOptions{Pages: cache})

	detail, err := client.Detail(context.Background(), link)
	require.NoError(t, err)
	require.Equal(t, Detail{Link: link, Title: "Go Deep Dive", DurationText: "5 hours 30 mins"}, detail)

	// cached now, a second lookup needs no session at all
	offline := NewClient(&fakeSession{pages: map[string][]byte{}}, ClientOptions{Pages: cache})
	detail, err = offline.Detail(context.Background(), link)
	require.NoError(t, err)
	require.Equal(t, "Go Deep Dive", detail.Title)
}

// The probe timeout is the non-video classifier, so a course page that
// errors out must never look like a timeout: classification feeds the
// append-only ignored set and a misread would drop the course for good.
// Exercised against the production session, not the fake.
func TestDetailFetchFailureIsNotClassified(t *testing.T) {
	testutil.SetupTest(t)

	var broken atomic.Bool
	broken.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if broken.Load() {
			http.Error(w, "upstream broke", http.StatusInternalServerError)
			return
		}
		w.Write(coursePage("Course: Go Deep Dive | Udemy", "5 hours 30 mins"))
	}))
	t.Cleanup(srv.Close)

	session, err := core.NewClient(core.ClientOptions{BaseUrl: srv.URL})
	require.NoError(t, err)
	session.PollInterval = time.Millisecond * 50
	db := testutil.SetupDB(t, viewdb.Schema)
	cache := NewPageCache(db)
	client := NewClient(session, ClientOptions{Pages: cache})

	link := "/course/go-deep-dive/"
	_, err = client.Detail(context.Background(), link)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoDuration, "a fetch failure must stay retryable")

	// nothing cached either, the page was never retrieved
	_, err = cache.Get(context.Background(), link)
	require.ErrorIs(t, err, ErrNotCached)

	// once the server recovers the same link extracts normally
	broken.Store(false)
	detail, err := client.Detail(context.Background(), link)
	require.NoError(t, err)
	require.Equal(t, "Go Deep Dive", detail.Title)
}

func TestDetailNoDuration(t *testing.T) {
	testutil.SetupTest(t)

	link := "https://www.udemy.com/course/aws-practice-exam/"
	session := &fakeSession{pages: map[string][]byte{
		link: coursePage("AWS Practice Exam | Udemy", ""),
	}}
	db := testutil.SetupDB(t, viewdb.Schema)
	cache := NewPageCache(db)
	client := NewClient(session, ClientOptions{Pages: cache})

	_, err := client.Detail(context.Background(), link)
	require.ErrorIs(t, err, ErrNoDuration)

	// classification failures are not cached
	_, err = cache.Get(context.Background(), link)
	require.ErrorIs(t, err, ErrNotCached)
}

func TestParseDetailMissingFields(t *testing.T) {
	testutil.SetupTest(t)

	d := parseDetail("https://x.test/c", []byte(`<html><head></head><body></body></html>`))
	require.Equal(t, "N/A", d.Title)
	require.Equal(t, "N/A", d.DurationText)

	d = parseDetail("https://x.test/c", coursePage("Plain Title", "45 mins"))
	require.Equal(t, "Plain Title", d.Title, "prefix and suffix stripping must be optional")
	require.Equal(t, "45 mins", d.DurationText)
}
