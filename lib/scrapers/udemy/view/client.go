package view

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"coursetrack/lib/htmlutil"
	"coursetrack/lib/scrapers/udemy/core"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/udemy/view")

// PageSize is how many courses the service renders per listing page.
const PageSize = 12

const (
	courseListWait = time.Second * 20
	courseGridWait = time.Second * 20
	// deliberately short, the probe doubles as the non-video classifier
	durationProbeWait = time.Second * 2
)

const (
	paginationSelector   = "div[class*='pagination-label']"
	courseTitleSelector  = "h3[data-purpose='course-title-url']"
	courseAnchorSelector = "h3[data-purpose='course-title-url'] a"
	durationSelector     = "div[class*='video-length']"
	durationTextSelector = "div[class*='video-length'] [class*='heading-md']"
)

var ErrNoCourseList = errors.New("course list never rendered")
var ErrNoDuration = errors.New("course exposes no duration, most likely not a video course")

var courseCountRegex = regexp.MustCompile(`of (\d+) courses`)

type Client struct {
	Session core.Session
	Lists   ListCache
	Pages   PageCache

	baseUrl *url.URL
}

type ClientOptions struct {
	Lists ListCache
	Pages PageCache
}

func NewClient(session core.Session, opts ClientOptions) Client {
	baseUrl, err := url.Parse(core.BaseUrl)
	if err != nil {
		panic(err)
	}
	return Client{
		Session: session,
		Lists:   opts.Lists,
		Pages:   opts.Pages,
		baseUrl: baseUrl,
	}
}

// Courses enumerates every course the account is enrolled in, in listing
// order. The crawl is memoized against the page count, an unchanged catalog
// costs no listing traffic beyond the first page.
func (c Client) Courses(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:Courses")
	defer span.End()

	page, err := c.Session.WaitVisible(ctx, core.HomeUrl, paginationSelector, courseListWait)
	if errors.Is(err, core.ErrWaitTimeout) {
		// no course list means either an auth problem or a site-structure
		// change, both need to be surfaced rather than swallowed
		span.SetStatus(codes.Error, ErrNoCourseList.Error())
		return nil, fmt.Errorf("%w: %v", ErrNoCourseList, err)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	doc, err := page.Document()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, err
	}

	label := strings.TrimSpace(doc.Find(paginationSelector).First().Text())
	groups := courseCountRegex.FindStringSubmatch(label)
	if len(groups) < 2 {
		span.SetStatus(codes.Error, "no course count in pagination label")
		return nil, fmt.Errorf("%w: no course count in %q", ErrNoCourseList, label)
	}
	total, err := strconv.Atoi(groups[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad course count %q", ErrNoCourseList, groups[1])
	}
	pages := (total + PageSize - 1) / PageSize
	slog.Info("total courses", "count", total, "pages", pages)

	if c.Lists != nil {
		cached, err := c.Lists.Load()
		if err == nil && cached.PagesCount == pages {
			span.SetStatus(codes.Ok, "CACHE HIT")
			slog.Info("course list cache hit", "pages", pages, "courses", len(cached.Urls))
			return cached.Urls, nil
		}
		if err != nil && !errors.Is(err, ErrNotCached) {
			slog.Warn("failed to read course list cache", "err", err)
		}
	}

	var urls []string
	for i := 1; i <= pages; i++ {
		pageUrl := fmt.Sprintf("%s?p=%d", core.HomeUrl, i)
		page, err := c.Session.WaitVisible(ctx, pageUrl, courseTitleSelector, courseGridWait)
		if err != nil {
			// a half-built course list is worse than a clear failure, abort
			// without caching anything
			span.RecordError(err)
			span.SetStatus(codes.Error, "course grid never rendered")
			return nil, fmt.Errorf("listing page %d: %w", i, err)
		}
		doc, err := page.Document()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		anchors := htmlutil.GetAnchors(doc.Find(courseAnchorSelector), c.baseUrl)
		for _, a := range anchors {
			urls = append(urls, a.Href)
		}
		slog.Info("processed listing page", "page", i, "pages", pages)
	}

	if c.Lists != nil {
		err := c.Lists.Save(CourseList{PagesCount: pages, Urls: urls})
		if err != nil {
			slog.Warn("failed to persist course list cache", "err", err)
		}
	}
	return urls, nil
}

type Detail struct {
	Link         string
	Title        string
	DurationText string
}

const missingField = "N/A"

// Detail fetches one course's detail page and pulls out its title and
// duration text. A probe timeout classifies the course as non-video and is
// reported as ErrNoDuration.
func (c Client) Detail(ctx context.Context, link string) (Detail, error) {
	ctx, span := tracer.Start(ctx, "client:Detail")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "url",
		Value: attribute.StringValue(link),
	})

	if c.Pages != nil {
		contents, err := c.Pages.Get(ctx, link)
		if err == nil {
			span.SetStatus(codes.Ok, "CACHE HIT")
			return parseDetail(link, contents), nil
		}
		if !errors.Is(err, ErrNotCached) {
			slog.Warn("failed to read page cache", "link", link, "err", err)
		}
	}

	page, err := c.Session.WaitVisible(ctx, link, durationSelector, durationProbeWait)
	if errors.Is(err, core.ErrWaitTimeout) {
		return Detail{}, ErrNoDuration
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch course page")
		return Detail{}, err
	}

	if c.Pages != nil {
		if err := c.Pages.Set(ctx, link, page.Body); err != nil {
			slog.Warn("failed to cache course page", "link", link, "err", err)
		}
	}
	return parseDetail(link, page.Body), nil
}

func parseDetail(link string, contents []byte) Detail {
	d := Detail{Link: link, Title: missingField, DurationText: missingField}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(contents))
	if err != nil {
		return d
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.TrimPrefix(title, "Course: ")
	title = strings.TrimSuffix(title, " | Udemy")
	title = strings.TrimSpace(title)
	if title != "" {
		d.Title = title
	}

	duration := strings.TrimSpace(doc.Find(durationTextSelector).First().Text())
	if duration != "" {
		d.DurationText = duration
	}
	return d
}
