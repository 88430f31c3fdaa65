package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"coursetrack/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/udemy/core")

const BaseUrl = "https://www.udemy.com"

// HomeUrl is the logged-in landing page listing the account's courses. It is
// also where the account display name shows up, which makes it the login
// verification target.
const HomeUrl = "https://www.udemy.com/home/my-courses/learning/"

var ErrWaitTimeout = errors.New("timed out waiting for selector")

// Page is the rendered text of one navigation, as handed back by a Session.
type Page struct {
	URL  string
	Body []byte
}

func (p Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
}

func (p Page) TextVisible(text string) bool {
	doc, err := p.Document()
	if err != nil {
		return false
	}
	return strings.Contains(doc.Text(), text)
}

// Session is the browsing capability the acquisition engine runs against.
// There is exactly one Session per run and it is never shared.
type Session interface {
	Open(ctx context.Context, pageUrl string) (Page, error)
	Submit(ctx context.Context, action string, fields url.Values) (Page, error)
	// WaitVisible re-opens pageUrl until the selector matches something or
	// the timeout lapses, in which case the error wraps ErrWaitTimeout.
	// ErrWaitTimeout is only reported when a page actually rendered; when
	// the last fetch itself failed that error comes back instead.
	WaitVisible(ctx context.Context, pageUrl, selector string, timeout time.Duration) (Page, error)
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
}

var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

// defers the lookup of the package-level output so it can be swapped in
// after the client has been constructed
type lazyInstrumentOutput struct{}

func (lazyInstrumentOutput) Write(id string, contents string) {
	if restyInstrumentOutput == nil {
		return
	}
	restyInstrumentOutput.Write(id, contents)
}

// Client is the production Session, an HTTP browsing context with a
// persistent-capable cookie jar.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	// how often WaitVisible re-fetches, defaults to one second
	PollInterval time.Duration
}

type ClientOptions struct {
	BaseUrl string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = BaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, lazyInstrumentOutput{})

	c := &Client{
		BaseUrl: baseUrl,
		Http:    client,
	}
	return c, nil
}

func (c *Client) Open(ctx context.Context, pageUrl string) (Page, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		return Page{}, err
	}
	if res.StatusCode() >= 400 {
		return Page{}, fmt.Errorf("GET %s: status %d", pageUrl, res.StatusCode())
	}
	return Page{URL: res.Request.URL, Body: res.Body()}, nil
}

func (c *Client) Submit(ctx context.Context, action string, fields url.Values) (Page, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(fields).
		Post(action)
	if err != nil {
		return Page{}, err
	}
	if res.StatusCode() >= 400 {
		return Page{}, fmt.Errorf("POST %s: status %d", action, res.StatusCode())
	}
	return Page{URL: res.Request.URL, Body: res.Body()}, nil
}

func (c *Client) WaitVisible(ctx context.Context, pageUrl, selector string, timeout time.Duration) (Page, error) {
	poll := c.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		page, err := c.Open(ctx, pageUrl)
		if err == nil {
			doc, derr := page.Document()
			if derr == nil && doc.Find(selector).Length() > 0 {
				return page, nil
			}
		}
		if time.Now().Add(poll).After(deadline) {
			// ErrWaitTimeout means a page rendered without the selector;
			// a page that never loaded at all is a fetch failure and must
			// not be mistaken for one
			if err != nil {
				return Page{}, err
			}
			return Page{}, fmt.Errorf("%w: %q on %s", ErrWaitTimeout, selector, pageUrl)
		}
		select {
		case <-ctx.Done():
			return Page{}, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (c *Client) Cookies() []*http.Cookie {
	jar := c.Http.GetClient().Jar
	if jar == nil {
		return nil
	}
	return jar.Cookies(c.BaseUrl)
}

func (c *Client) SetCookies(cookies []*http.Cookie) {
	jar := c.Http.GetClient().Jar
	if jar == nil {
		return
	}
	jar.SetCookies(c.BaseUrl, cookies)
}
