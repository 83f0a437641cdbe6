package scrape

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func firstRow(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Find("tr[data-jobid]").First()
}

func TestExtractFallsBackToIDURLAndSentinels(t *testing.T) {
	t.Parallel()

	html := `<table><tr data-jobid="77"><td><h2 class="fs-6 fs-md-5 fw-bold my-primary">Web3 Frontend</h2></td><td><time>5d</time></td></tr></table>`
	raw, ok := Web3Career().Extract(firstRow(t, html), nil)
	require.True(t, ok)
	require.Equal(t, "https://web3.career/front-end-jobs/77", raw["url"])
	require.Equal(t, "Not specified", raw["location"])
	require.Empty(t, raw["salary"])
	require.Empty(t, raw["tags"])
}

func TestExtractResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	page, err := url.Parse("https://web3.career/front-end+remote-jobs?page=2")
	require.NoError(t, err)
	raw, ok := Web3Career().Extract(firstRow(t, page1Row), page)
	require.True(t, ok)
	require.Equal(t, "https://web3.career/frontend-dev-acme/88", raw["url"])
}

const page1Row = `<table><tr data-jobid="88"><td><a href="/frontend-dev-acme/88"><h2 class="fs-6 fs-md-5 fw-bold my-primary">Frontend Dev</h2></a></td><td><time>1d</time></td></tr></table>`

func TestExtractRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing id":    `<table><tr data-jobid=""><td><h2 class="fs-6 fs-md-5 fw-bold my-primary">X</h2><time>1d</time></td></tr></table>`,
		"missing title": `<table><tr data-jobid="1"><td><time>1d</time></td></tr></table>`,
		"course ad":     `<table><tr data-jobid="2"><td><h2 class="fs-6 fs-md-5 fw-bold my-primary">Solidity Course</h2><time>1d</time></td></tr></table>`,
		"undated":       `<table><tr data-jobid="3"><td><h2 class="fs-6 fs-md-5 fw-bold my-primary">Frontend</h2></td></tr></table>`,
		"stale":         `<table><tr data-jobid="4"><td><h2 class="fs-6 fs-md-5 fw-bold my-primary">Frontend</h2><time>31d</time></td></tr></table>`,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, ok := Web3Career().Extract(firstRow(t, html), nil)
			require.False(t, ok)
		})
	}
}

func TestFreshWithoutAgeLimitKeepsEverything(t *testing.T) {
	t.Parallel()

	site := Site{}
	require.True(t, site.fresh(""))
	require.True(t, site.fresh("400d"))
}

func TestParsePageReturnsRowsAndNext(t *testing.T) {
	t.Parallel()

	pageURL, err := url.Parse("https://web3.career/front-end-jobs")
	require.NoError(t, err)
	body := []byte(page("/front-end-jobs?page=2",
		row("1", "Frontend A", "A", "1d"),
		row("2", "Frontend B", "B", "2d"),
	))

	raws, next, err := Web3Career().ParsePage(body, pageURL)
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "https://web3.career/front-end-jobs?page=2", next)

	_, next, err = Web3Career().ParsePage([]byte(page("")), pageURL)
	require.NoError(t, err)
	require.Empty(t, next)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	site := Site{PageParam: "start", PageSize: 25}
	require.Equal(t, "https://example.com/jobs?keywords=go&start=50", site.PageURL("https://example.com/jobs?keywords=go", 3))
	require.Equal(t, "https://example.com/jobs?start=0", site.PageURL("https://example.com/jobs", 1))
	require.Empty(t, Web3Career().PageURL("https://web3.career/front-end-jobs", 2))
}
