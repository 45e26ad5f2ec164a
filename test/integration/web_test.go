package integration

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func postPage(t *testing.T, values url.Values) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := http.PostForm(testEnv.BaseURL()+"/", values)
	if err != nil {
		t.Fatalf("POST /: %v", err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parsing page: %v", err)
	}
	return resp, doc
}

func TestPageSearchFlow(t *testing.T) {
	resp, doc := postPage(t, url.Values{"query": {"red sea shipping risk"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := doc.Find("#namespace").Text(); got != "global_news" {
		t.Errorf("namespace = %q, want global_news", got)
	}
	if got := doc.Find("tr.hit td.id").Text(); got != "news-1" {
		t.Errorf("hit = %q", got)
	}
}

func TestPageSummaryIsSanitisedMarkdown(t *testing.T) {
	_, doc := postPage(t, url.Values{"query": {"exporter of bearings"}, "summarize": {"true"}})

	if got := doc.Find("#summary strong").Text(); got != "Summary" {
		t.Errorf("summary markdown = %q", got)
	}
}

func TestPageEmptyQuery(t *testing.T) {
	resp, doc := postPage(t, url.Values{"query": {""}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if doc.Find("#error").Length() != 1 {
		t.Error("validation message missing")
	}
}

func TestPageWorksWithoutAuth(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/")
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
}
