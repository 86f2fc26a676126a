package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docsSite() *httptest.Server {
	pages := map[string]string{}
	pages["/one"] = `<html><body><iframe src="/content-a"></iframe></body></html>`
	pages["/two"] = `<html><body><iframe src="/nav"></iframe><iframe src="/content-b"></iframe></body></html>`
	pages["/none"] = `<html><body><p>no frames here</p></body></html>`
	pages["/nav"] = `<html><body><div id="nav-frame">navigation</div></body></html>`
	pages["/content-a"] = `<html><body><div id="content-a">first</div></body></html>`
	pages["/content-b"] = `<html><body><div id="content-b">second</div></body></html>`
	pages["/consent"] = `<html><body><iframe src="/consent-content"></iframe></body></html>`
	pages["/consent-content"] = `<html><body>
<a class="call" href="#" onclick="document.getElementById('state').textContent='accepted'; return false;">Accept all</a>
<div id="state">pending</div></body></html>`

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
}

func openAt(t *testing.T, url string) (Session, error) {
	t.Helper()
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no browser installed")
	}
	l := &RodLauncher{Options: Options{
		StartURL:       url,
		Bin:            bin,
		Headless:       true,
		Width:          1280,
		Height:         800,
		Zoom:           "75%",
		LoadTimeout:    5 * time.Second,
		ConsentTimeout: time.Second,
	}}
	s, err := l.Launch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, s.Open(context.Background())
}

func TestOpenSelectsOnlyFrame(t *testing.T) {
	srv := docsSite()
	defer srv.Close()

	s, err := openAt(t, srv.URL+"/one")
	require.NoError(t, err)

	html, err := s.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "content-a")
}

func TestOpenSelectsSecondFrame(t *testing.T) {
	srv := docsSite()
	defer srv.Close()

	s, err := openAt(t, srv.URL+"/two")
	require.NoError(t, err)

	html, err := s.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "content-b")
	assert.NotContains(t, html, "nav-frame")

	has, err := s.Has(context.Background(), "//div[@id='content-b']")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestOpenWithoutFrame(t *testing.T) {
	srv := docsSite()
	defer srv.Close()

	_, err := openAt(t, srv.URL+"/none")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFrame))
}

func TestOpenWithConsentPrompt(t *testing.T) {
	srv := docsSite()
	defer srv.Close()

	s, err := openAt(t, srv.URL+"/consent")
	require.NoError(t, err)

	el, err := s.WaitElement(context.Background(), "//div[@id='state']", time.Second)
	require.NoError(t, err)
	text, err := el.Text()
	require.NoError(t, err)
	// the reload after accepting renders a fresh frame
	assert.Equal(t, "pending", text)
}

func TestCloseTwice(t *testing.T) {
	srv := docsSite()
	defer srv.Close()

	s, err := openAt(t, srv.URL+"/one")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
