package subito

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ibino273/raspi-moto-scraper/models"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

func newTestSite(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/annunci/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("o") != "" {
			fmt.Fprint(w, `<html><body><p>Nessun risultato</p></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
<a href="/moto/kawasaki-z650-asti-590000001.htm"><h2>Kawasaki Z650</h2></a>
<a href="/moto/bmw-r-1250-novara-590000002.htm"><h2>BMW R 1250</h2></a>
</body></html>`)
	})
	mux.HandleFunc("/moto/kawasaki-z650-asti-590000001.htm", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Language") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `<html><body><h1>Kawasaki Z650</h1><p class="price">5.200 €</p></body></html>`)
	})
	mux.HandleFunc("/moto/gone-1.htm", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestCollySource(t *testing.T, srv *httptest.Server) *CollySource {
	s, err := NewCollySource(CollyOptions{BaseURL: srv.URL + "/annunci/"}, utils.NewWriterLogger(io.Discard, "debug"))
	require.NoError(t, err)
	return s
}

func TestCollySourceIndexPages(t *testing.T) {
	srv := newTestSite(t)
	s := newTestCollySource(t, srv)

	refs, err := s.FetchIndexPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, srv.URL+"/moto/kawasaki-z650-asti-590000001.htm", refs[0].URL)
	require.Equal(t, "BMW R 1250", refs[1].Title)

	refs, err = s.FetchIndexPage(context.Background(), 2)
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestCollySourceDetail(t *testing.T) {
	srv := newTestSite(t)
	s := newTestCollySource(t, srv)
	ref := models.ListingRef{URL: srv.URL + "/moto/kawasaki-z650-asti-590000001.htm"}

	// fetched twice: retries must be able to revisit a URL
	for i := 0; i < 2; i++ {
		d, err := s.FetchDetail(context.Background(), ref)
		require.NoError(t, err)
		require.Equal(t, "Kawasaki Z650", d.Fields[models.FieldTitle])
		require.Equal(t, "5.200 €", d.Fields[models.FieldPrice])
	}
}

func TestCollySourceHTTPError(t *testing.T) {
	srv := newTestSite(t)
	s := newTestCollySource(t, srv)

	_, err := s.FetchDetail(context.Background(), models.ListingRef{URL: srv.URL + "/moto/gone-1.htm"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "410")
}

func TestCollySourceCancelledContext(t *testing.T) {
	srv := newTestSite(t)
	s := newTestCollySource(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FetchIndexPage(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}
