package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pokedex-pipeline/internal/dataset"
	"pokedex-pipeline/internal/pokedex"

	"github.com/stretchr/testify/require"
)

func listingPage(hrefs ...string) string {
	var rows strings.Builder
	for _, href := range hrefs {
		name := strings.Trim(href[strings.LastIndex(strings.TrimSuffix(href, "/"), "/")+1:], "/")
		fmt.Fprintf(&rows, `<tr><td class="cell-name"><a class="ent-name" href="%s">%s</a></td></tr>`, href, name)
	}
	return `<html><body><table id="pokedex"><tbody>` + rows.String() + `</tbody></table></body></html>`
}

func detailPage(name string) string {
	return fmt.Sprintf(`<html><body>
<h1>%s</h1>
<table class="vitals-table"><tbody>
	<tr><th>National №</th><td>0001</td></tr>
	<tr><th>Type</th><td><a class="type-icon">Grass</a></td></tr>
	<tr><th>HP</th><td>45</td></tr>
	<tr><th>Attack</th><td>49</td></tr>
	<tr><th>Defense</th><td>49</td></tr>
	<tr><th>Sp. Atk</th><td>65</td></tr>
	<tr><th>Sp. Def</th><td>65</td></tr>
	<tr><th>Speed</th><td>45</td></tr>
	<tr><th>Total</th><td>318</td></tr>
</tbody></table>
</body></html>`, name)
}

func newCollectClient(t *testing.T, serverUrl string) *pokedex.Client {
	t.Helper()
	client, err := pokedex.NewClient(pokedex.ClientOptions{
		BaseUrl:          serverUrl,
		Timeout:          time.Second * 5,
		RetryCount:       2,
		RetryWaitTime:    time.Millisecond,
		RetryMaxWaitTime: time.Millisecond * 5,
	})
	require.NoError(t, err)
	return client
}

func TestCollectEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pokedex/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage("/pokedex/bulbasaur", "/pokedex/ivysaur", "/pokedex/venusaur"))
	})
	mux.HandleFunc("/pokedex/bulbasaur", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage("Bulbasaur"))
	})
	mux.HandleFunc("/pokedex/ivysaur", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage("Ivysaur"))
	})
	mux.HandleFunc("/pokedex/venusaur", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	raw, report, err := Collect(context.Background(), Options{
		Client:           newCollectClient(t, server.URL),
		Workers:          2,
		FailureRateLimit: 0.5,
	}, []string{"/pokedex/all"})
	require.NoError(t, err)

	require.Equal(t, 3, report.Listed)
	require.Equal(t, 2, report.Collected)
	require.Len(t, report.FetchErrors, 1)
	require.Empty(t, report.ParseErrors)
	require.Equal(t, 0, report.Abandoned)
	require.Contains(t, report.FetchErrors[0].URL, "/pokedex/venusaur")
	require.Equal(t, http.StatusInternalServerError, report.FetchErrors[0].Status)
	require.Equal(t, 3, report.FetchErrors[0].Attempts)

	require.Len(t, raw, 2)
	ids := map[string]bool{}
	for _, record := range raw {
		ids[record.ID] = true
		for _, f := range dataset.RawFields {
			_, ok := record.Fields[f]
			require.True(t, ok, "field %q absent", f)
		}
		require.NotEqual(t, dataset.Missing, record.Fields[dataset.FieldScrapeTS])
	}
	require.True(t, ids["bulbasaur"])
	require.True(t, ids["ivysaur"])
}

func TestCollectAbortsWhenFailureRateExceeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pokedex/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage("/pokedex/bulbasaur", "/pokedex/ivysaur", "/pokedex/venusaur"))
	})
	mux.HandleFunc("/pokedex/bulbasaur", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage("Bulbasaur"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	raw, report, err := Collect(context.Background(), Options{
		Client:           newCollectClient(t, server.URL),
		FailureRateLimit: 0.5,
	}, []string{"/pokedex/all"})

	var aborted *RunAbortedError
	require.ErrorAs(t, err, &aborted)
	require.Equal(t, 2, aborted.Failed)
	require.Equal(t, 3, aborted.Total)
	require.Nil(t, raw)
	require.Len(t, report.FetchErrors, 2)
}

func TestCollectDeduplicatesIdentifiers(t *testing.T) {
	detail := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage("Bulbasaur"))
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/pokedex/all", func(w http.ResponseWriter, r *http.Request) {
		// two distinct URLs resolving to the same identifier
		fmt.Fprint(w, listingPage("/pokedex/bulbasaur", "/pokedex/bulbasaur/"))
	})
	mux.HandleFunc("/pokedex/bulbasaur", detail)
	mux.HandleFunc("/pokedex/bulbasaur/", detail)
	server := httptest.NewServer(mux)
	defer server.Close()

	raw, report, err := Collect(context.Background(), Options{
		Client: newCollectClient(t, server.URL),
	}, []string{"/pokedex/all"})
	require.NoError(t, err)

	require.Equal(t, 2, report.Listed)
	require.Equal(t, 1, report.Collected)
	require.Equal(t, 1, report.Duplicates)
	require.Len(t, raw, 1)
	require.Equal(t, "bulbasaur", raw[0].ID)
}

func TestCollectDropsRecordsMissingRequiredFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pokedex/all", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage("/pokedex/bulbasaur", "/pokedex/broken"))
	})
	mux.HandleFunc("/pokedex/bulbasaur", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage("Bulbasaur"))
	})
	mux.HandleFunc("/pokedex/broken", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Broken</h1></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	raw, report, err := Collect(context.Background(), Options{
		Client: newCollectClient(t, server.URL),
	}, []string{"/pokedex/all"})
	require.NoError(t, err)

	require.Len(t, raw, 1)
	require.Len(t, report.ParseErrors, 1)
	require.Contains(t, report.ParseErrors[0].URL, "/pokedex/broken")
}

func TestCollectAbortsWithoutDetailTasks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := Collect(context.Background(), Options{
		Client: newCollectClient(t, server.URL),
	}, []string{"/pokedex/all"})

	var aborted *RunAbortedError
	require.ErrorAs(t, err, &aborted)
}
