package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daniarmadeit/idi-motors-bot/internal/config"
)

const renewalPage = `<!DOCTYPE html>
<html><body>
<div id="list-detail">
  <div class="car-info-flex-area">
    <h1>2014 TOYOTA VITZ</h1>
  </div>
  <div class="dl-pic-area"><a href="/download/photos123.zip">Download all photos</a></div>
</div>
<table>
  <tr>
    <td><p class="port-list-title">Mombasa</p></td>
    <td class="table-total-price"><span class="fn-total-price-display">US$` + " " + `2,500</span></td>
  </tr>
  <tr>
    <td><p class="port-list-title">Dar es Salaam</p></td>
    <td class="table-total-price"><span class="fn-total-price-display">US$` + " " + `2,720</span></td>
  </tr>
</table>
<div id="spec"><table>
  <tr><td>Mileage</td><td>82,000 km</td><td>Engine</td><td>1,300cc</td></tr>
  <tr><td>Chassis No.</td><td>KSP130-1234567</td><td>Steering</td><td>-</td></tr>
  <tr><td>Model code</td><td>DBA-KSP130 Find parts for this model code</td></tr>
</table></div>
</body></html>`

const legacyPage = `<!DOCTYPE html>
<html><body>
<div id="content">
  <h1><div class="make">TOYOTA</div><div class="model-year">VITZ 2014</div></h1>
</div>
<div id="vehicle-photo-slider"><div class="swiper-wrapper">
  <div class="swiper-slide"><img src="//img.example.com/1.jpg"></div>
  <div class="swiper-slide"><img data-src="/photos/2.jpg"></div>
  <div class="swiper-slide"><img src="//img.example.com/1.jpg"></div>
</div></div>
</body></html>`

func newTestParser(srv *httptest.Server) *Parser {
	return NewParser(srv.Client(), config.ScraperConfig{
		UserAgent:      "test-agent",
		RequestTimeout: 10,
		CountryID:      88,
	})
}

func TestParseRenewalLayout(t *testing.T) {
	var gotCountry, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCountry = r.URL.Query().Get("tp_country_id")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(renewalPage))
	}))
	defer srv.Close()

	car, err := newTestParser(srv).Parse(context.Background(), srv.URL+"/used-car/toyota-vitz")
	require.NoError(t, err)

	require.Equal(t, "88", gotCountry, "destination country pins the rendered port prices")
	require.Equal(t, "test-agent", gotAgent)

	require.Equal(t, "2014 TOYOTA VITZ", car.Name)
	require.Equal(t, "US$2,500", car.Price, "first port row wins")
	require.Equal(t, "https://www.beforward.jp/download/photos123.zip", car.PhotoDownloadURL)
	require.Empty(t, car.PhotoPageURLs)

	require.Equal(t, []SpecRow{
		{Key: "Mileage", Value: "82,000 km"},
		{Key: "Engine", Value: "1,300cc"},
		{Key: "Model code", Value: "DBA-KSP130"},
	}, car.Specs)
}

func TestParseLegacyLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(legacyPage))
	}))
	defer srv.Close()

	car, err := newTestParser(srv).Parse(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Equal(t, "TOYOTA VITZ 2014", car.Name)
	require.Empty(t, car.PhotoDownloadURL)
	require.Equal(t, []string{
		"https://img.example.com/1.jpg",
		"https://www.beforward.jp/photos/2.jpg",
	}, car.PhotoPageURLs)
}

func TestParseNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestParser(srv).Parse(context.Background(), srv.URL)
	require.ErrorContains(t, err, "HTTP 404")
}

func TestCarDataText(t *testing.T) {
	car := &CarData{
		Name:  "2014 TOYOTA VITZ",
		Price: "US$2,500",
		Specs: []SpecRow{{Key: "Mileage", Value: "82,000 km"}},
	}

	text := car.Text()
	require.Contains(t, text, "2014 TOYOTA VITZ")
	require.Contains(t, text, "Price - US$2,500")
	require.Contains(t, text, "- Mileage: 82,000 km")
}

func TestArchiveName(t *testing.T) {
	require.Equal(t, "2014_toyota_vitz_photos.zip", (&CarData{Name: "2014 TOYOTA VITZ"}).ArchiveName())
	require.Equal(t, "cleaned_photos.zip", (&CarData{}).ArchiveName())
}
