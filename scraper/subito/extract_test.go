package subito

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

const indexHTML = `<html><body>
<nav><a href="/annunci-piemonte/vendita/moto-e-scooter/">Moto</a></nav>
<div class="items">
  <a href="/moto-e-scooter/yamaha-mt-07-torino-587000111.htm?from=list">
    <h2>Yamaha  MT-07
    </h2><p class="price">5.900 €</p>
    <div class="index-module_date-location"><span>Torino,  18/10</span></div>
  </a>
  <a href="https://www.subito.it/moto-e-scooter/honda-sh-125-cuneo-587000222.htm"><h2>Honda SH 125</h2>
    <div><span class="index-module_town__A1b">Cuneo</span><span class="index-module_city__c2">(CN)</span></div>
  </a>
  <a href="/moto-e-scooter/yamaha-mt-07-torino-587000111.htm#gallery"><h2>Yamaha MT-07</h2></a>
  <a href="/moto-e-scooter/no-title-587000333.htm"><span>No title</span></a>
  <a href="/annunci-piemonte/vendita/moto-e-scooter/?o=2"><h2>Next</h2></a>
</div>
</body></html>`

func TestParseIndex(t *testing.T) {
	refs, err := ParseIndex(strings.NewReader(indexHTML), "https://www.subito.it/annunci-piemonte/vendita/moto-e-scooter/")
	if err != nil {
		t.Fatal(err)
	}
	want := []models.ListingRef{
		{URL: "https://www.subito.it/moto-e-scooter/yamaha-mt-07-torino-587000111.htm", Title: "Yamaha MT-07", City: "Torino", PostedOn: "18/10"},
		{URL: "https://www.subito.it/moto-e-scooter/honda-sh-125-cuneo-587000222.htm", Title: "Honda SH 125", City: "Cuneo"},
	}
	if diff := cmp.Diff(want, refs); diff != "" {
		t.Errorf("ParseIndex mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIndexEmptyPage(t *testing.T) {
	refs, err := ParseIndex(strings.NewReader(`<html><body><p>Nessun risultato</p></body></html>`), "https://www.subito.it/")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("expected no refs, got %d", len(refs))
	}
}

func TestParseIndexCardLocation(t *testing.T) {
	page := `<html><body>
<a href="/moto-e-scooter/vespa-gts-reggio-587000444.htm"><h2>Vespa GTS, 300</h2>
  <p>Reggio nell'Emilia (RE), 3/9</p>
</a>
<a href="/moto-e-scooter/aprilia-rs-587000555.htm"><h2>Aprilia RS</h2><p>Spedizione disponibile</p></a>
</body></html>`
	refs, err := ParseIndex(strings.NewReader(page), "https://www.subito.it/")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].City != "Reggio nell'Emilia (RE)" || refs[0].PostedOn != "3/9" {
		t.Errorf("first card: got %q, %q", refs[0].City, refs[0].PostedOn)
	}
	if refs[1].City != "" || refs[1].PostedOn != "" {
		t.Errorf("card without location: got %q, %q", refs[1].City, refs[1].PostedOn)
	}
}

const detailHTML = `<html><body>
<h1 class="AdInfo_title__x1">Ducati Monster 821</h1>
<p class="index-module_price__N7M2x">8.900 €</p>
<span class="index-module_insertion-date__MU4AZ">Oggi alle 10:21</span>
<button class="favorite-button"><span class="counter">7</span></button>
<p class="AdInfo_locationText__Qm3">Moncalieri (TO)</p>
<ul class="feature-list_feature-list__Z1">
  <li><span>Marca</span><span>Ducati</span></li>
  <li><span>Modello</span><span>Monster 821</span></li>
  <li><span>Km</span><span>12.500</span></li>
  <li><span>only label</span></li>
</ul>
</body></html>`

func TestParseDetail(t *testing.T) {
	const url = "https://www.subito.it/moto-e-scooter/ducati-monster-torino-512345678.htm"
	got, err := ParseDetail(strings.NewReader(detailHTML), url)
	if err != nil {
		t.Fatal(err)
	}
	want := models.RawDetail{
		URL: url,
		Fields: map[string]string{
			models.FieldTitle:       "Ducati Monster 821",
			models.FieldPrice:       "8.900 €",
			models.FieldPublishDate: "Oggi alle 10:21",
			models.FieldLikes:       "7",
			models.FieldCity:        "Moncalieri (TO)",
		},
		Features: []models.FeaturePair{
			{Label: "Marca", Value: "Ducati"},
			{Label: "Modello", Value: "Monster 821"},
			{Label: "Km", Value: "12.500"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDetail mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDetailMissingElements(t *testing.T) {
	page := `<html><body>
<h1></h1>
<dl><dt>Cilindrata</dt><dd>125 cc</dd><dt>Anno</dt><dd>2015</dd></dl>
</body></html>`
	got, err := ParseDetail(strings.NewReader(page), "https://www.subito.it/x-1.htm")
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := got.Field(models.FieldTitle); !ok || v != "" {
		t.Errorf("title: got %q, %v; want present and empty", v, ok)
	}
	for _, key := range []string{models.FieldPrice, models.FieldPublishDate, models.FieldLikes, models.FieldCity} {
		if _, ok := got.Field(key); ok {
			t.Errorf("%s should be absent", key)
		}
	}
	wantFeatures := []models.FeaturePair{
		{Label: "Cilindrata", Value: "125 cc"},
		{Label: "Anno", Value: "2015"},
	}
	if diff := cmp.Diff(wantFeatures, got.Features); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
}
