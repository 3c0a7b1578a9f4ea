package services

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Ibino273/raspi-moto-scraper/models"
)

// Label aliases seen on detail pages, most specific first.
var (
	brandLabels        = []string{"marca"}
	modelLabels        = []string{"modello"}
	versionLabels      = []string{"versione", "allestimento"}
	vehicleTypeLabels  = []string{"tipologia", "tipo di veicolo", "tipo veicolo"}
	registrationLabels = []string{"immatricolazione", "anno di immatricolazione", "anno"}
	mileageLabels      = []string{"km", "chilometraggio", "km percorsi"}
	displacementLabels = []string{"cilindrata"}
)

// FeatureTable maps a normalized label to its raw value. Lookups of labels
// that are missing, or whose value is blank, report absence.
type FeatureTable map[string]string

// NewFeatureTable builds the table from label/value pairs. When a label
// appears twice the later value wins.
func NewFeatureTable(pairs []models.FeaturePair) FeatureTable {
	t := make(FeatureTable, len(pairs))
	for _, p := range pairs {
		label := NormalizeLabel(p.Label)
		if label == "" {
			continue
		}
		t[label] = normaliseText(p.Value)
	}
	return t
}

// NormalizeLabel lowercases with Italian casing rules, collapses whitespace
// and drops a trailing colon. A Caser keeps state, so each call gets its own.
func NormalizeLabel(label string) string {
	label = cases.Lower(language.Italian).String(label)
	label = strings.TrimSuffix(normaliseText(label), ":")
	return strings.TrimSpace(label)
}

// CanonicalBrand folds the casing of a brand so "HONDA", "honda" and
// "Honda" read the same. Mixed-case names ("MV Agusta") and short all-caps
// acronyms ("BMW", "KTM") are kept as written.
func CanonicalBrand(brand string) string {
	brand = normaliseText(brand)
	upper, lower := strings.ToUpper(brand), strings.ToLower(brand)
	switch {
	case brand == "":
		return ""
	case brand == upper && utf8.RuneCountInString(brand) <= 3:
		return brand
	case brand != upper && brand != lower:
		return brand
	}
	return cases.Title(language.Italian).String(brand)
}

// Get returns the value for label, normalizing the label first.
func (t FeatureTable) Get(label string) (string, bool) {
	v, ok := t[NormalizeLabel(label)]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (t FeatureTable) first(labels []string) (string, bool) {
	for _, l := range labels {
		if v, ok := t.Get(l); ok {
			return v, true
		}
	}
	return "", false
}

func (t FeatureTable) Brand() (string, bool)        { return t.first(brandLabels) }
func (t FeatureTable) Model() (string, bool)        { return t.first(modelLabels) }
func (t FeatureTable) Version() (string, bool)      { return t.first(versionLabels) }
func (t FeatureTable) VehicleType() (string, bool)  { return t.first(vehicleTypeLabels) }
func (t FeatureTable) Registration() (string, bool) { return t.first(registrationLabels) }
func (t FeatureTable) Mileage() (string, bool)      { return t.first(mileageLabels) }
func (t FeatureTable) Displacement() (string, bool) { return t.first(displacementLabels) }
