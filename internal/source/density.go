package source

import "strings"

// Documented fallback densities used when a source cannot resolve a value.
const (
	DefaultImpactorDensityKgM3 = 3000.0 // typical stony asteroid
	DefaultTargetDensityKgM3   = 2500.0 // generic rock class
)

// densityByMaterial maps rock types to bulk density in kg/m3.
var densityByMaterial = map[string]float64{
	// Igneous
	"granite":  2750,
	"basalt":   2850,
	"gabbro":   2950,
	"diorite":  2800,
	"rhyolite": 2700,
	"andesite": 2750,
	"obsidian": 2600,
	"pumice":   1000,

	// Sedimentary
	"sandstone":    2400,
	"limestone":    2700,
	"shale":        2600,
	"conglomerate": 2500,
	"breccia":      2500,
	"siltstone":    2600,
	"mudstone":     2600,
	"coal":         1400,

	// Metamorphic
	"gneiss":    2750,
	"schist":    2700,
	"slate":     2750,
	"marble":    2700,
	"quartzite": 2650,
	"phyllite":  2700,

	// Unconsolidated
	"sand":   1600,
	"clay":   1800,
	"silt":   1700,
	"gravel": 1900,
	"soil":   1500,
	"loam":   1400,

	"water": 1000,
	"ice":   920,
}

// materialMatchOrder fixes the lookup order: longest names first so
// "sandstone" wins over "sand", then alphabetical. Deterministic regardless
// of map iteration order.
var materialMatchOrder = []string{
	"conglomerate", "sandstone", "limestone", "quartzite", "siltstone",
	"mudstone", "phyllite", "rhyolite", "andesite", "obsidian", "breccia",
	"diorite", "granite", "gabbro", "basalt", "gneiss", "gravel", "marble",
	"pumice", "schist", "shale", "slate", "clay", "coal", "loam", "sand",
	"silt", "soil", "water", "ice",
}

// categoryDefaults picks a representative material when only a broad class
// appears in the description.
var categoryDefaults = []struct {
	keywords []string
	material string
}{
	{[]string{"igneous", "volcanic", "plutonic"}, "granite"},
	{[]string{"sedimentary"}, "sandstone"},
	{[]string{"metamorphic"}, "gneiss"},
	{[]string{"unconsolidated", "alluvium"}, "sand"},
}

// MaterialFromDescription deterministically maps descriptive geology text to
// a material tag and density. Unmatched text falls back to the generic rock
// default with matched=false.
func MaterialFromDescription(description string) (material string, densityKgM3 float64, matched bool) {
	desc := strings.ToLower(description)
	if desc == "" {
		return "unknown", DefaultTargetDensityKgM3, false
	}

	for _, mat := range materialMatchOrder {
		if strings.Contains(desc, mat) {
			return mat, densityByMaterial[mat], true
		}
	}

	for _, cat := range categoryDefaults {
		for _, kw := range cat.keywords {
			if strings.Contains(desc, kw) {
				return cat.material, densityByMaterial[cat.material], true
			}
		}
	}

	return "unknown", DefaultTargetDensityKgM3, false
}
