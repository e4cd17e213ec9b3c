package audible

import "github.com/audiobookdb/audiobookdb/internal/catalog"

// regionTLD maps a marketplace region to the provider's domain suffix.
var regionTLD = map[catalog.Region]string{
	catalog.RegionUS: "com",
	catalog.RegionCA: "ca",
	catalog.RegionUK: "co.uk",
	catalog.RegionAU: "com.au",
	catalog.RegionFR: "fr",
	catalog.RegionDE: "de",
	catalog.RegionJP: "co.jp",
	catalog.RegionIT: "it",
	catalog.RegionIN: "in",
	catalog.RegionES: "es",
	catalog.RegionBR: "com.br",
}

func apiBase(region catalog.Region) string {
	return "https://api.audible." + regionTLD[region]
}

func siteBase(region catalog.Region) string {
	return "https://www.audible." + regionTLD[region]
}
