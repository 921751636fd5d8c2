package api

// ScoringWeights holds the config-driven weights spec.md §4.8 requires
// every dimension of the scoring table to come from configuration.
type ScoringWeights struct {
	ArtistExactMatch     int
	AlbumExactMatch      int
	PerfectMatchBonus    int // added on top when both artist and album are exact
	AlbumSubstringPenalty int
	AlbumUnrelatedPenalty int
	ReleaseGroupBonus    int // MusicBrainz release-group hit vs a specific release
	ReleaseTypeAlbum     int
	ReleaseTypeEP        int
	ReleaseTypeSingle    int
	ReleaseTypeOther     int // compilation/live
	StatusOfficial       int
	StatusPromo          int
	StatusBootleg        int
	ReissuePenalty       int
	CountryMatchBonus    int
	SourceBaseBonus      map[string]int
	YearDiffPenaltyPerYearSquared int // multiplies (year_diff)^2 and is added as is; a negative value penalizes
	MajorMarketCountries []string
}

// DefaultScoringWeights mirrors the typical values spec.md's examples
// imply (§4.8, §8). Deployments override them via configuration.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		ArtistExactMatch:      20,
		AlbumExactMatch:       20,
		PerfectMatchBonus:     15,
		AlbumSubstringPenalty: -10,
		AlbumUnrelatedPenalty: -30,
		ReleaseGroupBonus:     5,
		ReleaseTypeAlbum:      10,
		ReleaseTypeEP:         5,
		ReleaseTypeSingle:     2,
		ReleaseTypeOther:      -5,
		StatusOfficial:        10,
		StatusPromo:           0,
		StatusBootleg:         -20,
		ReissuePenalty:        -15,
		CountryMatchBonus:     5,
		SourceBaseBonus: map[string]int{
			"musicbrainz": 5,
			"discogs":     5,
			"itunes":      0,
		},
		YearDiffPenaltyPerYearSquared: -1,
		MajorMarketCountries:          []string{"US", "GB", "DE", "FR", "JP"},
	}
}

// Score computes a candidate's integer score against a query, per
// spec.md §4.8's scoring dimensions.
func Score(w ScoringWeights, c Candidate, artistCountry string, currentLibraryYear int) int {
	score := 0

	if c.ArtistExact {
		score += w.ArtistExactMatch
	}
	if c.AlbumExact {
		score += w.AlbumExactMatch
	} else if !c.ArtistExact {
		score += w.AlbumUnrelatedPenalty
	} else {
		score += w.AlbumSubstringPenalty
	}
	if c.ArtistExact && c.AlbumExact {
		score += w.PerfectMatchBonus
	}

	if c.IsReleaseGroup {
		score += w.ReleaseGroupBonus
	}

	switch c.ReleaseType {
	case "album":
		score += w.ReleaseTypeAlbum
	case "ep":
		score += w.ReleaseTypeEP
	case "single":
		score += w.ReleaseTypeSingle
	case "compilation", "live":
		score += w.ReleaseTypeOther
	}

	switch c.Status {
	case "official":
		score += w.StatusOfficial
	case "promo":
		score += w.StatusPromo
	case "bootleg":
		score += w.StatusBootleg
	}

	if c.IsReissue {
		score += w.ReissuePenalty
	}

	if c.Country != "" && (c.Country == artistCountry || isMajorMarket(w, c.Country)) {
		score += w.CountryMatchBonus
	}

	score += w.SourceBaseBonus[c.Source]

	if currentLibraryYear > 0 && c.Year > 0 {
		diff := c.Year - currentLibraryYear
		score += w.YearDiffPenaltyPerYearSquared * diff * diff
	}

	return score
}

func isMajorMarket(w ScoringWeights, country string) bool {
	for _, m := range w.MajorMarketCountries {
		if m == country {
			return true
		}
	}
	return false
}

// scored pairs a candidate with its computed score, used internally to
// sort and apply the definitive-result rule.
type scored struct {
	candidate Candidate
	score     int
}
