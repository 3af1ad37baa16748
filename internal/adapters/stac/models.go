package stac

// searchRequest is the POST /search payload. Fields follow the STAC API item
// search spec; Query uses the (widely deployed) query extension.
type searchRequest struct {
	Collections []string       `json:"collections"`
	BBox        []float64      `json:"bbox,omitempty"`
	Datetime    string         `json:"datetime,omitempty"`
	Limit       int            `json:"limit,omitempty"`
	Query       map[string]any `json:"query,omitempty"`
}

// featureCollection is the GeoJSON item collection a search returns.
type featureCollection struct {
	Type     string `json:"type"`
	Features []item `json:"features"`
}

type item struct {
	ID         string           `json:"id"`
	Properties itemProperties   `json:"properties"`
	Assets     map[string]asset `json:"assets"`
}

type itemProperties struct {
	Datetime   string  `json:"datetime"`
	CloudCover float64 `json:"eo:cloud_cover"`
}

type asset struct {
	Href string `json:"href"`
	Type string `json:"type"`
}
