package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/croplens/croplens/internal/app"
	"github.com/croplens/croplens/internal/domain/aggregate"
	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/internal/domain/selection"
)

type fakeSource struct {
	descs    []scene.Descriptor
	err      error
	gotQuery scene.Query
}

func (f *fakeSource) Search(_ context.Context, q scene.Query) ([]scene.Descriptor, error) {
	f.gotQuery = q
	return f.descs, f.err
}

type fakeReader struct {
	read func(href string, geom orb.Geometry) (scene.Grid, error)
}

func (f *fakeReader) ReadBand(_ context.Context, href string, geom orb.Geometry) (scene.Grid, error) {
	return f.read(href, geom)
}

func fieldAt(id string, x float64) scene.Field {
	return scene.Field{
		ID: id,
		Geometry: orb.Polygon{{
			{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0},
		}},
	}
}

func seasonScenes(window scene.SeasonWindow) []scene.Descriptor {
	days := []int{18, 45, 84} // early, mid, late in a 92-day season
	descs := make([]scene.Descriptor, len(days))
	for i, d := range days {
		descs[i] = scene.Descriptor{
			ID:         string(rune('a' + i)),
			AcquiredAt: window.Start.AddDate(0, 0, d),
			CloudCover: 0.05,
			Assets: map[string]string{
				"B04":    descID(i) + "#B04",
				"B08":    descID(i) + "#B08",
				"visual": descID(i) + "#visual",
			},
		}
	}
	return descs
}

func descID(i int) string {
	return string(rune('a' + i))
}

func gridReader() *fakeReader {
	return &fakeReader{read: func(href string, _ orb.Geometry) (scene.Grid, error) {
		switch href[len(href)-3:] {
		case "B04":
			return scene.Uniform(2, 2, 0.2), nil
		case "B08":
			return scene.Uniform(2, 2, 0.8), nil
		}
		return nil, errors.New("unexpected band href " + href)
	}}
}

func TestServiceExtract(t *testing.T) {
	window := scene.SeasonWindow{
		Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	Convey("Given a service over a three-scene season", t, func() {
		src := &fakeSource{descs: seasonScenes(window)}
		svc := service.New(
			service.WithSource(src),
			service.WithBandReader(gridReader()),
			service.WithCacheSize(0),
		)

		Convey("When extracting NDVI features with a fractional strategy", func() {
			res, err := svc.Extract(context.Background(), service.Request{
				Fields:   []scene.Field{fieldAt("f1", 0)},
				Window:   window,
				Strategy: selection.Fractional(0.2, 0.5, 0.8),
				Indices:  []string{"NDVI"},
				MaxCloud: 0.1,
			})

			Convey("Then each growth stage holds one snapshot with the expected value", func() {
				So(err, ShouldBeNil)
				So(res.Features, ShouldHaveLength, 3)
				So(res.Bands, ShouldBeEmpty)
				So(res.Features[0].Bucket, ShouldEqual, "early")
				So(res.Features[1].Bucket, ShouldEqual, "mid")
				So(res.Features[2].Bucket, ShouldEqual, "late")
				for _, row := range res.Features {
					So(row.FieldID, ShouldEqual, "f1")
					So(row.Index, ShouldEqual, "NDVI")
					So(row.Count, ShouldEqual, 1)
					So(row.Mean, ShouldAlmostEqual, 0.6, 1e-9)
					So(row.Std, ShouldAlmostEqual, 0, 1e-9)
				}
			})

			Convey("Then the search query covers the fields and honors the cloud cap", func() {
				So(src.gotQuery.MaxCloud, ShouldAlmostEqual, 0.1, 1e-9)
				So(src.gotQuery.Bound.Min.X(), ShouldAlmostEqual, 0, 1e-9)
				So(src.gotQuery.Bound.Max.X(), ShouldAlmostEqual, 1, 1e-9)
			})
		})

		Convey("When extracting in both mode", func() {
			res, err := svc.Extract(context.Background(), service.Request{
				Fields:   []scene.Field{fieldAt("f1", 0)},
				Window:   window,
				Strategy: selection.All(),
				Indices:  []string{"NDVI"},
				Mode:     service.ModeBoth,
			})

			Convey("Then raw band rows cover B04 and B08 but not non-band assets", func() {
				So(err, ShouldBeNil)
				So(res.Features, ShouldNotBeEmpty)
				So(res.Bands, ShouldHaveLength, 6) // 2 bands x 3 stages
				names := map[string]bool{}
				for _, row := range res.Bands {
					names[row.Index] = true
				}
				So(names, ShouldResemble, map[string]bool{"B04": true, "B08": true})
			})
		})

		Convey("When extracting over several fields with workers", func() {
			svc := service.New(
				service.WithSource(src),
				service.WithBandReader(gridReader()),
				service.WithCacheSize(0),
				service.WithFieldWorkers(4),
			)
			fields := []scene.Field{fieldAt("f3", 2), fieldAt("f1", 0), fieldAt("f2", 1)}
			res, err := svc.Extract(context.Background(), service.Request{
				Fields:   fields,
				Window:   window,
				Strategy: selection.Fractional(0.2, 0.5, 0.8),
				Indices:  []string{"NDVI"},
			})

			Convey("Then rows come back ordered by field regardless of worker timing", func() {
				So(err, ShouldBeNil)
				So(res.Features, ShouldHaveLength, 9)
				So(res.Features[0].FieldID, ShouldEqual, "f1")
				So(res.Features[3].FieldID, ShouldEqual, "f2")
				So(res.Features[6].FieldID, ShouldEqual, "f3")
			})
		})

		Convey("When a field does not overlap any scene", func() {
			rd := &fakeReader{read: func(href string, geom orb.Geometry) (scene.Grid, error) {
				if poly, ok := geom.(orb.Polygon); ok && poly[0][0][0] >= 20 {
					return nil, scene.ErrNoOverlap
				}
				return gridReader().read(href, geom)
			}}
			svc := service.New(
				service.WithSource(src),
				service.WithBandReader(rd),
				service.WithCacheSize(0),
			)
			res, err := svc.Extract(context.Background(), service.Request{
				Fields:   []scene.Field{fieldAt("f1", 0), fieldAt("far", 20)},
				Window:   window,
				Strategy: selection.Fractional(0.5),
				Indices:  []string{"NDVI"},
			})

			Convey("Then the distant field still gets rows, all empty", func() {
				So(err, ShouldBeNil)
				So(res.Features, ShouldHaveLength, 6)
				var far []aggregate.Row
				for _, row := range res.Features {
					if row.FieldID == "far" {
						far = append(far, row)
					}
				}
				So(far, ShouldHaveLength, 3)
				for _, row := range far {
					So(row.Count, ShouldEqual, 0)
					So(math.IsNaN(row.Mean), ShouldBeTrue)
				}
			})
		})

		Convey("When the band reader fails outright", func() {
			rd := &fakeReader{read: func(string, orb.Geometry) (scene.Grid, error) {
				return nil, errors.New("storage unreachable")
			}}
			svc := service.New(
				service.WithSource(src),
				service.WithBandReader(rd),
				service.WithCacheSize(0),
			)
			_, err := svc.Extract(context.Background(), service.Request{
				Fields:   []scene.Field{fieldAt("f1", 0)},
				Window:   window,
				Strategy: selection.All(),
			})

			Convey("Then the error surfaces instead of degrading to NaN", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "storage unreachable")
			})
		})
	})
}

func TestServiceExtractValidation(t *testing.T) {
	window := scene.SeasonWindow{
		Start: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	Convey("Given a service with a working source", t, func() {
		src := &fakeSource{descs: seasonScenes(window)}
		svc := service.New(
			service.WithSource(src),
			service.WithBandReader(gridReader()),
			service.WithCacheSize(0),
		)

		Convey("When the request carries no fields", func() {
			_, err := svc.Extract(context.Background(), service.Request{Window: window})

			Convey("Then it is rejected up front", func() {
				So(errors.Is(err, service.ErrNoFields), ShouldBeTrue)
			})
		})

		Convey("When a field has no geometry", func() {
			_, err := svc.Extract(context.Background(), service.Request{
				Fields: []scene.Field{{ID: "bare"}},
				Window: window,
			})

			Convey("Then the request is invalid", func() {
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			})
		})

		Convey("When the season window is inverted", func() {
			_, err := svc.Extract(context.Background(), service.Request{
				Fields: []scene.Field{fieldAt("f1", 0)},
				Window: scene.SeasonWindow{Start: window.End, End: window.Start},
			})

			Convey("Then the request is invalid", func() {
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			})
		})

		Convey("When an index name is unknown", func() {
			_, err := svc.Extract(context.Background(), service.Request{
				Fields:  []scene.Field{fieldAt("f1", 0)},
				Window:  window,
				Indices: []string{"NDVI", "BOGUS"},
			})

			Convey("Then the request is invalid", func() {
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "BOGUS")
			})
		})

		Convey("When the catalog matches nothing", func() {
			src.descs = nil
			_, err := svc.Extract(context.Background(), service.Request{
				Fields: []scene.Field{fieldAt("f1", 0)},
				Window: window,
			})

			Convey("Then the caller learns there were no scenes", func() {
				So(errors.Is(err, service.ErrNoScenes), ShouldBeTrue)
			})
		})

		Convey("When the catalog itself fails", func() {
			src.err = errors.New("gateway timeout")
			_, err := svc.Extract(context.Background(), service.Request{
				Fields: []scene.Field{fieldAt("f1", 0)},
				Window: window,
			})

			Convey("Then the failure propagates", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "gateway timeout")
			})
		})
	})
}
