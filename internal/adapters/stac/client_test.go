package stac_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/croplens/croplens/internal/adapters/stac"
	"github.com/croplens/croplens/internal/domain/scene"
)

const searchResponse = `{
	"type": "FeatureCollection",
	"features": [
		{
			"id": "S2A_late",
			"properties": {"datetime": "2024-06-20T10:30:00Z", "eo:cloud_cover": 12.5},
			"assets": {
				"B04": {"href": "https://assets.example/late/B04.tif"},
				"B08": {"href": "https://assets.example/late/B08.tif"},
				"visual": {"href": "https://assets.example/late/visual.tif"}
			}
		},
		{
			"id": "S2B_early",
			"properties": {"datetime": "2024-04-10T10:30:00Z", "eo:cloud_cover": 3.0},
			"assets": {
				"B04": {"href": "https://assets.example/early/B04.tif"},
				"B08": {"href": "https://assets.example/early/B08.tif"}
			}
		}
	]
}`

func testWindow() scene.SeasonWindow {
	return scene.SeasonWindow{
		Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestClientSearch(t *testing.T) {
	Convey("Given a STAC API returning two items", t, func(c C) {
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.So(r.Method, ShouldEqual, http.MethodPost)
			c.So(r.URL.Path, ShouldEqual, "/search")
			c.So(json.NewDecoder(r.Body).Decode(&gotBody), ShouldBeNil)
			w.Header().Set("Content-Type", "application/geo+json")
			_, _ = w.Write([]byte(searchResponse))
		}))
		defer srv.Close()

		client := stac.NewClient(srv.URL)
		q := scene.Query{
			Bound:    orb.Bound{Min: orb.Point{10, 45}, Max: orb.Point{10.5, 45.5}},
			Window:   testWindow(),
			MaxCloud: 0.3,
			Limit:    50,
		}

		Convey("When searching", func() {
			descs, err := client.Search(context.Background(), q)

			Convey("Then descriptors come back date ascending", func() {
				So(err, ShouldBeNil)
				So(descs, ShouldHaveLength, 2)
				So(descs[0].ID, ShouldEqual, "S2B_early")
				So(descs[1].ID, ShouldEqual, "S2A_late")
			})

			Convey("Then cloud cover converts from percent to fraction", func() {
				So(err, ShouldBeNil)
				So(descs[0].CloudCover, ShouldAlmostEqual, 0.03, 1e-9)
				So(descs[1].CloudCover, ShouldAlmostEqual, 0.125, 1e-9)
			})

			Convey("Then only band assets are kept", func() {
				So(err, ShouldBeNil)
				So(descs[1].Assets, ShouldContainKey, "B04")
				So(descs[1].Assets, ShouldContainKey, "B08")
				So(descs[1].Assets, ShouldNotContainKey, "visual")
			})

			Convey("Then the request carries bbox, datetime, and cloud query", func() {
				So(err, ShouldBeNil)
				So(gotBody["collections"], ShouldResemble, []any{stac.DefaultCollection})
				So(gotBody["bbox"], ShouldResemble, []any{10.0, 45.0, 10.5, 45.5})
				So(gotBody["datetime"], ShouldEqual, "2024-04-01T00:00:00Z/2024-07-10T00:00:00Z")
				So(gotBody["limit"], ShouldAlmostEqual, 50.0, 1e-9)
				query := gotBody["query"].(map[string]any)
				cloud := query["eo:cloud_cover"].(map[string]any)
				So(cloud["lt"], ShouldAlmostEqual, 30.0, 1e-9)
			})
		})

		Convey("When a sign func is installed", func() {
			signed := stac.NewClient(srv.URL, stac.WithSignFunc(func(href string) string {
				return href + "?sig=abc"
			}))
			descs, err := signed.Search(context.Background(), q)

			Convey("Then asset hrefs are signed", func() {
				So(err, ShouldBeNil)
				So(descs[0].Assets["B04"], ShouldEndWith, "?sig=abc")
			})
		})
	})
}

func TestClientSearchFailures(t *testing.T) {
	Convey("Given failing STAC endpoints", t, func() {
		q := scene.Query{Window: testWindow()}

		Convey("When the server returns a 500", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream exploded", http.StatusInternalServerError)
			}))
			defer srv.Close()

			_, err := stac.NewClient(srv.URL).Search(context.Background(), q)

			Convey("Then the failure surfaces as ErrSearchFailed", func() {
				So(errors.Is(err, stac.ErrSearchFailed), ShouldBeTrue)
			})
		})

		Convey("When the response is not JSON", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>nope</html>"))
			}))
			defer srv.Close()

			_, err := stac.NewClient(srv.URL).Search(context.Background(), q)

			Convey("Then decoding fails loudly", func() {
				So(errors.Is(err, stac.ErrSearchFailed), ShouldBeTrue)
			})
		})

		Convey("When an item carries a bad timestamp", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"id":"x","properties":{"datetime":"not-a-date"},"assets":{}}]}`))
			}))
			defer srv.Close()

			_, err := stac.NewClient(srv.URL).Search(context.Background(), q)

			Convey("Then the item is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the context is already cancelled", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(searchResponse))
			}))
			defer srv.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := stac.NewClient(srv.URL).Search(ctx, q)

			Convey("Then the search aborts", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
