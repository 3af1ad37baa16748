package selection_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/croplens/croplens/internal/domain/scene"
	"github.com/croplens/croplens/internal/domain/selection"
)

var seasonStart = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func window(days int) scene.SeasonWindow {
	return scene.SeasonWindow{Start: seasonStart, End: seasonStart.AddDate(0, 0, days)}
}

// sceneAt builds a descriptor at the given season fraction of a 100-day window.
func sceneAt(id string, frac, cloud float64) scene.Descriptor {
	return scene.Descriptor{
		ID:         id,
		AcquiredAt: window(100).DateAt(frac),
		CloudCover: cloud,
	}
}

func TestFractionalSelection(t *testing.T) {
	Convey("Given scenes at season fractions 0.1, 0.5, and 0.9", t, func() {
		w := window(100)
		scenes := []scene.Descriptor{
			sceneAt("s90", 0.9, 0.1),
			sceneAt("s10", 0.1, 0.2),
			sceneAt("s50", 0.5, 0.0),
		}

		Convey("When selecting fractions 0.3 and 0.7", func() {
			sel, err := selection.Fractional(0.3, 0.7).Select(scenes, w)

			Convey("Then each slot holds the nearest scene", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 2)
				// 0.3 is 20 days from s10 and s50; the tie goes to the earlier date.
				So(sel.Slots[0].Scene, ShouldNotBeNil)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "s10")
				So(sel.Slots[1].Scene, ShouldNotBeNil)
				So(sel.Slots[1].Scene.ID, ShouldEqual, "s50")
			})
		})

		Convey("When a fraction exactly matches a scene", func() {
			sel, err := selection.Fractional(0.3, 0.6, 0.9).Select(scenes, w)

			Convey("Then that scene is selected with zero distance", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 3)
				So(sel.Slots[2].Scene.ID, ShouldEqual, "s90")
				So(sel.Slots[2].Scene.AcquiredAt, ShouldEqual, sel.Slots[2].Target)
			})
		})

		Convey("When two fractions resolve to the same scene", func() {
			sel, err := selection.Fractional(0.48, 0.52).Select(scenes, w)

			Convey("Then the scene feeds only the first slot", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 2)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "s50")
				So(sel.Slots[1].Scene, ShouldBeNil)
			})
		})

		Convey("When a fraction lies outside [0,1]", func() {
			sel, err := selection.Fractional(1.5).Select(scenes, w)

			Convey("Then the target extrapolates and the nearest scene still wins", func() {
				So(err, ShouldBeNil)
				So(sel.Slots[0].Target.After(w.End), ShouldBeTrue)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "s90")
			})
		})

		Convey("When the scene list is empty", func() {
			sel, err := selection.Fractional(0.2, 0.8).Select(nil, w)

			Convey("Then every slot is absent, not an error", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 2)
				So(sel.Slots[0].Scene, ShouldBeNil)
				So(sel.Slots[1].Scene, ShouldBeNil)
				So(sel.Scenes(), ShouldBeEmpty)
			})
		})

		Convey("Then the input order is never mutated", func() {
			_, err := selection.Fractional(0.1, 0.9).Select(scenes, w)
			So(err, ShouldBeNil)
			So(scenes[0].ID, ShouldEqual, "s90")
			So(scenes[1].ID, ShouldEqual, "s10")
			So(scenes[2].ID, ShouldEqual, "s50")
		})
	})
}

func TestDefaultFractions(t *testing.T) {
	Convey("Given a snapshot count", t, func() {
		Convey("When deriving default fractions", func() {
			So(selection.DefaultFractions(3), ShouldResemble, []float64{0.2, 0.6, 1.0})
			So(selection.DefaultFractions(1), ShouldResemble, []float64{0.2})
			So(selection.DefaultFractions(0), ShouldBeNil)

			Convey("Then five snapshots span 0.2 to 1.0 evenly", func() {
				fr := selection.DefaultFractions(5)
				So(fr, ShouldHaveLength, 5)
				So(fr[0], ShouldAlmostEqual, 0.2, 1e-9)
				So(fr[4], ShouldAlmostEqual, 1.0, 1e-9)
				So(fr[2], ShouldAlmostEqual, 0.6, 1e-9)
			})
		})
	})
}

func TestFixedDateAndDates(t *testing.T) {
	Convey("Given scenes across a season", t, func() {
		w := window(100)
		scenes := []scene.Descriptor{
			sceneAt("a", 0.2, 0.1),
			sceneAt("b", 0.5, 0.1),
			sceneAt("c", 0.8, 0.1),
		}

		Convey("When selecting a fixed date", func() {
			sel, err := selection.FixedDate(w.DateAt(0.45)).Select(scenes, w)

			Convey("Then one slot holds the nearest scene", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 1)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "b")
			})
		})

		Convey("When the fixed date is missing", func() {
			_, err := selection.FixedDate(time.Time{}).Select(scenes, w)

			Convey("Then the strategy is rejected", func() {
				So(errors.Is(err, selection.ErrInvalidStrategy), ShouldBeTrue)
			})
		})

		Convey("When selecting by key dates", func() {
			sel, err := selection.Dates(w.DateAt(0.75), w.DateAt(0.25)).Select(scenes, w)

			Convey("Then output follows input order", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 2)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "c")
				So(sel.Slots[1].Scene.ID, ShouldEqual, "a")
			})
		})
	})
}

func TestTopNCloudFree(t *testing.T) {
	Convey("Given scenes with varying cloud cover", t, func() {
		w := window(100)
		scenes := []scene.Descriptor{
			sceneAt("late-clear", 0.9, 0.05),
			sceneAt("early-clear", 0.1, 0.05),
			sceneAt("hazy", 0.5, 0.20),
			sceneAt("cloudy", 0.3, 0.60),
		}

		Convey("When taking the top 2", func() {
			sel, err := selection.TopNCloudFree(2).Select(scenes, w)

			Convey("Then cloud cover is non-decreasing and ties go to the earlier date", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 2)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "early-clear")
				So(sel.Slots[1].Scene.ID, ShouldEqual, "late-clear")
				So(sel.Slots[0].Scene.CloudCover, ShouldBeLessThanOrEqualTo, sel.Slots[1].Scene.CloudCover)
			})
		})

		Convey("When n exceeds the scene count", func() {
			sel, err := selection.TopNCloudFree(10).Select(scenes, w)

			Convey("Then every scene is returned once", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 4)
			})
		})

		Convey("When n is zero", func() {
			sel, err := selection.TopNCloudFree(0).Select(scenes, w)

			Convey("Then the selection is empty", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldBeEmpty)
			})
		})
	})
}

func TestAllStrategy(t *testing.T) {
	Convey("Given scenes inside and outside the window", t, func() {
		w := window(100)
		inside := []scene.Descriptor{
			sceneAt("mid", 0.5, 0.1),
			sceneAt("first", 0.0, 0.1),
			sceneAt("last", 1.0, 0.1),
		}
		outside := sceneAt("after", 1.2, 0.1)
		scenes := append(append([]scene.Descriptor{}, inside...), outside)

		Convey("When selecting all", func() {
			sel, err := selection.All().Select(scenes, w)

			Convey("Then window scenes come back sorted ascending, none excluded, none duplicated", func() {
				So(err, ShouldBeNil)
				So(sel.Slots, ShouldHaveLength, 3)
				So(sel.Slots[0].Scene.ID, ShouldEqual, "first")
				So(sel.Slots[1].Scene.ID, ShouldEqual, "mid")
				So(sel.Slots[2].Scene.ID, ShouldEqual, "last")
			})
		})
	})
}

func TestUnknownStrategy(t *testing.T) {
	Convey("Given a strategy kind outside the closed set", t, func() {
		st := selection.Strategy{Kind: "clustered"}

		Convey("When selecting", func() {
			_, err := st.Select(nil, window(10))

			Convey("Then it is rejected immediately", func() {
				So(errors.Is(err, selection.ErrUnknownStrategy), ShouldBeTrue)
			})
		})
	})
}
