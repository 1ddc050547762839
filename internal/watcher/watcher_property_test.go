//go:build property

package watcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// rawEvent is an event before it is placed under a concrete root.
type rawEvent struct {
	Kind EventKind
	Root string
	Rel  string
}

func genRawEvent() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.OneConstOf("src", "build", "ignored"),
		gen.OneConstOf("site.region", "template.conf", "pages/home.page", "blocks/nav.block"),
	).Map(func(vals []interface{}) rawEvent {
		return rawEvent{
			Kind: EventKind(vals[0].(int)),
			Root: vals[1].(string),
			Rel:  filepath.FromSlash(vals[2].(string)),
		}
	})
}

func TestSyncWatcherProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("build paths never reach the syncer and every handled event calls back once", prop.ForAll(
		func(events []rawEvent) bool {
			callbacks := 0
			w, syncer, _ := newFakeWatcher(t, func(EventKind, string) { callbacks++ })

			expected := 0
			for _, ev := range events {
				var path string
				switch ev.Root {
				case "build":
					path = filepath.Join(syncer.build, ev.Rel)
				case "ignored":
					path = filepath.Join(syncer.src, filepath.Dir(ev.Rel), ".DS_Store")
				default:
					path = filepath.Join(syncer.src, ev.Rel)
					expected++
				}
				w.dispatch(context.Background(), Event{Kind: ev.Kind, Path: path})
			}

			for _, c := range syncer.recorded() {
				if c.path != "" && syncer.InBuild(c.path) {
					return false
				}
			}
			return callbacks == expected && w.State() == StateIdle && syncer.overlaps.Load() == 0
		},
		gen.SliceOf(genRawEvent()),
	))

	properties.TestingRun(t)
}
