package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/termframe/internal/config"
	"github.com/dshills/termframe/internal/logging"
	"github.com/dshills/termframe/internal/renderer"
	"github.com/dshills/termframe/internal/renderer/core"
	"github.com/dshills/termframe/internal/renderer/renderable"
	"github.com/dshills/termframe/internal/script"
)

// scene is the demo content: a backdrop, a framed panel, a status line
// and any configured scripts.
type scene struct {
	status     *renderable.Text
	statusNode *renderable.Node
	frames     int
	elapsed    time.Duration

	painters []*script.Painter
}

var (
	panelBg   = core.MustParseHex("#1E1E2E")
	panelFg   = core.MustParseHex("#89B4FA")
	statusFg  = core.MustParseHex("#A6ADC8")
	statusKey = "q quit"
)

// buildScene populates r's root. quit is called on q or Ctrl+c.
func buildScene(r *renderer.Renderer, cfg config.Config, logger *logging.Logger, quit context.CancelFunc) (*scene, error) {
	s := &scene{}
	root := r.Root()

	backdrop, fill := renderable.NewFillNode(0, 0, 0, 0, cfg.Background())
	fill.Stretch = true
	backdrop.SetName("backdrop")

	panel, _ := renderable.NewBoxNode(2, 1, 40, 8, renderable.Box{
		Style: core.BorderRounded,
		Fg:    panelFg,
		Fill:  &panelBg,
		Title: " termframe ",
	})
	panel.SetName("panel").SetZIndex(1)

	hello, _ := renderable.NewTextNode(2, 2, "Hello from the cell buffer.", core.White)
	if err := panel.Add(hello); err != nil {
		return nil, err
	}

	statusNode, status := renderable.NewTextNode(0, 0, statusKey, statusFg)
	statusNode.SetName("status").SetZIndex(2)
	s.status, s.statusNode = status, statusNode

	for _, n := range []*renderable.Node{backdrop, panel, statusNode} {
		if err := root.Add(n); err != nil {
			return nil, err
		}
	}

	for i, path := range cfg.Script.Paths {
		log := logger.WithComponent("script").WithField("script", path)
		n, p, err := script.LoadFile(path, script.WithFill(), script.WithErrorHandler(func(err error) {
			log.Warn("hook: %v", err)
		}))
		if err != nil {
			s.Close()
			return nil, err
		}
		n.SetPosition(0, 10).SetZIndex(3 + i)
		if err := root.Add(n); err != nil {
			p.Close()
			s.Close()
			return nil, err
		}
		s.painters = append(s.painters, p)
		r.Scheduler().AddCallback(10, func(dt time.Duration) {
			if err := p.Update(dt); err != nil && !errors.Is(err, script.ErrStateClosed) {
				log.Warn("update: %v", err)
			}
		})
	}

	r.Scheduler().AddCallback(0, func(dt time.Duration) { s.update(r, dt) })

	r.OnKey(func(ev core.KeyEvent) bool {
		if ev.Is("q") || ev.Is("Ctrl+c") {
			quit()
			return true
		}
		return false
	})
	return s, nil
}

// update refreshes the status line about twice a second.
func (s *scene) update(r *renderer.Renderer, dt time.Duration) {
	s.frames++
	s.elapsed += dt
	if s.elapsed < 500*time.Millisecond {
		return
	}
	fps := float64(s.frames) / s.elapsed.Seconds()
	s.frames, s.elapsed = 0, 0

	_, h := r.Size()
	s.status.SetContent(fmt.Sprintf("%s | %.0f fps | %d frames", statusKey, fps, r.Stats().Frames))
	s.statusNode.SetPosition(0, max(h-1, 0))
}

// Close releases script states.
func (s *scene) Close() {
	for _, p := range s.painters {
		p.Close()
	}
	s.painters = nil
}
