// Package renderer is the termframe rendering engine facade.
//
// A Renderer ties together a scene of renderable nodes, a double-buffered
// compositor and a frame scheduler, and drives a terminal backend:
//
//	┌─────────────────────────────────────────┐
//	│           Renderer (Facade)             │
//	├─────────────────────────────────────────┤
//	│ Scheduler │ Renderable tree │ Router    │
//	├─────────────────────────────────────────┤
//	│ Compositor (diff, swap) │ Worker        │
//	├─────────────────────────────────────────┤
//	│ OptimizedBuffer (cells, clip, blending) │
//	├─────────────────────────────────────────┤
//	│ Backend: ANSI tty │ tcell │ null        │
//	└─────────────────────────────────────────┘
//
// Each tick runs the scheduler callbacks, dispatches queued input, paints
// the tree into the back buffer, and flushes only the changed runs.
//
// Usage:
//
//	b := backend.NewTTYBackend(compositor.DetectColorMode(os.Getenv))
//	r, _ := renderer.New(b, renderer.DefaultOptions())
//	box, _ := renderable.NewBoxNode(2, 1, 20, 5, renderable.Box{Style: core.BorderRounded})
//	r.Root().Add(box)
//	r.Start(ctx)
//	defer r.Stop()
package renderer
