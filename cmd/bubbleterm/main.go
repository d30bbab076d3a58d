// Command bubbleterm previews the sample scene in a terminal. Arrow keys move the
// selected node, tab cycles the selection and the outlines follow through the
// throttled updates.
package main

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/inamate/bubblesets/internal/bubble"
	"github.com/inamate/bubblesets/internal/canvas"
	"github.com/inamate/bubblesets/internal/config"
	"github.com/inamate/bubblesets/internal/document"
	"github.com/inamate/bubblesets/internal/graph"
	"github.com/inamate/bubblesets/internal/typeid"
)

const step = 10

// view is one registry drawing onto a raster sized to the terminal.
type view struct {
	raster   *canvas.Raster
	registry *bubble.Registry

	mu    sync.Mutex
	frame *image.RGBA
}

func main() {
	// Log to stderr only on request, the screen owns stdout.
	logger := slog.New(slog.DiscardHandler)
	if os.Getenv("BUBBLETERM_DEBUG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	opts := append(cfg.BubbleOptions(), bubble.WithLogger(logger))

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts []bubble.Option) error {
	doc := document.NewSampleScene(typeid.NewSceneID())
	g, err := doc.Graph()
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	bg, err := canvas.ParseColor(doc.Background)
	if err != nil {
		return fmt.Errorf("background: %w", err)
	}
	background, _ := colorful.MakeColor(bg)

	nodes := g.Nodes()
	selected := 0

	var v *view
	open := func() error {
		if v != nil {
			v.registry.Close()
			v = nil
		}
		cols, rows := screen.Size()
		v, err = newView(screen, g, doc, cols, max(rows-1, 1), opts)
		return err
	}
	if err := open(); err != nil {
		return err
	}
	defer func() {
		if v != nil {
			v.registry.Close()
		}
	}()

	for {
		switch ev := screen.PollEvent().(type) {
		case *tcell.EventResize:
			if err := open(); err != nil {
				return err
			}
			screen.Sync()
		case *tcell.EventInterrupt:
			v.blit(screen, background)
			status(screen, nodes[selected].ID)
			screen.Show()
		case *tcell.EventKey:
			id := nodes[selected].ID
			n, _ := g.Node(id)
			switch {
			case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
				return nil
			case ev.Key() == tcell.KeyTab:
				selected = (selected + 1) % len(nodes)
				v.registry.Draw()
			case ev.Key() == tcell.KeyLeft:
				err = g.MoveNode(id, n.Box.X-step, n.Box.Y)
			case ev.Key() == tcell.KeyRight:
				err = g.MoveNode(id, n.Box.X+step, n.Box.Y)
			case ev.Key() == tcell.KeyUp:
				err = g.MoveNode(id, n.Box.X, n.Box.Y-step)
			case ev.Key() == tcell.KeyDown:
				err = g.MoveNode(id, n.Box.X, n.Box.Y+step)
			case ev.Rune() == 'l':
				g.LayoutStop()
			}
			if err != nil {
				return err
			}
		}
	}
}

// newView fits the scene into cols x rows cells, two pixels per cell vertically,
// and mounts every grouping. Redraws post an interrupt to the screen.
func newView(screen tcell.Screen, g *graph.Graph, doc *document.Scene, cols, rows int, opts []bubble.Option) (*view, error) {
	w, h := cols, rows*2
	zoom := min(float64(w)/float64(doc.Width), float64(h)/float64(doc.Height))
	g.SetViewport(graph.Viewport{Zoom: zoom})

	v := &view{raster: canvas.NewRaster(w, h)}
	r, err := bubble.Register(g, v.raster, opts...)
	if err != nil {
		return nil, err
	}
	v.registry = r
	r.OnDraw(func() {
		document.DrawGraph(v.raster, g)
		v.snapshot()
		screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	if _, err := document.Mount(r, doc); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.Update(); err != nil {
		r.Close()
		return nil, err
	}
	return v, nil
}

func (v *view) snapshot() {
	src := v.raster.Image()
	frame := image.NewRGBA(src.Bounds())
	draw.Draw(frame, frame.Bounds(), src, src.Bounds().Min, draw.Src)
	v.mu.Lock()
	v.frame = frame
	v.mu.Unlock()
}

// blit paints the last frame with upper half blocks: the top pixel of a cell is
// the foreground, the bottom one the background.
func (v *view) blit(screen tcell.Screen, background colorful.Color) {
	v.mu.Lock()
	frame := v.frame
	v.mu.Unlock()
	if frame == nil {
		return
	}
	b := frame.Bounds()
	for y := b.Min.Y; y+1 < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			top := pixel(frame, x, y, background)
			bottom := pixel(frame, x, y+1, background)
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
}

// pixel composites a raster pixel over the background.
func pixel(img *image.RGBA, x, y int, background colorful.Color) tcell.Color {
	c := img.RGBAAt(x, y)
	if c.A == 0 {
		r, g, b := background.RGB255()
		return tcell.NewRGBColor(int32(r), int32(g), int32(b))
	}
	fg, _ := colorful.MakeColor(c)
	mixed := background.BlendRgb(fg, float64(c.A)/255).Clamped()
	r, g, b := mixed.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func status(screen tcell.Screen, selected string) {
	cols, rows := screen.Size()
	text := fmt.Sprintf(" %s  arrows move  tab select  l layout  q quit", selected)
	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < cols; x++ {
		r := ' '
		if x < len(text) {
			r = rune(text[x])
		}
		screen.SetContent(x, rows-1, r, nil, style)
	}
}
