package canvas

// Surface is the subset of a Canvas2D rendering context the outline overlay draws
// with. Fill and Stroke keep the current path, as on a browser canvas.
type Surface interface {
	// Size is the surface size in device pixels.
	Size() (width, height float64)
	// PixelRatio is the number of device pixels per CSS pixel.
	PixelRatio() float64

	Save()
	Restore()
	ResetTransform()
	Translate(x, y float64)
	Scale(x, y float64)

	ClearRect(x, y, width, height float64)
	FillRect(x, y, width, height float64)

	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()

	SetFillStyle(style string)
	SetStrokeStyle(style string)
	Fill()
	Stroke()
}
