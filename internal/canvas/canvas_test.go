package canvas_test

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/bubblesets/internal/canvas"
)

func TestParseColor(t *testing.T) {
	c, err := canvas.ParseColor("rgba(0,0,0,0.25)")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 64}, c)

	c, err = canvas.ParseColor("black")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 255}, c)

	c, err = canvas.ParseColor("#f00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, c)

	c, err = canvas.ParseColor("rgb(70, 130, 180)")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 70, G: 130, B: 180, A: 255}, c)

	_, err = canvas.ParseColor("chartreuse-ish")
	assert.True(t, errors.Is(err, canvas.ErrInvalidColor))
}

func TestMatrixTransformRect(t *testing.T) {
	m := canvas.TranslateMatrix(10, 20).Multiply(canvas.ScaleMatrix(2, 2))
	x, y := m.TransformPoint(1, 1)
	assert.Equal(t, 12.0, x)
	assert.Equal(t, 22.0, y)
	assert.True(t, canvas.Identity().IsIdentity())
}

func TestRecorderBakesTransforms(t *testing.T) {
	r := canvas.NewRecorder(200, 100, 2)
	w, h := r.Size()
	r.Save()
	r.ResetTransform()
	r.ClearRect(0, 0, w, h)
	r.Restore()

	r.Save()
	r.Translate(10, 0)
	r.Scale(2, 2)
	r.SetFillStyle("red")
	r.BeginPath()
	r.MoveTo(0, 0)
	r.LineTo(5, 0)
	r.LineTo(5, 5)
	r.ClosePath()
	r.Fill()
	r.Stroke()
	r.Restore()

	cmds := r.Flush()
	require.Len(t, cmds, 3)
	assert.Equal(t, "clear", cmds[0].Op)
	assert.Equal(t, []float64{0, 0, 200, 100}, cmds[0].Rect)
	assert.Equal(t, "fill", cmds[1].Op)
	assert.Equal(t, "red", cmds[1].Fill)
	assert.Equal(t, []float64{2, 0, 0, 2, 10, 0}, cmds[1].Transform)
	assert.Len(t, cmds[1].Path, 4)
	assert.Equal(t, "stroke", cmds[2].Op)
	assert.Equal(t, "black", cmds[2].Stroke)

	assert.Empty(t, r.Flush())
	s, err := canvas.DrawCommandsToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)
}

func TestRasterFillsPath(t *testing.T) {
	r := canvas.NewRaster(40, 40)
	r.SetFillStyle("#0000ff")
	r.BeginPath()
	r.MoveTo(10, 10)
	r.LineTo(30, 10)
	r.LineTo(30, 30)
	r.LineTo(10, 30)
	r.ClosePath()
	r.Fill()

	_, _, b, a := r.Image().At(20, 20).RGBA()
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = r.Image().At(2, 2).RGBA()
	assert.Equal(t, uint32(0), a)

	r.ClearRect(0, 0, 40, 40)
	_, _, _, a = r.Image().At(20, 20).RGBA()
	assert.Equal(t, uint32(0), a)

	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}
