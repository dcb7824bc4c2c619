// Package render draws resolved field values onto a template image and wraps
// the result into a single-page PDF.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

var (
	// ErrComposition wraps an undecodable template image or a failed encode.
	ErrComposition = errors.New("certificate composition failed")
	// ErrMissingEventDate is returned for date fields when event dates are required.
	ErrMissingEventDate = errors.New("event date is required for date fields")
)

// Blank canvas size used when a template image cannot be decoded and the
// fallback is enabled.
const (
	BlankWidth  = 1200
	BlankHeight = 800
)

// Options configures a Composer.
type Options struct {
	Fonts *FontLoader
	// BlankCanvasFallback substitutes a white canvas for undecodable images.
	// Enable it for development only.
	BlankCanvasFallback bool
	// RequireEventDate rejects date fields that would fall back to the clock.
	RequireEventDate bool
	Now              func() time.Time
}

// Composer is safe for concurrent use; it never mutates the template bytes.
type Composer struct {
	fonts            *FontLoader
	fallback         bool
	requireEventDate bool
	now              func() time.Time
}

func NewComposer(opts Options) *Composer {
	c := &Composer{
		fonts:            opts.Fonts,
		fallback:         opts.BlankCanvasFallback,
		requireEventDate: opts.RequireEventDate,
		now:              opts.Now,
	}
	if c.fonts == nil {
		c.fonts = NewFontLoader(nil, nil)
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// Compose renders fields onto the template image and returns PDF bytes.
func (c *Composer) Compose(ctx context.Context, templateImage []byte, fields []persistence.FieldDescriptor, att persistence.AttendeeRecord, tpl persistence.TemplateRecord) ([]byte, error) {
	img, err := c.Render(ctx, templateImage, fields, att, tpl)
	if err != nil {
		return nil, err
	}
	return EncodePDF(img)
}

// Render draws every descriptor in order onto an opaque copy of the template
// image. Empty values still go through the draw call.
func (c *Composer) Render(ctx context.Context, templateImage []byte, fields []persistence.FieldDescriptor, att persistence.AttendeeRecord, tpl persistence.TemplateRecord) (*image.NRGBA, error) {
	if c.requireEventDate && (att.EventDate == nil || att.EventDate.IsZero()) {
		for _, f := range fields {
			if strings.EqualFold(strings.TrimSpace(f.Type), persistence.FieldTypeDate) {
				return nil, ErrMissingEventDate
			}
		}
	}

	canvas, err := c.canvas(templateImage)
	if err != nil {
		return nil, err
	}

	now := c.now()
	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.drawField(canvas, f, FieldValue(f, att, tpl, now))
	}
	return canvas, nil
}

// canvas flattens the decoded template onto white, which also drops alpha.
func (c *Composer) canvas(data []byte) (*image.NRGBA, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if !c.fallback {
			return nil, fmt.Errorf("%w: decode template image: %w", ErrComposition, err)
		}
		return imaging.New(BlankWidth, BlankHeight, color.White), nil
	}
	b := src.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, src, image.Pt(0, 0), 1.0), nil
}

func (c *Composer) drawField(dst *image.NRGBA, f persistence.FieldDescriptor, value string) {
	face := c.fonts.Face(f.FontFamily, f.FontSize)
	defer face.Close()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(parseColor(f.FontColor)),
		Face: face,
	}
	x := alignedX(d, value, f.X, f.Align)
	// y is the top of the text box, the drawer wants the baseline.
	y := f.Y + face.Metrics().Ascent.Ceil()
	d.Dot = fixed.P(x, y)
	d.DrawString(value)
}

// alignedX returns the pen origin so the text's ink box starts (left), is
// centered on (center) or ends (right) at x. The box is measured with the
// face that will draw it.
func alignedX(d *font.Drawer, value string, x int, align string) int {
	switch strings.ToLower(strings.TrimSpace(align)) {
	case persistence.AlignCenter, persistence.AlignRight:
	default:
		return x
	}
	if value == "" {
		return x
	}
	bounds, _ := d.BoundString(value)
	minX, maxX := bounds.Min.X.Floor(), bounds.Max.X.Ceil()
	if strings.EqualFold(strings.TrimSpace(align), persistence.AlignRight) {
		return x - maxX
	}
	return x - minX - (maxX-minX)/2
}
