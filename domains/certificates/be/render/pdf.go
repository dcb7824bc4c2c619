package render

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
)

// pointsPerPixel maps image pixels at 96 dpi onto PDF points.
const pointsPerPixel = 0.75

// EncodePDF losslessly wraps img as the only page of a PDF sized to the image.
func EncodePDF(img image.Image) ([]byte, error) {
	var raster bytes.Buffer
	if err := imaging.Encode(&raster, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encode png: %w", ErrComposition, err)
	}

	b := img.Bounds()
	w, h := float64(b.Dx())*pointsPerPixel, float64(b.Dy())*pointsPerPixel

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("certificate", opts, &raster)
	doc.ImageOptions("certificate", 0, 0, w, h, false, opts, 0, "")

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, fmt.Errorf("%w: write pdf: %w", ErrComposition, err)
	}
	return out.Bytes(), nil
}
