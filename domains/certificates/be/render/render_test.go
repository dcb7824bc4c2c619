package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"regexp"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func templatePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}), imaging.PNG))
	return buf.Bytes()
}

func TestFieldValue(t *testing.T) {
	t.Parallel()

	eventDate := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	att := persistence.AttendeeRecord{Name: "Jane Doe", StudentID: "S100"}
	tpl := persistence.TemplateRecord{EventName: strPtr("Spring Summit")}

	cases := []struct {
		name string
		d    persistence.FieldDescriptor
		att  persistence.AttendeeRecord
		want string
	}{
		{"name", persistence.FieldDescriptor{Type: "name"}, att, "Jane Doe"},
		{"student id", persistence.FieldDescriptor{Type: "student_id"}, att, "S100"},
		{"date from clock", persistence.FieldDescriptor{Type: "date"}, att, "March 01, 2025"},
		{"date from event", persistence.FieldDescriptor{Type: "DATE"}, withEventDate(att, eventDate), "February 04, 2025"},
		{"achievement from template", persistence.FieldDescriptor{Type: "achievement"}, att, "Spring Summit"},
		{"achievement prefers course", persistence.FieldDescriptor{Type: "achievement"}, withCourse(att, "Robotics"), "Robotics"},
		{"custom uses label", persistence.FieldDescriptor{Type: "custom", Label: "Certificate of Merit"}, att, "Certificate of Merit"},
		{"unknown", persistence.FieldDescriptor{Type: "signature"}, att, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, FieldValue(tc.d, tc.att, tpl, fixedNow))
		})
	}

	empty := ""
	require.Equal(t, "Hack Night", FieldValue(persistence.FieldDescriptor{Type: "achievement"},
		persistence.AttendeeRecord{Course: &empty, EventName: strPtr("Hack Night")}, tpl, fixedNow))
	require.Equal(t, "", FieldValue(persistence.FieldDescriptor{Type: "achievement"}, persistence.AttendeeRecord{}, persistence.TemplateRecord{}, fixedNow))
}

func withEventDate(a persistence.AttendeeRecord, d time.Time) persistence.AttendeeRecord {
	a.EventDate = &d
	return a
}

func withCourse(a persistence.AttendeeRecord, c string) persistence.AttendeeRecord {
	a.Course = &c
	return a
}

func TestParseColor(t *testing.T) {
	t.Parallel()

	require.Equal(t, color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}, parseColor("#123456"))
	require.Equal(t, color.NRGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}, parseColor("f0f"))
	require.Equal(t, black, parseColor("#12345"))
	require.Equal(t, black, parseColor("#zzzzzz"))
	require.Equal(t, black, parseColor(""))
}

func TestFamilyKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "opensans", familyKey("Open Sans"))
	require.Equal(t, "opensans", familyKey("open-sans.ttf"))
	require.Equal(t, "opensans", familyKey("Open_Sans.OTF"))
	require.Equal(t, "", familyKey("  "))
}

func TestFontLoaderFallsBack(t *testing.T) {
	t.Parallel()

	loader := NewFontLoader([]string{t.TempDir(), "/does/not/exist"}, nil)
	face := loader.Face("Arial", 32)
	defer face.Close()

	require.Positive(t, face.Metrics().Ascent.Ceil())
	require.Nil(t, loader.lookup("Arial"))
}

func TestRenderCentersTextOnX(t *testing.T) {
	t.Parallel()

	composer := NewComposer(Options{Now: func() time.Time { return fixedNow }})
	tpl := persistence.TemplateRecord{}
	fields := []persistence.FieldDescriptor{{Type: "name", X: 400, Y: 100, FontSize: 40, Align: "center"}}
	bg := templatePNG(t, 800, 300)

	short, err := composer.Render(context.Background(), bg, fields, persistence.AttendeeRecord{Name: "Jane Doe"}, tpl)
	require.NoError(t, err)
	long, err := composer.Render(context.Background(), bg, fields, persistence.AttendeeRecord{Name: "Jane Alexandra Maria Doe"}, tpl)
	require.NoError(t, err)

	shortBox, longBox := inkBox(short), inkBox(long)
	require.Greater(t, longBox.Dx(), shortBox.Dx())
	require.InDelta(t, 400, midX(shortBox), 3)
	require.InDelta(t, 400, midX(longBox), 3)
	require.InDelta(t, midX(shortBox), midX(longBox), 2)
	require.GreaterOrEqual(t, shortBox.Min.Y, 100)
}

func TestRenderRightAlignEndsAtX(t *testing.T) {
	t.Parallel()

	composer := NewComposer(Options{})
	fields := []persistence.FieldDescriptor{{Type: "student_id", X: 600, Y: 50, FontSize: 30, Align: "right", FontColor: "#ff0000"}}

	img, err := composer.Render(context.Background(), templatePNG(t, 800, 200), fields, persistence.AttendeeRecord{StudentID: "S100"}, persistence.TemplateRecord{})
	require.NoError(t, err)

	box := inkBox(img)
	require.InDelta(t, 600, box.Max.X, 3)
}

func TestRenderDoesNotMutateTemplate(t *testing.T) {
	t.Parallel()

	bg := templatePNG(t, 300, 100)
	original := append([]byte(nil), bg...)

	composer := NewComposer(Options{})
	fields := []persistence.FieldDescriptor{{Type: "name", X: 10, Y: 10, FontSize: 20}}
	_, err := composer.Render(context.Background(), bg, fields, persistence.AttendeeRecord{Name: "Jane"}, persistence.TemplateRecord{})
	require.NoError(t, err)
	require.Equal(t, original, bg)

	again, err := composer.Render(context.Background(), bg, nil, persistence.AttendeeRecord{}, persistence.TemplateRecord{})
	require.NoError(t, err)
	require.True(t, inkBox(again).Empty(), "a second render starts from the clean template")
}

func TestRenderUndecodableImage(t *testing.T) {
	t.Parallel()

	_, err := NewComposer(Options{}).Render(context.Background(), []byte("not an image"), nil, persistence.AttendeeRecord{}, persistence.TemplateRecord{})
	require.ErrorIs(t, err, ErrComposition)

	img, err := NewComposer(Options{BlankCanvasFallback: true}).Render(context.Background(), []byte("not an image"), nil, persistence.AttendeeRecord{}, persistence.TemplateRecord{})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, BlankWidth, BlankHeight), img.Bounds())
}

func TestRenderRequireEventDate(t *testing.T) {
	t.Parallel()

	composer := NewComposer(Options{RequireEventDate: true})
	bg := templatePNG(t, 100, 100)

	_, err := composer.Render(context.Background(), bg, []persistence.FieldDescriptor{{Type: "date"}}, persistence.AttendeeRecord{}, persistence.TemplateRecord{})
	require.ErrorIs(t, err, ErrMissingEventDate)

	_, err = composer.Render(context.Background(), bg, []persistence.FieldDescriptor{{Type: "name"}}, persistence.AttendeeRecord{Name: "A"}, persistence.TemplateRecord{})
	require.NoError(t, err)
}

func TestRenderHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewComposer(Options{}).Render(ctx, templatePNG(t, 50, 50), []persistence.FieldDescriptor{{Type: "name"}}, persistence.AttendeeRecord{Name: "A"}, persistence.TemplateRecord{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestComposeProducesSinglePagePDF(t *testing.T) {
	t.Parallel()

	fields := []persistence.FieldDescriptor{
		{Type: "name", X: 100, Y: 200, FontSize: 40},
		{Type: "date", X: 100, Y: 300, FontSize: 24},
	}
	pdf, err := NewComposer(Options{}).Compose(context.Background(), templatePNG(t, 640, 480), fields, persistence.AttendeeRecord{Name: "Jane Doe"}, persistence.TemplateRecord{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	require.Len(t, pageObject.FindAll(pdf, -1), 1)
}

// inkBox returns the bounds of every pixel that is not pure white.
func inkBox(img *image.NRGBA) image.Rectangle {
	box := image.Rectangle{}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.NRGBAAt(x, y)
			if c.R == 0xff && c.G == 0xff && c.B == 0xff {
				continue
			}
			box = box.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return box
}

func midX(r image.Rectangle) float64 {
	return float64(r.Min.X+r.Max.X) / 2
}
