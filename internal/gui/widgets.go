package gui

import (
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ImageDisplay is a custom widget for displaying the card image
type ImageDisplay struct {
	widget.BaseWidget

	container   *fyne.Container
	imageCanvas *canvas.Image
	imageLabel  *widget.Label
}

// NewImageDisplay creates a new image display widget
func NewImageDisplay() *ImageDisplay {
	d := &ImageDisplay{}

	d.imageCanvas = canvas.NewImageFromResource(nil)
	d.imageCanvas.FillMode = canvas.ImageFillContain
	d.imageCanvas.SetMinSize(fyne.NewSize(320, 240))

	d.imageLabel = widget.NewLabel("No image")
	d.imageLabel.Alignment = fyne.TextAlignCenter
	d.imageLabel.Wrapping = fyne.TextWrapWord

	d.container = container.NewBorder(
		nil,
		d.imageLabel,
		nil, nil,
		d.imageCanvas,
	)

	d.ExtendBaseWidget(d)
	return d
}

// CreateRenderer implements fyne.Widget
func (d *ImageDisplay) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(d.container)
}

// SetImage shows a decoded image
func (d *ImageDisplay) SetImage(img image.Image) {
	if img == nil {
		d.Clear()
		return
	}
	d.imageCanvas.Image = img
	d.imageCanvas.Refresh()
	d.imageLabel.SetText("")
	d.imageLabel.Hide()
}

// Clear clears the display
func (d *ImageDisplay) Clear() {
	d.setMessage("No image")
}

// SetGenerating shows a generating status
func (d *ImageDisplay) SetGenerating() {
	d.setMessage("Generating...")
}

// SetError shows why no image is available
func (d *ImageDisplay) SetError(err error) {
	d.setMessage(fmt.Sprintf("Image unavailable: %v", err))
}

func (d *ImageDisplay) setMessage(msg string) {
	d.imageCanvas.Image = nil
	d.imageCanvas.Refresh()
	d.imageLabel.SetText(msg)
	d.imageLabel.Show()
}
