package progress

import "github.com/fatih/color"

// Palette mirrors ansible's ok/error/skip color constants.
type Palette struct {
	ok   *color.Color
	err  *color.Color
	skip *color.Color
}

func NewPalette(enabled bool) *Palette {
	p := &Palette{
		ok:   color.New(color.FgGreen),
		err:  color.New(color.FgRed),
		skip: color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.ok, p.err, p.skip} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Palette) Status(status Status) string {
	switch status {
	case StatusSuccess:
		return p.ok.Sprint(string(status))
	case StatusFailure, StatusErrored:
		return p.err.Sprint(string(status))
	case StatusIgnored, StatusSkipped:
		return p.skip.Sprint(string(status))
	default:
		return string(status)
	}
}

func (p *Palette) Error(text string) string {
	return p.err.Sprint(text)
}
