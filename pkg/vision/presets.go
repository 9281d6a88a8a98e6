package vision

import "fmt"

// Preset names for common capture resolutions
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// Resolution is a requested webcam frame size. Zero keeps the device default.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Presets returns all available resolution presets.
func Presets() map[string]Resolution {
	return map[string]Resolution{
		PresetDefault: {},
		PresetVGA:     {Width: 640, Height: 480},
		Preset720p:    {Width: 1280, Height: 720},
		Preset1080p:   {Width: 1920, Height: 1080},
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetVGA, Preset720p, Preset1080p}
}

// GetPreset returns a preset by name.
func GetPreset(name string) (Resolution, error) {
	if r, ok := Presets()[name]; ok {
		return r, nil
	}
	return Resolution{}, fmt.Errorf("vision: unknown resolution preset %q (have %v)", name, PresetNames())
}
