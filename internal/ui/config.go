package ui

// Config contains window and persistence settings of the viewer.
type Config struct {
	Title     string // window title
	Scale     int    // integer upscaling factor
	StatePath string // save state file used by F5/F9
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "rnbwview"
	}
	if c.Scale <= 0 {
		c.Scale = 2
	}
	if c.StatePath == "" {
		c.StatePath = "rnbwview.savestate"
	}
}
