package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Frame struct {
	Fast       time.Duration `yaml:"fast"`
	Slow       time.Duration `yaml:"slow"`
	MaxOverdue int           `yaml:"max_overdue"`
	Epsilon    float64       `yaml:"epsilon"`
}

type SPI struct {
	Dev     string `yaml:"dev"`      // "" picks the first port
	SpeedHz int64  `yaml:"speed_hz"` // e.g. 2500000
}

type Shm struct {
	Path string `yaml:"path"`
	// Command starts the display process reading Path, e.g. [sudo, python3,
	// display.py]. The pixel count is appended. Empty leaves it to the system.
	Command []string `yaml:"command,omitempty"`
}

type Heartbeat struct {
	Path string `yaml:"path"` // e.g. /sys/class/leds/led0/brightness
	// Quiet lists LED directories whose kernel trigger is switched off
	// while the heartbeat runs.
	Quiet []string `yaml:"quiet,omitempty"`
}

type State struct {
	Backend      string        `yaml:"backend"` // "file" | "sqlite"
	Path         string        `yaml:"path"`
	SaveInterval time.Duration `yaml:"save_interval"`
}

type MQTT struct {
	Broker   string `yaml:"broker"` // empty disables
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type Sound struct {
	Dir    string `yaml:"dir"`
	Player string `yaml:"player"` // empty disables sound
}

type Preview struct {
	FPS float64 `yaml:"fps"`
}

type Config struct {
	PixelCount int    `yaml:"pixel_count"`
	Driver     string `yaml:"driver"` // "sim" | "spi" | "console" | "shm"
	ColorOrder string `yaml:"color_order"`
	Addr       string `yaml:"addr"`
	SiteDir    string `yaml:"site_dir"`
	LogLevel   string `yaml:"log_level"`

	Frame     Frame     `yaml:"frame"`
	SPI       SPI       `yaml:"spi,omitempty"`
	Shm       Shm       `yaml:"shm,omitempty"`
	Heartbeat Heartbeat `yaml:"heartbeat,omitempty"`
	State     State     `yaml:"state"`
	MQTT      MQTT      `yaml:"mqtt,omitempty"`
	Sound     Sound     `yaml:"sound,omitempty"`
	Preview   Preview   `yaml:"preview"`
}

func Default() *Config {
	return &Config{
		PixelCount: 60,
		Driver:     "sim",
		ColorOrder: "RGB",
		Addr:       ":8080",
		SiteDir:    "site",
		LogLevel:   "info",
		Frame: Frame{
			Fast:       16660 * time.Microsecond,
			Slow:       33330 * time.Microsecond,
			MaxOverdue: 5,
			Epsilon:    0.001,
		},
		SPI:       SPI{SpeedHz: 2500000},
		Heartbeat: Heartbeat{Quiet: []string{"/sys/class/leds/led1"}},
		State: State{
			Backend:      "file",
			Path:         "state.json",
			SaveInterval: 10 * time.Second,
		},
		MQTT:    MQTT{ClientID: "roomlight", Topic: "roomlight/options"},
		Sound:   Sound{Dir: "sounds"},
		Preview: Preview{FPS: 20},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadOrCreate is Load, except that a missing file is created from the
// defaults so the first run leaves an editable config behind.
func LoadOrCreate(path string) (c *Config, created bool, err error) {
	c, err = Load(path)
	if !errors.Is(err, os.ErrNotExist) {
		return c, false, err
	}
	c = Default()
	if err := Save(path, c); err != nil {
		return c, false, err
	}
	return c, true, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
