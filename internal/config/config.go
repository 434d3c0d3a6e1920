// Package config loads node settings from defaults, an optional YAML file,
// a .env file and ROUTE_VISION_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/ironsheep/route-vision/internal/detection"
	"github.com/ironsheep/route-vision/internal/imaging"
	"github.com/ironsheep/route-vision/internal/inference"
	"github.com/ironsheep/route-vision/internal/logging"
	"github.com/ironsheep/route-vision/internal/ocr"
)

// EnvPrefix prefixes every environment override, e.g. ROUTE_VISION_HTTP_ADDR.
const EnvPrefix = "ROUTE_VISION"

// Config is the full node configuration.
type Config struct {
	HTTP     HTTPConfig       `mapstructure:"http"`
	Image    ImageConfig      `mapstructure:"image"`
	Vest     VestConfig       `mapstructure:"vest"`
	Detector DetectorConfig   `mapstructure:"detector"`
	Models   ModelsConfig     `mapstructure:"models"`
	Routes   map[string]Route `mapstructure:"routes"`
	OCR      ocr.Config       `mapstructure:"ocr"`
	Annotate AnnotateConfig   `mapstructure:"annotate"`
	Store    StoreConfig      `mapstructure:"store"`
	Log      logging.Config   `mapstructure:"log"`
}

// HTTPConfig is the REST listener. CORSOrigins lists the origins allowed to
// call it from a browser; "*" allows any.
type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ImageConfig controls frame preprocessing. Resize <= 0 keeps the camera
// resolution. WatchDir, when set, is a spool directory the camera drops
// frames into.
type ImageConfig struct {
	Resize   int    `mapstructure:"resize"`
	Flip     bool   `mapstructure:"flip"`
	WatchDir string `mapstructure:"watch_dir"`
}

// VestConfig is the inclusive HSV window of high-visibility vest colours on
// the 8-bit scale (hue 0-179).
type VestConfig struct {
	HueL int `mapstructure:"hue_l"`
	HueH int `mapstructure:"hue_h"`
	SatL int `mapstructure:"sat_l"`
	SatH int `mapstructure:"sat_h"`
	ValL int `mapstructure:"val_l"`
	ValH int `mapstructure:"val_h"`
}

// DetectorConfig reaches the detection service. Confidence is the minimum
// score a detection needs to be kept.
type DetectorConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Confidence float64       `mapstructure:"confidence"`
}

// ModelsConfig names the two detector models.
type ModelsConfig struct {
	Coco string `mapstructure:"coco"`
	Tire string `mapstructure:"tire"`
}

// Route overrides the model or classes of one mode. Empty fields keep the
// built-in route.
type Route struct {
	Model   string `mapstructure:"model"`
	Classes []int  `mapstructure:"classes"`
}

// AnnotateConfig holds the box colours, as hex strings, for accepted and
// rejected detections.
type AnnotateConfig struct {
	BoxColor    string `mapstructure:"box_color"`
	RejectColor string `mapstructure:"reject_color"`
}

// StoreConfig points at the SQLite history. An empty path disables history.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})

	v.SetDefault("image.resize", 640)
	v.SetDefault("image.flip", false)
	v.SetDefault("image.watch_dir", "")

	v.SetDefault("vest.hue_l", 20)
	v.SetDefault("vest.hue_h", 50)
	v.SetDefault("vest.sat_l", 200)
	v.SetDefault("vest.sat_h", 255)
	v.SetDefault("vest.val_l", 100)
	v.SetDefault("vest.val_h", 200)

	v.SetDefault("detector.endpoint", "http://127.0.0.1:8500")
	v.SetDefault("detector.timeout", 30*time.Second)
	v.SetDefault("detector.confidence", 0.5)

	v.SetDefault("models.coco", "")
	v.SetDefault("models.tire", "")

	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("ocr.min_confidence", 0.0)

	v.SetDefault("annotate.box_color", "#FF0000")
	v.SetDefault("annotate.reject_color", "#FF00FF")

	v.SetDefault("store.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// New returns a viper instance with defaults and environment binding. When
// path is non-empty the YAML file is read; a missing file is an error.
func New(path string) (*viper.Viper, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Decode unmarshals and validates the current settings of v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is New followed by Decode.
func Load(path string) (*Config, *viper.Viper, error) {
	v, err := New(path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

// Watch reloads the config file on change and hands every valid result to
// apply. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, log zerolog.Logger, apply func(*Config)) {
	log = log.With().Str("component", "config").Logger()
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		apply(cfg)
	})
	v.WatchConfig()
}

// Validate checks every section that has constraints.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.VestRange(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.DetectionRoutes(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Style(); err != nil {
		errs = append(errs, err)
	}
	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		errs = append(errs, fmt.Errorf("detector.confidence %v outside [0, 1]", c.Detector.Confidence))
	}
	return errors.Join(errs...)
}

// VestRange converts the vest section to an HSV range.
func (c *Config) VestRange() (imaging.HSVRange, error) {
	vals := []struct {
		key string
		v   int
	}{
		{"hue_l", c.Vest.HueL}, {"hue_h", c.Vest.HueH},
		{"sat_l", c.Vest.SatL}, {"sat_h", c.Vest.SatH},
		{"val_l", c.Vest.ValL}, {"val_h", c.Vest.ValH},
	}
	for _, f := range vals {
		if f.v < 0 || f.v > 255 {
			return imaging.HSVRange{}, fmt.Errorf("vest.%s %d outside 0-255", f.key, f.v)
		}
	}

	r := imaging.HSVRange{
		Lower: imaging.HSV{H: uint8(c.Vest.HueL), S: uint8(c.Vest.SatL), V: uint8(c.Vest.ValL)},
		Upper: imaging.HSV{H: uint8(c.Vest.HueH), S: uint8(c.Vest.SatH), V: uint8(c.Vest.ValH)},
	}
	if err := r.Validate(); err != nil {
		return imaging.HSVRange{}, fmt.Errorf("vest: %w", err)
	}
	return r, nil
}

// DetectionRoutes builds the mode routing table from the model names and
// any per-mode overrides.
func (c *Config) DetectionRoutes() (detection.Routes, error) {
	routes := detection.DefaultRoutes(c.Models.Coco, c.Models.Tire)
	for name, o := range c.Routes {
		mode, ok := detection.ParseMode(name)
		if !ok {
			return nil, fmt.Errorf("routes.%s: unknown mode", name)
		}
		r := routes[mode]
		if o.Model != "" {
			r.Model = o.Model
		}
		if len(o.Classes) > 0 {
			r.Classes = append([]int(nil), o.Classes...)
		}
		routes[mode] = r
	}
	if err := routes.Validate(); err != nil {
		return nil, err
	}
	return routes, nil
}

// Style parses the annotation colours.
func (c *Config) Style() (detection.Style, error) {
	box, err := imaging.ParseHexColor(c.Annotate.BoxColor)
	if err != nil {
		return detection.Style{}, fmt.Errorf("annotate.box_color: %w", err)
	}
	reject, err := imaging.ParseHexColor(c.Annotate.RejectColor)
	if err != nil {
		return detection.Style{}, fmt.Errorf("annotate.reject_color: %w", err)
	}
	return detection.Style{Box: box, Reject: reject}, nil
}

// Inference returns the detector client settings.
func (c *Config) Inference() inference.Config {
	return inference.Config{Endpoint: c.Detector.Endpoint, Timeout: c.Detector.Timeout}
}
