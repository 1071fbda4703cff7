package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"codeberg.org/snonux/pinphotos/internal/flickr"
)

// Settings is the resolved configuration of one run
type Settings struct {
	FlickrKey      string
	FlickrEndpoint string
	StorePath      string
	LogLevel       string

	PerPage      int
	MaxPage      int
	PhotosPerPin int
	HalfWidth    float64
	HalfHeight   float64

	MaxBytes    int64
	Concurrency int

	Fetch bool
	Force bool
}

// DefaultStorePath returns the store location under the user's state directory
func DefaultStorePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "pinphotos", "pinphotos.db")
}

// SetDefaults registers the default value of every configuration key
func SetDefaults() {
	viper.SetDefault("flickr.endpoint", flickr.DefaultEndpoint)
	viper.SetDefault("store.path", DefaultStorePath())
	viper.SetDefault("log.level", "info")
	viper.SetDefault("search.per_page", flickr.DefaultPerPage)
	viper.SetDefault("search.max_page", 30)
	viper.SetDefault("search.photos_per_pin", 30)
	viper.SetDefault("search.half_width", 1.0)
	viper.SetDefault("search.half_height", 1.0)
	viper.SetDefault("download.max_bytes", 10*1024*1024)
	viper.SetDefault("download.concurrency", 8)
}

// LoadSettings resolves flags, environment and config file into Settings
func LoadSettings(flags *Flags) *Settings {
	return &Settings{
		FlickrKey:      GetFlickrKey(),
		FlickrEndpoint: viper.GetString("flickr.endpoint"),
		StorePath:      viper.GetString("store.path"),
		LogLevel:       viper.GetString("log.level"),
		PerPage:        viper.GetInt("search.per_page"),
		MaxPage:        viper.GetInt("search.max_page"),
		PhotosPerPin:   viper.GetInt("search.photos_per_pin"),
		HalfWidth:      viper.GetFloat64("search.half_width"),
		HalfHeight:     viper.GetFloat64("search.half_height"),
		MaxBytes:       viper.GetInt64("download.max_bytes"),
		Concurrency:    viper.GetInt("download.concurrency"),
		Fetch:          flags.Fetch,
		Force:          flags.Force,
	}
}

// GetFlickrKey retrieves the Flickr API key from environment or config
func GetFlickrKey() string {
	// First check environment variable
	if key := os.Getenv("FLICKR_API_KEY"); key != "" {
		return key
	}

	// Then check config file
	return viper.GetString("flickr.api_key")
}
