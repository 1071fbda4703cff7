package cli

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestNewFlags(t *testing.T) {
	flags := NewFlags()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"StorePath", flags.StorePath, DefaultStorePath()},
		{"LogLevel", flags.LogLevel, "info"},
		{"CfgFile", flags.CfgFile, ""},
		{"Fetch", flags.Fetch, false},
		{"Force", flags.Force, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.expected) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("FLICKR_API_KEY", "")

	SetDefaults()
	s := LoadSettings(&Flags{Fetch: true})

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"FlickrEndpoint", s.FlickrEndpoint, "https://api.flickr.com/services/rest"},
		{"StorePath", s.StorePath, DefaultStorePath()},
		{"LogLevel", s.LogLevel, "info"},
		{"PerPage", s.PerPage, 30},
		{"MaxPage", s.MaxPage, 30},
		{"PhotosPerPin", s.PhotosPerPin, 30},
		{"HalfWidth", s.HalfWidth, 1.0},
		{"HalfHeight", s.HalfHeight, 1.0},
		{"MaxBytes", s.MaxBytes, int64(10 * 1024 * 1024)},
		{"Concurrency", s.Concurrency, 8},
		{"Fetch", s.Fetch, true},
		{"FlickrKey", s.FlickrKey, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.expected) {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("FLICKR_API_KEY", "env-key")

	SetDefaults()
	viper.Set("search.photos_per_pin", 12)
	viper.Set("download.concurrency", 2)

	s := LoadSettings(NewFlags())
	if s.PhotosPerPin != 12 {
		t.Errorf("PhotosPerPin = %d, want 12", s.PhotosPerPin)
	}
	if s.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", s.Concurrency)
	}
	if s.FlickrKey != "env-key" {
		t.Errorf("FlickrKey = %q, want env-key", s.FlickrKey)
	}
}
