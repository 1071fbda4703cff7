package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"codeberg.org/snonux/pinphotos/internal"
)

// Handler carries out the subcommands
type Handler interface {
	AddPin(ctx context.Context, latitude, longitude float64) error
	ListPins(ctx context.Context) error
	DeletePin(ctx context.Context, pinID string) error
	Acquire(ctx context.Context, pinID string) error
	Refresh(ctx context.Context, pinID string) error
	Fetch(ctx context.Context, pinID string) error
	ListPhotos(ctx context.Context, pinID string) error
	DeletePhotos(ctx context.Context, photoIDs []string) error
	Import(ctx context.Context, file string) error
	Export(ctx context.Context, pinID, dir string) error
	Archive(ctx context.Context) error
	Close() error
}

// Opener creates the Handler for a command once configuration is loaded
type Opener func(cmd *cobra.Command) (Handler, error)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags, open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pinphotos",
		Short: "Photo collections for map pins",
		Long: `pinphotos keeps a collection of photos for each saved map location.

For every pin it searches Flickr around the location, picks a random
page of results and stores a random sample of photo references. The
images themselves are downloaded later, on demand.

Examples:
  pinphotos pin add 42.6977 23.3219     # Save a pin at Sofia
  pinphotos acquire <pin-id> --fetch    # Search photos and download them
  pinphotos import pins.txt             # Create pins from "lat,lon" lines
  pinphotos pin add -- -33.8688 151.2093  # Negative coordinates after --`,
		Version:      internal.Version,
		SilenceUsage: true,
	}

	// Set up flags
	setupFlags(rootCmd, flags)

	rootCmd.AddCommand(
		pinCommand(open),
		acquireCommand(flags, open),
		refreshCommand(flags, open),
		fetchCommand(open),
		photosCommand(open),
		photoCommand(open),
		importCommand(flags, open),
		exportCommand(open),
		archiveCommand(flags, open),
	)

	return rootCmd
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	// Global flags
	cmd.PersistentFlags().StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.pinphotos.yaml)")
	cmd.PersistentFlags().StringVar(&flags.StorePath, "store", flags.StorePath, "Photo store (SQLite file)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")

	// Bind flags to viper
	bindFlagsToViper(cmd)
}

func bindFlagsToViper(cmd *cobra.Command) {
	viper.BindPFlag("store.path", cmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
}

// run opens a handler, calls fn and closes the handler again
func run(open Opener, fn func(ctx context.Context, h Handler, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		h, err := open(cmd)
		if err != nil {
			return err
		}
		defer h.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, h, args)
	}
}

func pinCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage pins",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <latitude> <longitude>",
			Short: "Save a pin at a location",
			Args:  cobra.ExactArgs(2),
			RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
				lat, lon, err := ParseCoordinates(args[0], args[1])
				if err != nil {
					return err
				}
				return h.AddPin(ctx, lat, lon)
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List all pins",
			Args:  cobra.NoArgs,
			RunE: run(open, func(ctx context.Context, h Handler, _ []string) error {
				return h.ListPins(ctx)
			}),
		},
		&cobra.Command{
			Use:   "delete <pin-id>",
			Short: "Delete a pin and all of its photos",
			Args:  cobra.ExactArgs(1),
			RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
				return h.DeletePin(ctx, args[0])
			}),
		},
	)

	return cmd
}

func acquireCommand(flags *Flags, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire <pin-id>",
		Short: "Search photos around a pin and store a random sample",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.Acquire(ctx, args[0])
		}),
	}
	cmd.Flags().BoolVar(&flags.Fetch, "fetch", false, "Download the images right away")
	return cmd
}

func refreshCommand(flags *Flags, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <pin-id>",
		Short: "Replace all photos of a pin with a new collection",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.Refresh(ctx, args[0])
		}),
	}
	cmd.Flags().BoolVar(&flags.Fetch, "fetch", false, "Download the images right away")
	return cmd
}

func fetchCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <pin-id>",
		Short: "Download the images of a pin that are still missing",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.Fetch(ctx, args[0])
		}),
	}
}

func photosCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "photos <pin-id>",
		Short: "List the photos of a pin",
		Args:  cobra.ExactArgs(1),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.ListPhotos(ctx, args[0])
		}),
	}
}

func photoCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Manage single photos",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <photo-id>...",
		Short: "Delete photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.DeletePhotos(ctx, args)
		}),
	})
	return cmd
}

func importCommand(flags *Flags, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create pins from a file and acquire photos for each",
		Long: `Create one pin per "latitude,longitude" line of the file and
acquire photos for it. Lines starting with '#' are comments. A pin
that fails does not stop the others.`,
		Args: cobra.ExactArgs(1),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.Import(ctx, args[0])
		}),
	}
	cmd.Flags().BoolVar(&flags.Fetch, "fetch", false, "Download the images right away")
	return cmd
}

func exportCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "export <pin-id> <dir>",
		Short: "Write the downloaded images of a pin to a directory",
		Args:  cobra.ExactArgs(2),
		RunE: run(open, func(ctx context.Context, h Handler, args []string) error {
			return h.Export(ctx, args[0], args[1])
		}),
	}
}

func archiveCommand(flags *Flags, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move the photo store into the archive and start fresh",
		Args:  cobra.NoArgs,
		RunE: run(open, func(ctx context.Context, h Handler, _ []string) error {
			return h.Archive(ctx)
		}),
	}
	cmd.Flags().BoolVarP(&flags.Force, "force", "f", false, "Archive even if some images are still missing")
	return cmd
}

// ParseCoordinates parses a latitude and a longitude argument
func ParseCoordinates(latArg, lonArg string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latArg), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", latArg)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonArg), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", lonArg)
	}
	return lat, lon, nil
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	SetDefaults()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".pinphotos" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pinphotos")
	}

	// Environment variables, e.g. PINPHOTOS_STORE_PATH for store.path
	viper.SetEnvPrefix("PINPHOTOS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
