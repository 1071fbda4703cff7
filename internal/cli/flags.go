package cli

// Flags holds all command-line flag values
type Flags struct {
	// Global flags
	CfgFile   string
	StorePath string
	LogLevel  string

	// Command flags
	Fetch bool // download images right after acquiring
	Force bool // archive without asking
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		StorePath: DefaultStorePath(),
		LogLevel:  "info",
	}
}
