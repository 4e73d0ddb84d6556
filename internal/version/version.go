// ABOUTME: Build version information
// ABOUTME: Reported in server/hello and by the -version flag
package version

const (
	Version      = "0.1.0"
	Product      = "Resonate Noise"
	Manufacturer = "Resonate"
)

// String returns the product name and version
func String() string {
	return Product + " " + Version
}
