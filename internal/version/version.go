// ABOUTME: Version and product identity constants
// ABOUTME: Shared by the CLI banner and the user agent string
package version

const (
	// Version is the software version.
	Version = "0.1.0"

	// Product is the product name.
	Product = "Baatein Client"

	// Manufacturer is the product vendor.
	Manufacturer = "Baatein"
)
