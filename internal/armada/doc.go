// Package armada defines the core types, capability interfaces, and error taxonomy shared by the
// wallpaper crawling pipeline. Concrete feeds, fetchers, and stores live in sibling packages and
// are consumed only through the interfaces declared here.
package armada
