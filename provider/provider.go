// Package provider implements transcache.Provider backends.
package provider

import "github.com/ZaguanLabs/transcache"

// Provider is an alias to the main package interface for convenience.
type Provider = transcache.Provider

// Request is an alias to the main package type.
type Request = transcache.ProviderRequest

// Response is an alias to the main package type.
type Response = transcache.ProviderResponse

// Detection is an alias to the main package type.
type Detection = transcache.Detection
