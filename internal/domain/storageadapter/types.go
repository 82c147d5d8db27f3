// Package storageadapter implements the three Storage-Adapter kinds named
// in spec.md §4.5: LocalOnly, OffchainOnly, and Blockchain+Offchain. Each
// satisfies circuits.Adapter.
package storageadapter

import (
	"time"

	"github.com/defarm/traceability-core/internal/domain/circuits"
)

// Kind is the closed set of adapter variants.
type Kind string

const (
	KindLocalOnly         Kind = "LocalOnly"
	KindOffchainOnly      Kind = "OffchainOnly"
	KindBlockchainOffchain Kind = "Blockchain+Offchain"
)

// AuthMode is the closed enumeration of adapter authentication schemes.
type AuthMode string

const (
	AuthNone        AuthMode = "None"
	AuthAPIKey      AuthMode = "ApiKey"
	AuthBearerToken AuthMode = "BearerToken"
	AuthBasicAuth   AuthMode = "BasicAuth"
)

// Config carries everything a configured adapter instance needs.
type Config struct {
	ConfigID        string
	Kind            Kind
	Endpoint        string
	Auth            AuthMode
	AuthSecret      string
	Timeout         time.Duration
	RetryCount      int
	MaxConcurrent   int
	ContractAddress string
	Network         string
}

// Entity and StorageLocation reuse the circuits package's wire shapes so
// the adapter's return value plugs directly into circuits.Adapter without
// a conversion layer at the call site.
type Entity = circuits.Entity
type StorageLocation = circuits.StorageLocation
