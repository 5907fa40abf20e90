package geo

// fallbackEntry is the fixed payload served in local development when the
// provider is unreachable. It is cached under the same key a live result
// would use, so later lookups hit the cache transparently.
var fallbackEntry = Entry{
	IP:          "127.0.0.1",
	City:        "San Francisco",
	Region:      "California",
	Country:     "United States",
	CountryCode: "US",
	Latitude:    37.7749,
	Longitude:   -122.4194,
	Timezone:    "America/Los_Angeles",
	UTCOffset:   "-0800",
}
