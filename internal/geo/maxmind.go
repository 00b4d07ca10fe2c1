package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// countryRecord is the subset of a GeoLite2 Country/City record we decode.
type countryRecord struct {
	Country struct {
		IsoCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
}

// MaxMindProvider implements Provider using a MaxMind GeoLite2 database.
type MaxMindProvider struct {
	reader *maxminddb.Reader
}

// NewMaxMindProvider opens the database at dbPath.
func NewMaxMindProvider(dbPath string) (*MaxMindProvider, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

// Lookup returns geo information for an IP address.
func (m *MaxMindProvider) Lookup(ip string) (*Info, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ip)
	}

	var record countryRecord
	if err := m.reader.Lookup(parsedIP, &record); err != nil {
		return nil, err
	}
	if record.Country.IsoCode == "" {
		return nil, fmt.Errorf("no record for %s", ip)
	}

	return &Info{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
	}, nil
}

// Close closes the GeoIP database.
func (m *MaxMindProvider) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}
