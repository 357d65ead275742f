// Package geo resolves IP addresses to a location and network owner through
// the ipwho.is API and derives OpenStreetMap links for the result.
package geo

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// LookupResult is a normalised geo record. Missing text is empty and missing
// coordinates are zero.
type LookupResult struct {
	Region  string  `json:"region"`
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	ISP     string  `json:"isp"`
	ASN     string  `json:"asn"`
}

// Response is the provider payload as received.
type Response struct {
	IP         string      `json:"ip,omitempty"`
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Region     string      `json:"region,omitempty"`
	Country    string      `json:"country,omitempty"`
	City       string      `json:"city,omitempty"`
	Latitude   *float64    `json:"latitude,omitempty"`
	Longitude  *float64    `json:"longitude,omitempty"`
	Connection *Connection `json:"connection,omitempty"`
}

type Connection struct {
	ISP string   `json:"isp,omitempty"`
	ASN ASNumber `json:"asn,omitempty"`
}

// ASNumber accepts the autonomous system number as a JSON number or string.
type ASNumber string

func (a *ASNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ASNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = ASNumber(n.String())
	return nil
}

// Result normalises a successful response.
func (r Response) Result() LookupResult {
	out := LookupResult{
		Region:  r.Region,
		Country: r.Country,
		City:    r.City,
	}
	if r.Latitude != nil {
		out.Lat = *r.Latitude
	}
	if r.Longitude != nil {
		out.Lon = *r.Longitude
	}
	if r.Connection != nil {
		out.ISP = r.Connection.ISP
		out.ASN = string(r.Connection.ASN)
	}
	return out
}

// ResponseFor rebuilds a successful response from a stored result.
func ResponseFor(ip string, res LookupResult) Response {
	lat, lon := res.Lat, res.Lon
	return Response{
		IP:         ip,
		Success:    true,
		Region:     res.Region,
		Country:    res.Country,
		City:       res.City,
		Latitude:   &lat,
		Longitude:  &lon,
		Connection: &Connection{ISP: res.ISP, ASN: ASNumber(res.ASN)},
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
