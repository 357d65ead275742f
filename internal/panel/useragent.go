package panel

import (
	"strings"

	"github.com/mileusna/useragent"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Classification is what a user agent string says about the client. Any
// field may be empty when the string does not reveal it.
type Classification struct {
	DeviceType string
	OS         string
	Browser    string
}

// Classifier derives device, OS and browser names from a raw user agent.
type Classifier interface {
	Classify(ua string) Classification
}

// UAClassifier is the Classifier backed by mileusna/useragent.
type UAClassifier struct{}

func NewUAClassifier() UAClassifier { return UAClassifier{} }

func (UAClassifier) Classify(raw string) Classification {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Classification{}
	}
	ua := useragent.Parse(raw)
	out := Classification{OS: ua.OS, Browser: ua.Name}
	switch {
	case ua.Mobile:
		out.DeviceType = DeviceMobile
	case ua.Tablet:
		out.DeviceType = DeviceTablet
	case ua.Desktop:
		out.DeviceType = DeviceDesktop
	}
	return out
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(ua string) Classification

func (f ClassifierFunc) Classify(ua string) Classification { return f(ua) }

// label returns v or the placeholder when v is empty.
func label(v string) string {
	if strings.TrimSpace(v) == "" {
		return Placeholder
	}
	return v
}
