package models

import "fmt"

// ReportKind identifies one of the reports offered in the selection menu.
// The string values are the option values carried by the chat menu.
type ReportKind string

const (
	ReportDescription ReportKind = "description"
	ReportPrice       ReportKind = "price"
	ReportGlobal      ReportKind = "global"
	ReportTrending    ReportKind = "trending"
)

// ReportKinds lists every report in menu order.
var ReportKinds = []ReportKind{ReportDescription, ReportPrice, ReportGlobal, ReportTrending}

// Label is the human-readable menu text for the report.
func (k ReportKind) Label() string {
	switch k {
	case ReportDescription:
		return "Coin Description"
	case ReportPrice:
		return "Coin Price"
	case ReportGlobal:
		return "Global Market Overview"
	case ReportTrending:
		return "Trending Cryptocurrencies"
	default:
		return string(k)
	}
}

// ParseReportKind maps a menu option value back to its ReportKind.
func ParseReportKind(value string) (ReportKind, error) {
	for _, k := range ReportKinds {
		if string(k) == value {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown report kind %q", value)
}

// ReportRequest is built for every menu selection and handed to the report aggregator.
type ReportRequest struct {
	AssetID string
	Kind    ReportKind
}
