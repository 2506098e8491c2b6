package purolator

import "strings"

// Base URLs for the two Purolator environments.
const (
	DevelopmentBaseURL = "https://devwebservices.purolator.com"
	ProductionBaseURL  = "https://webservices.purolator.com"
)

// Endpoints holds the service URLs for one environment.
type Endpoints struct {
	Estimating string
	Shipping   string
	Documents  string
	Tracking   string
	PickUp     string
}

// EndpointsFor returns the service URLs rooted at baseURL.
func EndpointsFor(baseURL string) Endpoints {
	base := strings.TrimRight(baseURL, "/")
	return Endpoints{
		Estimating: base + "/EWS/V2/Estimating/EstimatingService.asmx",
		Shipping:   base + "/EWS/V2/Shipping/ShippingService.asmx",
		Documents:  base + "/EWS/V1/ShippingDocuments/ShippingDocumentsService.asmx",
		Tracking:   base + "/EWS/V2/Tracking/TrackingService.asmx",
		PickUp:     base + "/EWS/V1/PickUp/PickUpService.asmx",
	}
}

// BaseURL selects the environment. Production is used only when explicitly
// requested; an override wins over both.
func BaseURL(production bool, override string) string {
	if override != "" {
		return override
	}
	if production {
		return ProductionBaseURL
	}
	return DevelopmentBaseURL
}
