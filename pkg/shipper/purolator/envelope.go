package purolator

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"text/template"

	"github.com/google/uuid"
)

// serviceVersion is the datatypes namespace a Purolator service speaks.
// Every body element is written with the version's prefix because the
// carrier rejects default-namespaced children.
type serviceVersion struct {
	Prefix    string
	Namespace string
	Version   string
}

var (
	versionV1 = serviceVersion{Prefix: "v1", Namespace: "http://purolator.com/pws/datatypes/v1", Version: "1.2"}
	versionV2 = serviceVersion{Prefix: "v2", Namespace: "http://purolator.com/pws/datatypes/v2", Version: "2.2"}
)

// action returns the SOAPAction header value for an operation.
func (v serviceVersion) action(operation string) string {
	return fmt.Sprintf("http://purolator.com/pws/service/%s/%s", v.Prefix, operation)
}

const soapEnvelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:{{.Prefix}}="{{.Namespace}}">
  <soap:Header>
    <{{.Prefix}}:RequestContext>
      <{{.Prefix}}:Version>{{.Version}}</{{.Prefix}}:Version>
      <{{.Prefix}}:Language>en</{{.Prefix}}:Language>
      <{{.Prefix}}:GroupID></{{.Prefix}}:GroupID>
      <{{.Prefix}}:RequestReference>{{x .RequestRef}}</{{.Prefix}}:RequestReference>
    </{{.Prefix}}:RequestContext>
  </soap:Header>
  <soap:Body>
    {{.Body}}
  </soap:Body>
</soap:Envelope>`

const bodyTemplates = `
{{define "v2address"}}<v2:Address>
            <v2:Name>{{x .Name}}</v2:Name>
            <v2:Company>{{x .Company}}</v2:Company>
            <v2:StreetNumber>{{x .StreetNumber}}</v2:StreetNumber>
            <v2:StreetName>{{x .StreetName}}</v2:StreetName>
            <v2:City>{{x .City}}</v2:City>
            <v2:Province>{{x .Province}}</v2:Province>
            <v2:Country>{{x .Country}}</v2:Country>
            <v2:PostalCode>{{x .PostalCode}}</v2:PostalCode>
            <v2:PhoneNumber>
              <v2:CountryCode>{{x .PhoneNumber.CountryCode}}</v2:CountryCode>
              <v2:AreaCode>{{x .PhoneNumber.AreaCode}}</v2:AreaCode>
              <v2:Phone>{{x .PhoneNumber.Phone}}</v2:Phone>
            </v2:PhoneNumber>
          </v2:Address>{{end}}

{{define "v2package"}}<v2:PackageInformation>
          <v2:ServiceID>{{x .ServiceID}}</v2:ServiceID>
          <v2:Description>{{x .Description}}</v2:Description>
          <v2:TotalWeight>
            <v2:Value>{{num .TotalWeight.Value}}</v2:Value>
            <v2:WeightUnit>{{x .TotalWeight.Unit}}</v2:WeightUnit>
          </v2:TotalWeight>
          <v2:TotalPieces>{{.TotalPieces}}</v2:TotalPieces>
          <v2:PiecesInformation>{{range .Pieces}}
            <v2:Piece>
              <v2:Weight>
                <v2:Value>{{num .Weight.Value}}</v2:Value>
                <v2:WeightUnit>{{x .Weight.Unit}}</v2:WeightUnit>
              </v2:Weight>
              <v2:Length>
                <v2:Value>{{num .Length}}</v2:Value>
                <v2:DimensionUnit>in</v2:DimensionUnit>
              </v2:Length>
              <v2:Width>
                <v2:Value>{{num .Width}}</v2:Value>
                <v2:DimensionUnit>in</v2:DimensionUnit>
              </v2:Width>
              <v2:Height>
                <v2:Value>{{num .Height}}</v2:Value>
                <v2:DimensionUnit>in</v2:DimensionUnit>
              </v2:Height>
            </v2:Piece>{{end}}
          </v2:PiecesInformation>
        </v2:PackageInformation>{{end}}

{{define "v2shipment"}}<v2:Shipment>
        <v2:SenderInformation>
          {{template "v2address" .Sender}}
          <v2:TaxNumber>{{x .SenderTaxNumber}}</v2:TaxNumber>
        </v2:SenderInformation>
        <v2:ReceiverInformation>
          {{template "v2address" .Receiver}}{{with .ReceiverTaxNumber}}
          <v2:TaxNumber>{{x .}}</v2:TaxNumber>{{end}}
        </v2:ReceiverInformation>
        {{template "v2package" .Package}}
        <v2:PaymentInformation>
          <v2:PaymentType>Sender</v2:PaymentType>
          <v2:RegisteredAccountNumber>{{x .RegisteredAccountNumber}}</v2:RegisteredAccountNumber>
          <v2:BillingAccountNumber>{{x .BillingAccountNumber}}</v2:BillingAccountNumber>
        </v2:PaymentInformation>
        <v2:PickupInformation>
          <v2:PickupType>{{x .PickupType}}</v2:PickupType>
        </v2:PickupInformation>
        <v2:TrackingReferenceInformation>
          <v2:Reference1>{{x .Reference1}}</v2:Reference1>
        </v2:TrackingReferenceInformation>
      </v2:Shipment>{{end}}

{{define "GetQuickEstimate"}}<v2:GetQuickEstimateRequest>
      <v2:BillingAccountNumber>{{x .BillingAccountNumber}}</v2:BillingAccountNumber>
      <v2:SenderPostalCode>{{x .SenderPostalCode}}</v2:SenderPostalCode>
      <v2:ReceiverAddress>
        <v2:City>{{x .ReceiverAddress.City}}</v2:City>
        <v2:Province>{{x .ReceiverAddress.Province}}</v2:Province>
        <v2:Country>{{x .ReceiverAddress.Country}}</v2:Country>
        <v2:PostalCode>{{x .ReceiverAddress.PostalCode}}</v2:PostalCode>
      </v2:ReceiverAddress>
      <v2:PackageType>{{x .PackageType}}</v2:PackageType>
      <v2:TotalWeight>
        <v2:Value>{{num .TotalWeight.Value}}</v2:Value>
        <v2:WeightUnit>{{x .TotalWeight.Unit}}</v2:WeightUnit>
      </v2:TotalWeight>
    </v2:GetQuickEstimateRequest>{{end}}

{{define "GetFullEstimate"}}<v2:GetFullEstimateRequest>
      <v2:Shipment>
        <v2:SenderInformation>
          {{template "v2address" .Sender}}
        </v2:SenderInformation>
        <v2:ReceiverInformation>
          {{template "v2address" .Receiver}}
        </v2:ReceiverInformation>
        {{template "v2package" .Package}}
        <v2:PaymentInformation>
          <v2:PaymentType>Sender</v2:PaymentType>
          <v2:RegisteredAccountNumber>{{x .RegisteredAccountNumber}}</v2:RegisteredAccountNumber>
          <v2:BillingAccountNumber>{{x .BillingAccountNumber}}</v2:BillingAccountNumber>
        </v2:PaymentInformation>
        <v2:PickupInformation>
          <v2:PickupType>DropOff</v2:PickupType>
        </v2:PickupInformation>
      </v2:Shipment>
      <v2:ShowAlternativeServicesIndicator>{{.ShowAlternativeServices}}</v2:ShowAlternativeServicesIndicator>
    </v2:GetFullEstimateRequest>{{end}}

{{define "ValidateShipment"}}<v2:ValidateShipmentRequest>
      {{template "v2shipment" .}}
    </v2:ValidateShipmentRequest>{{end}}

{{define "CreateShipment"}}<v2:CreateShipmentRequest>
      {{template "v2shipment" .}}
      <v2:PrinterType>{{x .PrinterType}}</v2:PrinterType>
    </v2:CreateShipmentRequest>{{end}}

{{define "GetDocuments"}}<v1:GetDocumentsRequest>
      <v1:DocumentCriterium>
        <v1:DocumentCriteria>
          <v1:PIN>
            <v1:Value>{{x .PIN}}</v1:Value>
          </v1:PIN>
          <v1:DocumentTypes>
            <v1:DocumentType>{{x .DocumentType}}</v1:DocumentType>
          </v1:DocumentTypes>
        </v1:DocumentCriteria>
      </v1:DocumentCriterium>
    </v1:GetDocumentsRequest>{{end}}

{{define "TrackPackagesByPin"}}<v2:TrackPackagesByPinRequest>
      <v2:PINs>
        <v2:PIN>
          <v2:Value>{{x .}}</v2:Value>
        </v2:PIN>
      </v2:PINs>
    </v2:TrackPackagesByPinRequest>{{end}}

{{define "v1pickup"}}<v1:BillingAccountNumber>{{x .BillingAccountNumber}}</v1:BillingAccountNumber>
      <v1:PickupInstruction>
        <v1:Date>{{x .Date}}</v1:Date>
        <v1:AnyTimeAfter>{{x .AnyTimeAfter}}</v1:AnyTimeAfter>
        <v1:UntilTime>{{x .UntilTime}}</v1:UntilTime>
        <v1:TotalWeight>
          <v1:Value>{{num .TotalWeight.Value}}</v1:Value>
          <v1:WeightUnit>{{x .TotalWeight.Unit}}</v1:WeightUnit>
        </v1:TotalWeight>
        <v1:TotalPieces>{{.TotalPieces}}</v1:TotalPieces>
        <v1:PickUpLocation>{{x .PickUpLocation}}</v1:PickUpLocation>
        <v1:AdditionalInstructions>{{x .AdditionalInstructions}}</v1:AdditionalInstructions>
        <v1:LoadingDockAvailable>{{.LoadingDockAvailable}}</v1:LoadingDockAvailable>
        <v1:TrailerAccessible>{{.TrailerAccessible}}</v1:TrailerAccessible>
        <v1:ShipmentOnSkids>{{.ShipmentOnSkids}}</v1:ShipmentOnSkids>
      </v1:PickupInstruction>
      <v1:Address>
        <v1:Name>{{x .Address.Name}}</v1:Name>
        <v1:Company>{{x .Address.Company}}</v1:Company>
        <v1:StreetNumber>{{x .Address.StreetNumber}}</v1:StreetNumber>
        <v1:StreetName>{{x .Address.StreetName}}</v1:StreetName>
        <v1:City>{{x .Address.City}}</v1:City>
        <v1:Province>{{x .Address.Province}}</v1:Province>
        <v1:Country>{{x .Address.Country}}</v1:Country>
        <v1:PostalCode>{{x .Address.PostalCode}}</v1:PostalCode>
        <v1:PhoneNumber>
          <v1:CountryCode>{{x .Address.PhoneNumber.CountryCode}}</v1:CountryCode>
          <v1:AreaCode>{{x .Address.PhoneNumber.AreaCode}}</v1:AreaCode>
          <v1:Phone>{{x .Address.PhoneNumber.Phone}}</v1:Phone>
        </v1:PhoneNumber>{{if .Address.Email}}
        <v1:Email>{{x .Address.Email}}</v1:Email>{{end}}
      </v1:Address>{{end}}

{{define "ValidatePickUp"}}<v1:ValidatePickUpRequest>
      {{template "v1pickup" .}}
    </v1:ValidatePickUpRequest>{{end}}

{{define "SchedulePickUp"}}<v1:SchedulePickUpRequest>
      {{template "v1pickup" .}}
    </v1:SchedulePickUpRequest>{{end}}
`

var templateFuncs = template.FuncMap{
	"x":   escapeXML,
	"num": formatNumber,
}

var (
	envelopeTmpl = template.Must(template.New("envelope").Funcs(templateFuncs).Parse(soapEnvelopeTemplate))
	bodyTmpl     = template.Must(template.New("bodies").Funcs(templateFuncs).Parse(bodyTemplates))
)

// buildEnvelope renders the named body template and wraps it in a SOAP
// envelope whose RequestContext matches the service version.
func buildEnvelope(version serviceVersion, operation string, data interface{}) ([]byte, error) {
	var bodyBuf bytes.Buffer
	if err := bodyTmpl.ExecuteTemplate(&bodyBuf, operation, data); err != nil {
		return nil, fmt.Errorf("rendering %s body: %w", operation, err)
	}

	envData := struct {
		Prefix     string
		Namespace  string
		Version    string
		RequestRef string
		Body       string
	}{
		Prefix:     version.Prefix,
		Namespace:  version.Namespace,
		Version:    version.Version,
		RequestRef: "kiosk-" + uuid.NewString(),
		Body:       bodyBuf.String(),
	}

	var envBuf bytes.Buffer
	if err := envelopeTmpl.Execute(&envBuf, envData); err != nil {
		return nil, fmt.Errorf("rendering envelope: %w", err)
	}
	return envBuf.Bytes(), nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	// EscapeText only fails on writer errors, which bytes.Buffer never returns.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// formatNumber writes weights and dimensions as plain decimal strings.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
