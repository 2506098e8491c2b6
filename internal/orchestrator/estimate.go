package orchestrator

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/tournevent/kiosk/internal/shipment"
	"github.com/tournevent/kiosk/pkg/shipper"
	"github.com/tournevent/kiosk/pkg/shipper/purolator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fallback estimate formula constants.
const (
	FallbackBaseRate      = 15.00
	FallbackWeightRate    = 2.50
	FallbackOutOfProvince = 1.2
	fallbackHomeProvince  = "ON"
)

// FallbackEstimate prices a parcel when the carrier cannot: base rate plus
// a per-pound rate, raised for destinations outside Ontario. The result is
// rounded to cents.
func FallbackEstimate(weight float64, province string) float64 {
	factor := 1.0
	if shipper.NormalizeProvince(province) != fallbackHomeProvince {
		factor = FallbackOutOfProvince
	}
	return math.Round((FallbackBaseRate+weight*FallbackWeightRate*factor)*100) / 100
}

// estimate asks the carrier for the Ground price and falls back to the
// formula on any failure. It reports whether the formula was used. With
// full set the parcel is priced from its dimensions instead of its weight.
func (o *Orchestrator) estimate(ctx context.Context, dest shipper.Address, pkg shipper.Package, account string, full bool) (float64, bool) {
	req := &shipper.EstimateRequest{
		Origin:         o.config.Sender,
		Destination:    dest,
		Package:        pkg,
		BillingAccount: account,
	}

	var (
		price float64
		err   error
	)
	if full {
		price, err = o.fullEstimate(ctx, req)
	} else {
		start := time.Now()
		price, err = o.carrier.QuickEstimate(ctx, req)
		o.observe("quickEstimate", start, err)
	}
	if err == nil && price > 0 {
		return price, false
	}

	fallback := FallbackEstimate(pkg.Weight, dest.Province)
	o.logger.Ctx(ctx).Warn("Carrier estimate unavailable, using formula",
		zap.String("destination_postal", dest.PostalCode),
		zap.Float64("fallback", fallback),
		zap.Error(err),
	)
	return fallback, true
}

func (o *Orchestrator) fullEstimate(ctx context.Context, req *shipper.EstimateRequest) (float64, error) {
	start := time.Now()
	rates, err := o.carrier.FullEstimate(ctx, req)
	o.observe("fullEstimate", start, err)
	if err != nil {
		return 0, err
	}
	rate, ok := purolator.SelectGround(rates)
	if !ok {
		return 0, shipper.ErrServiceNotOffered
	}
	return rate.TotalPrice, nil
}

// EstimateInput asks for the price of shipping one parcel.
type EstimateInput struct {
	City               string  `validate:"required,max=60"`
	Province           string  `validate:"required,caprovince"`
	PostalCode         string  `validate:"required,capostal"`
	Weight             float64 `validate:"gt=0,lte=150"`
	Length             float64 `validate:"gte=0"`
	Width              float64 `validate:"gte=0"`
	Height             float64 `validate:"gte=0"`
	InstitutionAccount string  `validate:"omitempty,len=8,number"`
}

// Estimate is one priced option.
type Estimate struct {
	Account  string
	Amount   float64
	Fallback bool
}

// Estimates prices the shipment against the station account and, when one
// is given, the recipient institution's account.
type Estimates struct {
	CSC         Estimate
	Institution *Estimate
}

// GetEstimates returns the dual estimate shown before the operator picks a
// billing type. Both prices are fetched in parallel and each falls back to
// the formula on its own. A parcel given with all three dimensions gets a
// full estimate; otherwise the standard box is quick-estimated by weight.
func (o *Orchestrator) GetEstimates(ctx context.Context, in *EstimateInput) (*Estimates, error) {
	if err := shipment.ValidateStruct(in); err != nil {
		return nil, err
	}

	postal, _ := shipper.NormalizePostalCode(in.PostalCode)
	dest := shipper.Address{
		City:       strings.TrimSpace(in.City),
		Province:   shipper.NormalizeProvince(in.Province),
		PostalCode: postal,
		Country:    shipper.DefaultCountry,
	}
	pkg := shipper.Package{Length: in.Length, Width: in.Width, Height: in.Height, Weight: in.Weight}
	full := pkg.Length > 0 && pkg.Width > 0 && pkg.Height > 0
	if !full {
		pkg.Length, pkg.Width, pkg.Height = o.config.Box.Length, o.config.Box.Width, o.config.Box.Height
	}

	out := &Estimates{CSC: Estimate{Account: o.config.CSCAccount}}
	if in.InstitutionAccount != "" {
		out.Institution = &Estimate{Account: in.InstitutionAccount}
	}

	var g errgroup.Group
	g.Go(func() error {
		out.CSC.Amount, out.CSC.Fallback = o.estimate(ctx, dest, pkg, out.CSC.Account, full)
		return nil
	})
	if inst := out.Institution; inst != nil {
		g.Go(func() error {
			inst.Amount, inst.Fallback = o.estimate(ctx, dest, pkg, inst.Account, full)
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}
