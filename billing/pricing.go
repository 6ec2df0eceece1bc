package billing

// ModelAccess describes one inference model a tier may use and what a call
// costs in credits.
type ModelAccess struct {
	DisplayName string `json:"name"`
	CreditCost  int    `json:"cost"`
	Description string `json:"description"`
}

// PricingTier is a static catalog entry, loaded at startup and never
// user-mutable.
type PricingTier struct {
	Name            string                 `json:"name"`
	MonthlyPrice    float64                `json:"monthlyPrice"`
	IncludedCredits int                    `json:"includedCredits"`
	Features        []string               `json:"features"`
	ModelAccess     map[string]ModelAccess `json:"modelAccess"`
}

// CreditPackage is a one-off credit bundle purchasable via checkout.
type CreditPackage struct {
	ID       string  `json:"id"`
	Credits  int     `json:"credits"`
	PriceUSD float64 `json:"price"`
}

var pricingTiers = []PricingTier{
	{
		Name:            "Free",
		MonthlyPrice:    0,
		IncludedCredits: 0,
		Features: []string{
			"Unlimited background removal",
			"Standard quality processing",
			"Basic support",
			"720p output resolution",
			"No credit card required",
		},
		ModelAccess: map[string]ModelAccess{
			"rembg": {DisplayName: "Rembg", CreditCost: 0, Description: "Basic background removal"},
		},
	},
	{
		Name:            "Pro",
		MonthlyPrice:    9.99,
		IncludedCredits: 50,
		Features: []string{
			"50 credits per month",
			"Advanced background removal",
			"High quality processing",
			"Priority support",
			"4K output resolution",
			"Custom background generation",
			"Batch processing",
			"API access",
		},
		ModelAccess: map[string]ModelAccess{
			"rembg":            {DisplayName: "Rembg", CreditCost: 0, Description: "Basic background removal"},
			"segment-anything": {DisplayName: "Segment Anything", CreditCost: 2, Description: "Advanced segmentation"},
			"stable-diffusion": {DisplayName: "Stable Diffusion", CreditCost: 3, Description: "AI background generation"},
		},
	},
}

var creditPackages = []CreditPackage{
	{ID: "credits-10", Credits: 100, PriceUSD: 10},
	{ID: "credits-50", Credits: 500, PriceUSD: 45},
	{ID: "credits-100", Credits: 1000, PriceUSD: 80},
}

// Tiers returns the pricing catalog. Callers get fresh copies so the
// catalog stays immutable.
func Tiers() []PricingTier {
	out := make([]PricingTier, len(pricingTiers))
	for i, tier := range pricingTiers {
		t := tier
		t.Features = append([]string(nil), tier.Features...)
		t.ModelAccess = make(map[string]ModelAccess, len(tier.ModelAccess))
		for k, v := range tier.ModelAccess {
			t.ModelAccess[k] = v
		}
		out[i] = t
	}
	return out
}

// Packages returns the purchasable credit bundles.
func Packages() []CreditPackage {
	return append([]CreditPackage(nil), creditPackages...)
}
