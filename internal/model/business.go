package model

// Transformation describes the customer's before and after states
type Transformation struct {
	Before string `json:"before" yaml:"before"`
	After  string `json:"after" yaml:"after"`
}

// ValueProposition is the read-only business context produced by the authoring flow
type ValueProposition struct {
	BusinessName    string         `json:"business_name" yaml:"business_name"`
	ProductCategory string         `json:"product_category" yaml:"product_category"` // the specific named category that replaces generic jargon
	TargetCustomer  string         `json:"target_customer" yaml:"target_customer"`
	KeyBenefit      string         `json:"key_benefit" yaml:"key_benefit"`
	Transformation  Transformation `json:"transformation" yaml:"transformation"`
	Differentiators []string       `json:"differentiators,omitempty" yaml:"differentiators,omitempty"`
	Products        []string       `json:"products,omitempty" yaml:"products,omitempty"`
	Locations       []string       `json:"locations,omitempty" yaml:"locations,omitempty"`
}

// IsEmpty reports whether no value-proposition field carries text
func (vp ValueProposition) IsEmpty() bool {
	return vp.TargetCustomer == "" && vp.KeyBenefit == "" &&
		vp.Transformation.Before == "" && vp.Transformation.After == "" &&
		len(vp.Differentiators) == 0 && len(vp.Products) == 0
}

// BusinessProfile is the classifier's view of the business, supplied externally
type BusinessProfile struct {
	Type               string               `json:"type" yaml:"type"` // e.g. local_service, b2b_saas, ecommerce
	PriorityCategories []Category           `json:"priority_categories,omitempty" yaml:"priority_categories,omitempty"`
	PriorityPlatforms  []string             `json:"priority_platforms,omitempty" yaml:"priority_platforms,omitempty"`
	CategoryWeights    map[Category]float64 `json:"category_weights,omitempty" yaml:"category_weights,omitempty"`
}
