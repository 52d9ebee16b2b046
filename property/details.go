package property

import "github.com/KamdynS/property-crew/llm"

// Details is the structured result of the property-details task. Required
// scalars are pointers so that `required` tests presence: "" and 0 are
// accepted, a missing key or null is not.
type Details struct {
	Address                        *string                `json:"address" validate:"required" jsonschema:"description=Full street address of the property"`
	PriceCurrent                   *string                `json:"price_current" validate:"required" jsonschema:"description=Current list or estimated price"`
	NumberOfBedrooms               *int                   `json:"number_of_bedrooms" validate:"required,gte=0"`
	NumberOfBathrooms              *int                   `json:"number_of_bathrooms" validate:"required,gte=0"`
	SquareFootage                  *string                `json:"square_footage" validate:"required"`
	PropertyType                   *string                `json:"property_type" validate:"required" jsonschema:"example=Single Family Residential"`
	PropertyTaxes                  *string                `json:"property_taxes" validate:"required"`
	NearbySchools                  map[string]interface{} `json:"nearby_schools" validate:"required" jsonschema:"description=Schools keyed by name with rating and distance"`
	LocalCrimeRates                *string                `json:"local_crime_rates,omitempty"`
	ProximityToPoliceStations      *string                `json:"proximity_to_police_stations,omitempty"`
	RecentSalesOfSimilarProperties *string                `json:"recent_sales_of_similar_properties,omitempty"`
	NearbyPublicTransport          map[string]interface{} `json:"nearby_public_transport" validate:"required"`
	HOAFees                        *string                `json:"hoa_fees" validate:"required" jsonschema:"description=Monthly HOA fees or None"`
	RentalValueEstimate            *string                `json:"rental_value_estimate,omitempty"`
}

// Validate implements llm.Structured interface
func (d Details) Validate() error { return llm.ValidateStruct(d) }

// JSONSchema implements llm.Structured interface
func (d Details) JSONSchema() map[string]interface{} { return llm.SchemaOf(d) }

var _ llm.Structured = Details{}
