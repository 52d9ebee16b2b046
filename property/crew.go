// Package property assembles the real-estate research crew: a data
// specialist, an amenities finder and a verifier working over web search
// and the Redfin listing page for one address.
package property

import (
	"strings"

	"github.com/KamdynS/property-crew/crew"
	"github.com/KamdynS/property-crew/tools"
	"github.com/KamdynS/property-crew/tools/scrape"
)

const redfinBase = "https://www.redfin.com/"

// RedfinURL returns the Redfin search page for address. Spaces become %20;
// nothing else is escaped.
func RedfinURL(address string) string {
	return redfinBase + "search#query=" + strings.ReplaceAll(address, " ", "%20")
}

// Toolset is the pair of tools the crew is built with. Scrape must already
// be bound to RedfinURL of the looked-up address.
type Toolset struct {
	Search tools.Tool
	Scrape tools.Tool
}

func (ts Toolset) list(kinds ...crew.ToolKind) []tools.Tool {
	var out []tools.Tool
	for _, k := range kinds {
		switch k {
		case crew.ToolSearch:
			if ts.Search != nil {
				out = append(out, ts.Search)
			}
		case crew.ToolScrape:
			if ts.Scrape != nil {
				out = append(out, ts.Scrape)
			}
		}
	}
	return out
}

const (
	specialistGoal      = "Retrieve and provide accurate property information based on {address}"
	specialistBackstory = "You are an expert in real estate data analysis with access to comprehensive property databases."

	verifierGoal      = "Verify and cross-check property information and market analysis provided by the Real Estate Data Specialist and Nearby Amenities Finder"
	verifierBackstory = "You are an AI assistant specializing in real estate data verification and quality control. Your primary responsibilities include:\n" +
		"1. Double-checking property information and market trend data for accuracy.\n" +
		"2. Verifying calculations and predictions made by the AI Real Estate Market Analyst.\n" +
		"3. Cross-referencing information with multiple reliable sources to ensure data integrity.\n" +
		"4. Flagging any discrepancies or potential errors in the analysis for further review.\n" +
		"5. Providing additional context or supplementary information to enhance the main analysis.\n" +
		"6. Ensuring that all recommendations align with current market conditions and regulatory requirements."

	amenitiesGoal      = "Identify and list the nearest day-to-day amenities along with their distances from the given property address."
	amenitiesBackstory = "You specialize in finding nearby essential services such as grocery stores, hospitals, pharmacies, gyms, and restaurants.\n" +
		"Your job is to scrape online sources like Google Maps, Yelp, and OpenStreetMap to fetch accurate location and distance data."
)

const (
	amenitiesDescription = "Scrape websites to find the nearest day-to-day amenities for the property at {address}. " +
		"Identify locations and distances for:\n" +
		"- Grocery stores\n" +
		"- Hospitals\n" +
		"- Pharmacies\n" +
		"- Gyms\n" +
		"- Restaurants\n" +
		"Use sources like Google Maps, Yelp, and OpenStreetMap. Ensure accuracy in distances and locations."
	amenitiesExpected = "A structured JSON object listing the top 5 nearest amenities in each category with their distance from the property."

	detailsDescription = "Fetch comprehensive property details for {address} " +
		"Retrieve the following information:\n" +
		"- Current price, Number of bedrooms and bathrooms\n" +
		"- Square footage, Property type, property taxes\n" +
		"- Nearby schools with ratings and distances\n" +
		"- Local crime rates and proximity to police stations\n" +
		"- Recent sales of similar properties (comparables)\n" +
		"- Nearby public transport options\n" +
		"- Walkability score\n" +
		"- HOA fees\n" +
		"- Rental value estimate\n" +
		"- Additional relevant information (year built, parking, heating/cooling, etc.)\n\n" +
		"Ensure all information is up-to-date and accurate."
	detailsExpected = "A structured JSON object containing property details."

	verificationDescription = "Verify the real estate details for {address} by reviewing data from both the property information task " +
		"and the nearby amenities task.\n" +
		"Ensure that the property details such as price, bedrooms, bathrooms, square footage, " +
		"lot size, property type, HOA fees, property taxes, school ratings, local crime rates, and recent sales " +
		"of comparable properties are accurate.\n" +
		"Cross-check nearby amenities (e.g., grocery stores, schools, gyms) and their distances from the property.\n" +
		"Confirm public transport options, walkability score, and rental value estimates, ensuring all information is " +
		"complete and up-to-date.\n" +
		"If any data is missing or incorrect, retrieve the correct data from reliable sources like Zillow, Redfin, " +
		"Realtor.com, Walk Score, and government databases."
	verificationExpected = "A structured JSON object containing verified property details, including corrected data, " +
		"and accurate nearby amenities with their distances from the property."
)

// DetailsSchema is the output schema of the property-details task.
var DetailsSchema = crew.SchemaFor("PropertyDetails", Details{})

// NewCrew builds the three-agent crew for one lookup of address. Texts keep
// their {address} placeholders; Kickoff fills them from its inputs. When ts
// has no scrape tool, one with default settings is bound to the Redfin page
// of address. The result is deterministic and not yet run.
func NewCrew(address string, ts Toolset) *crew.Crew {
	if ts.Scrape == nil {
		ts.Scrape = scrape.NewWebsiteTool(RedfinURL(address), scrape.Config{})
	}
	c := &crew.Crew{
		Agents: []crew.Agent{
			{
				Role:      crew.RoleDataSpecialist,
				Goal:      specialistGoal,
				Backstory: specialistBackstory,
				Verbose:   true,
			},
			{
				Role:      crew.RoleAmenitiesFinder,
				Goal:      amenitiesGoal,
				Backstory: amenitiesBackstory,
				Verbose:   true,
			},
			{
				Role:      crew.RoleVerifier,
				Goal:      verifierGoal,
				Backstory: verifierBackstory,
				Tools:     ts.list(crew.ToolSearch, crew.ToolScrape),
				Verbose:   true,
			},
		},
		Tasks: []crew.Task{
			{
				Kind:           crew.TaskPropertyDetails,
				Description:    detailsDescription,
				ExpectedOutput: detailsExpected,
				Agent:          crew.RoleDataSpecialist,
				Tools:          ts.list(crew.ToolSearch, crew.ToolScrape),
				OutputSchema:   DetailsSchema,
			},
			{
				Kind:           crew.TaskNearbyAmenities,
				Description:    amenitiesDescription,
				ExpectedOutput: amenitiesExpected,
				Agent:          crew.RoleAmenitiesFinder,
				Tools:          ts.list(crew.ToolSearch),
			},
			{
				Kind:           crew.TaskVerification,
				Description:    verificationDescription,
				ExpectedOutput: verificationExpected,
				Agent:          crew.RoleVerifier,
				Tools:          ts.list(crew.ToolSearch, crew.ToolScrape),
			},
		},
		Process: crew.Sequential,
		Memory:  true,
		Verbose: true,
	}
	return c
}
