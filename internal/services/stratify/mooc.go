package stratify

// RegionalMOOC is one region of the enrollment-growth table extracted from
// the Coursera Global Skills Report 2025 (year-over-year, Mar 2024 to
// Feb 2025)
type RegionalMOOC struct {
	Region      string
	CTGrowth    float64
	GenAIGrowth float64
	Ratio       float64
}

// RegionalMOOCData holds the published regional growth figures
var RegionalMOOCData = []RegionalMOOC{
	{Region: "Europe", CTGrowth: 14, GenAIGrowth: 116, Ratio: 0.12},
	{Region: "North America", CTGrowth: 15, GenAIGrowth: 135, Ratio: 0.11},
	{Region: "Asia Pacific", CTGrowth: 12, GenAIGrowth: 132, Ratio: 0.09},
	{Region: "Latin America", CTGrowth: 194, GenAIGrowth: 425, Ratio: 0.46},
	{Region: "Middle East & North Africa", CTGrowth: 19, GenAIGrowth: 128, Ratio: 0.15},
	{Region: "Sub-Saharan Africa", CTGrowth: 6, GenAIGrowth: 134, Ratio: 0.04},
}
