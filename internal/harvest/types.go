package harvest

// WorkItem identifies one city to look up. It is immutable once enqueued.
type WorkItem string

// LookupResult is the normalized outcome of one remote lookup.
type LookupResult struct {
	Item       WorkItem
	HotelCodes []string
	Latitude   float64
	Longitude  float64
}

// EmptyResult returns the result recorded when a lookup yields no data.
func EmptyResult(item WorkItem) LookupResult {
	return LookupResult{Item: item, HotelCodes: []string{}}
}

// ResultRecord is the line written to the results destination for every item.
type ResultRecord struct {
	CityCode   string   `json:"cityCode"`
	HotelCodes []string `json:"hotelCodes"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
}

// NewResultRecord converts a LookupResult into its persisted form.
func NewResultRecord(res LookupResult) ResultRecord {
	codes := res.HotelCodes
	if codes == nil {
		codes = []string{}
	}
	return ResultRecord{
		CityCode:   string(res.Item),
		HotelCodes: codes,
		Latitude:   res.Latitude,
		Longitude:  res.Longitude,
	}
}

// CitySummary is the line written to the summary destination by the lookup
// client whenever a city returned at least one hotel.
type CitySummary struct {
	CityCode   string   `json:"cityCode"`
	CityName   string   `json:"cityName"`
	HotelCodes []string `json:"hotelCodes"`
}
